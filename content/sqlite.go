package content

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"

	pagekey "github.com/always-cache/page-resolver/pkg/page-key"
)

// OpenSQLite opens (and creates if needed) the SQLite database with the given file name.
// If file name is empty, a shared in-memory db is opened.
func OpenSQLite(filename string) (*sql.DB, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, err
	}
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

type SQLiteStore struct {
	db         *sql.DB
	keyer      pagekey.PageKeyer
	writeMutex *sync.Mutex
}

// NewSQLiteStore creates the pages table in db if needed.
func NewSQLiteStore(db *sql.DB) (SQLiteStore, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS pages (
		key TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		site_id TEXT NOT NULL,
		slug TEXT NOT NULL,
		route TEXT NOT NULL DEFAULT '',
		published INTEGER NOT NULL DEFAULT 0,
		last_modified INTEGER NOT NULL DEFAULT 0,
		redirect_url TEXT NOT NULL DEFAULT '',
		redirect_kind INTEGER NOT NULL DEFAULT 0,
		start_page INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		return SQLiteStore{}, err
	}
	_, err = db.Exec("CREATE INDEX IF NOT EXISTS start_page_idx ON pages (site_id, start_page)")
	if err != nil {
		return SQLiteStore{}, err
	}
	return SQLiteStore{
		db:         db,
		keyer:      pagekey.NewPageKeyer("pages"),
		writeMutex: &sync.Mutex{},
	}, nil
}

const pageColumns = "id, site_id, slug, route, published, last_modified, redirect_url, redirect_kind, start_page"

func (s SQLiteStore) BySlug(ctx context.Context, siteID uuid.UUID, slug string) (*Page, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+pageColumns+" FROM pages WHERE key = ?",
		s.keyer.SlugKey(siteID, slug))
	return scanPage(row)
}

func (s SQLiteStore) StartPage(ctx context.Context, siteID uuid.UUID) (*Page, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+pageColumns+" FROM pages WHERE site_id = ? AND start_page = 1 LIMIT 1",
		siteID.String())
	return scanPage(row)
}

func (s SQLiteStore) Put(ctx context.Context, page Page) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if page.IsStartPage {
		_, err = tx.ExecContext(ctx, "UPDATE pages SET start_page = 0 WHERE site_id = ?", page.SiteID.String())
		if err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO pages
		(key, `+pageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.keyer.SlugKey(page.SiteID, page.Slug),
		page.ID.String(),
		page.SiteID.String(),
		pagekey.NormalizeSlug(page.Slug),
		page.Route,
		toUnix(page.Published),
		toUnix(page.LastModified),
		page.RedirectURL,
		int(page.RedirectKind),
		page.IsStartPage,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s SQLiteStore) Count(ctx context.Context, siteID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pages WHERE site_id = ?", siteID.String()).Scan(&count)
	return count, err
}

func scanPage(row *sql.Row) (*Page, error) {
	var (
		page                    Page
		id, siteID              string
		published, lastModified int64
		redirectKind            int
	)
	err := row.Scan(&id, &siteID, &page.Slug, &page.Route, &published, &lastModified,
		&page.RedirectURL, &redirectKind, &page.IsStartPage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	if page.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if page.SiteID, err = uuid.Parse(siteID); err != nil {
		return nil, err
	}
	page.Published = fromUnix(published)
	page.LastModified = fromUnix(lastModified)
	page.RedirectKind = RedirectKind(redirectKind)
	return &page, nil
}

// zero times are stored as 0 so "unpublished" survives the round trip
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
