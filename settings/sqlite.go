package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/glebarez/go-sqlite"
	"github.com/rs/zerolog/log"
)

const paramCacheExpiresPages = "cache.expires.pages"

// SQLiteSource reads settings from a params table.
// Every scope holds a dedicated connection until it is released.
type SQLiteSource struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the settings database.
// An empty filename opens a private in-memory database.
func OpenSQLite(filename string) (*SQLiteSource, error) {
	dsn := filename
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open settings database: %w", err)
	}
	if filename == "" {
		// every pooled connection would see its own empty memory database
		db.SetMaxOpenConns(1)
	}
	s, err := NewSQLiteSource(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteSource uses an existing database, creating the params table if needed.
func NewSQLiteSource(db *sql.DB) (*SQLiteSource, error) {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS params (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`); err != nil {
		return nil, fmt.Errorf("cannot create params table: %w", err)
	}
	return &SQLiteSource{db: db}, nil
}

func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// SetCacheExpiresPages stores the page cache lifetime in minutes.
func (s *SQLiteSource) SetCacheExpiresPages(ctx context.Context, minutes int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO params (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		paramCacheExpiresPages, strconv.Itoa(minutes))
	if err != nil {
		return fmt.Errorf("cannot store %s: %w", paramCacheExpiresPages, err)
	}
	return nil
}

func (s *SQLiteSource) Acquire(ctx context.Context) (Settings, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot acquire settings connection: %w", err)
	}
	return &sqliteScope{ctx: ctx, conn: conn}, nil
}

type sqliteScope struct {
	ctx  context.Context
	conn *sql.Conn
}

// CacheExpiresPages reads 0 when the parameter was never stored.
func (s *sqliteScope) CacheExpiresPages() (int, error) {
	var value string
	err := s.conn.QueryRowContext(s.ctx, `SELECT value FROM params WHERE key = ?`, paramCacheExpiresPages).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cannot read %s: %w", paramCacheExpiresPages, err)
	}
	minutes, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", paramCacheExpiresPages, value, err)
	}
	return clamp(minutes), nil
}

func (s *sqliteScope) Release() {
	if err := s.conn.Close(); err != nil {
		log.Warn().Err(err).Msg("Could not release settings connection")
	}
}
