package content

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	pagekey "github.com/always-cache/page-resolver/pkg/page-key"
)

// LevelDBStore keeps gob encoded pages under their slug key.
// The start page key of a site holds the slug key of its start page.
type LevelDBStore struct {
	db         *leveldb.DB
	keyer      pagekey.PageKeyer
	writeMutex *sync.Mutex
}

func NewLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{
		db:         db,
		keyer:      pagekey.NewPageKeyer("pages"),
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

func (s *LevelDBStore) BySlug(ctx context.Context, siteID uuid.UUID, slug string) (*Page, error) {
	return s.get(s.keyer.SlugKey(siteID, slug))
}

func (s *LevelDBStore) StartPage(ctx context.Context, siteID uuid.UUID) (*Page, error) {
	slugKey, err := s.db.Get([]byte(s.keyer.StartPageKey(siteID)), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return s.get(string(slugKey))
}

func (s *LevelDBStore) get(key string) (*Page, error) {
	b, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var page Page
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *LevelDBStore) Put(ctx context.Context, page Page) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	page.Slug = pagekey.NormalizeSlug(page.Slug)
	slugKey := s.keyer.SlugKey(page.SiteID, page.Slug)
	startKey := []byte(s.keyer.StartPageKey(page.SiteID))

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(page); err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	current, err := s.db.Get(startKey, nil)
	if err != nil && !errors.Is(err, leveldb.ErrNotFound) {
		return err
	}
	if page.IsStartPage {
		if len(current) > 0 && string(current) != slugKey {
			if err := s.demote(batch, string(current)); err != nil {
				return err
			}
		}
		batch.Put(startKey, []byte(slugKey))
	} else if string(current) == slugKey {
		batch.Delete(startKey)
	}
	batch.Put([]byte(slugKey), buf.Bytes())
	return s.db.Write(batch, nil)
}

// demote clears the start page flag of the page stored under key.
func (s *LevelDBStore) demote(batch *leveldb.Batch, key string) error {
	previous, err := s.get(key)
	if err != nil || previous == nil {
		return err
	}
	previous.IsStartPage = false
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(previous); err != nil {
		return err
	}
	batch.Put([]byte(key), buf.Bytes())
	return nil
}

func (s *LevelDBStore) Count(ctx context.Context, siteID uuid.UUID) (int, error) {
	startKey := s.keyer.StartPageKey(siteID)
	it := s.db.NewIterator(util.BytesPrefix([]byte(s.keyer.SitePrefix(siteID))), nil)
	defer it.Release()
	count := 0
	for it.Next() {
		if string(it.Key()) != startKey {
			count++
		}
	}
	return count, it.Error()
}
