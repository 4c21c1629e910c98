package content

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	pagekey "github.com/always-cache/page-resolver/pkg/page-key"
)

type MemStore struct {
	mutex *sync.RWMutex
	keyer pagekey.PageKeyer
	db    map[string]Page
}

func NewMemStore() MemStore {
	return MemStore{
		mutex: &sync.RWMutex{},
		keyer: pagekey.NewPageKeyer("pages"),
		db:    make(map[string]Page),
	}
}

func (m MemStore) BySlug(ctx context.Context, siteID uuid.UUID, slug string) (*Page, error) {
	return m.get(m.keyer.SlugKey(siteID, slug)), nil
}

func (m MemStore) StartPage(ctx context.Context, siteID uuid.UUID) (*Page, error) {
	return m.get(m.keyer.StartPageKey(siteID)), nil
}

func (m MemStore) get(key string) *Page {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	page, ok := m.db[key]
	if !ok {
		return nil
	}
	return &page
}

func (m MemStore) Put(ctx context.Context, page Page) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	page.Slug = pagekey.NormalizeSlug(page.Slug)
	startKey := m.keyer.StartPageKey(page.SiteID)
	if page.IsStartPage {
		if previous, ok := m.db[startKey]; ok && previous.Slug != page.Slug {
			previous.IsStartPage = false
			m.db[m.keyer.SlugKey(previous.SiteID, previous.Slug)] = previous
		}
		m.db[startKey] = page
	} else if previous, ok := m.db[startKey]; ok && previous.Slug == page.Slug {
		delete(m.db, startKey)
	}
	m.db[m.keyer.SlugKey(page.SiteID, page.Slug)] = page
	return nil
}

func (m MemStore) Count(ctx context.Context, siteID uuid.UUID) (int, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	prefix := m.keyer.SitePrefix(siteID)
	startKey := m.keyer.StartPageKey(siteID)
	count := 0
	for key := range m.db {
		if strings.HasPrefix(key, prefix) && key != startKey {
			count++
		}
	}
	return count, nil
}
