package content

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

var (
	testSite = uuid.MustParse("8f9bd2a4-6f0d-4b33-9d4b-2d0f3b1c1111")
	testNow  = time.Date(2022, time.June, 1, 12, 0, 0, 0, time.UTC)
)

func newTestRouter(t *testing.T, pages ...Page) PageRouter {
	store := NewMemStore()
	for _, page := range pages {
		if err := store.Put(context.Background(), page); err != nil {
			t.Fatal(err)
		}
	}
	return PageRouter{Store: store, Now: func() time.Time { return testNow }}
}

func TestResolveStartPage(t *testing.T) {
	home := Page{ID: uuid.New(), SiteID: testSite, Slug: "home", IsStartPage: true, Published: testNow.Add(-time.Hour)}
	router := newTestRouter(t, home)

	for _, url := range []string{"", "/"} {
		res, err := router.Resolve(context.Background(), url, testSite)
		if err != nil || res == nil {
			t.Fatalf("Start page not resolved for '%s': %v", url, err)
		}
		if res.Route != DefaultRoute {
			t.Fatalf("Route is %s", res.Route)
		}
		if res.QueryString != "id="+home.ID.String()+"&startpage=true" {
			t.Fatalf("Query string is %s", res.QueryString)
		}
	}
}

func TestResolveLongestSlugWins(t *testing.T) {
	blog := Page{ID: uuid.New(), SiteID: testSite, Slug: "blog", Route: "/archive"}
	team := Page{ID: uuid.New(), SiteID: testSite, Slug: "about/team"}
	about := Page{ID: uuid.New(), SiteID: testSite, Slug: "about"}
	router := newTestRouter(t, blog, team, about)

	res, err := router.Resolve(context.Background(), "/about/team", testSite)
	if err != nil || res == nil || !strings.Contains(res.QueryString, team.ID.String()) {
		t.Fatalf("Resolved %+v (%v)", res, err)
	}

	res, err = router.Resolve(context.Background(), "/Blog/2022/June", testSite)
	if err != nil || res == nil {
		t.Fatalf("Blog not resolved: %v", err)
	}
	if res.Route != "/archive/2022/June" {
		t.Fatalf("Route is %s", res.Route)
	}
}

func TestResolveNotFound(t *testing.T) {
	router := newTestRouter(t, Page{ID: uuid.New(), SiteID: testSite, Slug: "about"})
	if res, err := router.Resolve(context.Background(), "/contact", testSite); err != nil || res != nil {
		t.Fatalf("Resolved %+v (%v)", res, err)
	}
	if res, err := router.Resolve(context.Background(), "/about", uuid.New()); err != nil || res != nil {
		t.Fatalf("Resolved page of other site %+v (%v)", res, err)
	}
	if res, err := router.Resolve(context.Background(), "/", testSite); err != nil || res != nil {
		t.Fatalf("Resolved missing start page %+v (%v)", res, err)
	}
}

func TestResolvePublication(t *testing.T) {
	published := Page{ID: uuid.New(), SiteID: testSite, Slug: "published", Published: testNow}
	draft := Page{ID: uuid.New(), SiteID: testSite, Slug: "draft"}
	scheduled := Page{ID: uuid.New(), SiteID: testSite, Slug: "scheduled", Published: testNow.Add(time.Minute)}
	router := newTestRouter(t, published, draft, scheduled)

	for slug, expected := range map[string]bool{"published": true, "draft": false, "scheduled": false} {
		res, err := router.Resolve(context.Background(), "/"+slug, testSite)
		if err != nil || res == nil {
			t.Fatalf("%s not resolved: %v", slug, err)
		}
		if res.IsPublished != expected {
			t.Fatalf("%s published is %v", slug, res.IsPublished)
		}
	}
}

func TestResolveCacheInfo(t *testing.T) {
	modified := testNow.Add(-time.Hour + 250*time.Millisecond)
	page := Page{ID: uuid.New(), SiteID: testSite, Slug: "about", LastModified: modified}
	router := newTestRouter(t, page)

	res, _ := router.Resolve(context.Background(), "/about", testSite)
	if res.CacheInfo.EntityTag == "" || res.CacheInfo.EntityTag != page.EntityTag() {
		t.Fatalf("Entity tag is %s", res.CacheInfo.EntityTag)
	}
	if !res.CacheInfo.LastModified.Equal(modified.Truncate(time.Second)) {
		t.Fatalf("Last modified is %s", res.CacheInfo.LastModified)
	}

	page.LastModified = modified.Add(time.Minute)
	if page.EntityTag() == res.CacheInfo.EntityTag {
		t.Fatal("Entity tag did not change with modification")
	}
}

func TestEntityTagFollowsResponseFields(t *testing.T) {
	page := Page{ID: uuid.New(), SiteID: testSite, Slug: "about", LastModified: testNow}
	original := page.EntityTag()

	edits := map[string]func(*Page){
		"route":         func(p *Page) { p.Route = "/landing" },
		"redirect":      func(p *Page) { p.RedirectURL = "/elsewhere" },
		"redirect kind": func(p *Page) { p.RedirectURL = ""; p.RedirectKind = Permanent },
		"start page":    func(p *Page) { p.IsStartPage = true },
	}
	for name, edit := range edits {
		edited := page
		edit(&edited)
		if edited.EntityTag() == original {
			t.Fatalf("Entity tag unchanged after %s edit", name)
		}
	}
	if page.EntityTag() != original {
		t.Fatal("Entity tag is not stable")
	}
}

func TestResolveRedirect(t *testing.T) {
	page := Page{ID: uuid.New(), SiteID: testSite, Slug: "old", RedirectURL: "/new", RedirectKind: Permanent}
	router := newTestRouter(t, page)

	res, _ := router.Resolve(context.Background(), "/old", testSite)
	if !res.Redirects() || res.RedirectURL != "/new" || res.RedirectKind.StatusCode() != http.StatusMovedPermanently {
		t.Fatalf("Resolved %+v", res)
	}
}

type failingStore struct{ MemStore }

func (failingStore) BySlug(context.Context, uuid.UUID, string) (*Page, error) {
	return nil, errors.New("store unavailable")
}

func TestResolveStoreError(t *testing.T) {
	router := PageRouter{Store: failingStore{NewMemStore()}}
	if _, err := router.Resolve(context.Background(), "/about", testSite); err == nil {
		t.Fatal("Store error swallowed")
	}
}

func TestParseRedirectKind(t *testing.T) {
	if kind, err := ParseRedirectKind("Permanent"); err != nil || kind != Permanent {
		t.Fatalf("Kind is %s (%v)", kind, err)
	}
	if kind, err := ParseRedirectKind(""); err != nil || kind != Temporary || kind.StatusCode() != http.StatusFound {
		t.Fatalf("Kind is %s (%v)", kind, err)
	}
	if _, err := ParseRedirectKind("sometimes"); err == nil {
		t.Fatal("Unknown kind parsed")
	}
}
