package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pageresolver "github.com/always-cache/page-resolver"
	"github.com/always-cache/page-resolver/auth"
	"github.com/always-cache/page-resolver/content"
	"github.com/always-cache/page-resolver/site"

	"github.com/google/uuid"
)

func newTestServer(t *testing.T, config Config) *httptest.Server {
	t.Helper()
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.RequestURI()))
	}))
	t.Cleanup(origin.Close)
	originURL, _ := url.Parse(origin.URL)

	store, source, closeStore, err := openStore(config)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(closeStore)
	if err := seedPages(context.Background(), store, config.Pages); err != nil {
		t.Fatal(err)
	}

	resolver := pageresolver.New(pageresolver.Config{
		Router:   content.PageRouter{Store: store},
		Settings: source,
		Sites:    site.NewHosts(config.DefaultSite, config.Sites),
		Bypass:   config.Bypass,
	})
	srv := httptest.NewServer(newRouter(resolver, config, createProxy(originURL, "")))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, target string, header map[string]string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest("GET", target, nil)
	if err != nil {
		t.Fatal(err)
	}
	for name, value := range header {
		req.Header.Set(name, value)
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	res, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	return res, string(body)
}

func testPagesConfig(driver, path string) Config {
	siteID := uuid.New()
	published := time.Now().Add(-time.Hour)
	return Config{
		Store:             StoreConfig{Driver: driver, Path: path},
		CacheExpiresPages: 5,
		DefaultSite:       siteID,
		Tokens: map[string]auth.Principal{
			"secret": {Subject: "editor", Claims: []auth.Claim{{Type: auth.PagePreview, Value: auth.PagePreview}}},
		},
		Pages: []content.Page{
			{ID: uuid.New(), SiteID: siteID, Slug: "home", IsStartPage: true, Published: published},
			{ID: uuid.New(), SiteID: siteID, Slug: "draft"},
			{ID: uuid.New(), SiteID: siteID, Slug: "old-home", Published: published, RedirectURL: "/", RedirectKind: content.Permanent},
		},
	}
}

func TestServer(t *testing.T) {
	for _, driver := range []string{"memory", "sqlite", "leveldb"} {
		var path string
		switch driver {
		case "sqlite":
			path = filepath.Join(t.TempDir(), "pages.db")
		case "leveldb":
			path = t.TempDir()
		}
		config := testPagesConfig(driver, path)
		srv := newTestServer(t, config)

		res, body := get(t, srv.URL+"/?a=1", nil)
		if !strings.HasPrefix(body, "/page?a=1&id="+config.Pages[0].ID.String()) {
			t.Fatalf("%s: origin saw %s", driver, body)
		}
		if cc := res.Header.Get("Cache-Control"); cc != "public, max-age=300" {
			t.Fatalf("%s: Cache-Control is %s", driver, cc)
		}

		res, _ = get(t, srv.URL+"/", map[string]string{"If-None-Match": res.Header.Get("ETag")})
		if res.StatusCode != http.StatusNotModified {
			t.Fatalf("%s: revalidation status is %d", driver, res.StatusCode)
		}

		if _, body = get(t, srv.URL+"/draft", nil); body != "/draft" {
			t.Fatalf("%s: anonymous draft request reached origin as %s", driver, body)
		}
		if _, body = get(t, srv.URL+"/draft", map[string]string{"X-Preview-Token": "secret"}); !strings.HasPrefix(body, "/page?id=") {
			t.Fatalf("%s: preview reached origin as %s", driver, body)
		}

		res, _ = get(t, srv.URL+"/old-home", nil)
		if res.StatusCode != http.StatusMovedPermanently || res.Header.Get("Location") != "/" {
			t.Fatalf("%s: redirect is %d to %s", driver, res.StatusCode, res.Header.Get("Location"))
		}

		if _, body = get(t, srv.URL+pageresolver.ExcludedPrefix+"app.js", nil); body != pageresolver.ExcludedPrefix+"app.js" {
			t.Fatalf("%s: asset request reached origin as %s", driver, body)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, testPagesConfig("memory", ""))
	get(t, srv.URL+"/", nil)

	res, body := get(t, srv.URL+"/metrics", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(body, "page_resolutions_total") {
		t.Fatalf("Metrics response %d: %s", res.StatusCode, body)
	}
}

func TestMetricsOnOwnPort(t *testing.T) {
	config := testPagesConfig("memory", "")
	config.Metrics.Port = 9100
	config.Pages = append(config.Pages, content.Page{
		ID:        uuid.New(),
		SiteID:    config.DefaultSite,
		Slug:      "metrics",
		Published: time.Now().Add(-time.Hour),
	})
	srv := newTestServer(t, config)

	if _, body := get(t, srv.URL+"/metrics", nil); body != "/page?id="+config.Pages[3].ID.String()+"&startpage=false" {
		t.Fatalf("Metrics page reached origin as %s", body)
	}

	metricsSrv := httptest.NewServer(newMetricsRouter(config.Metrics))
	defer metricsSrv.Close()
	if res, body := get(t, metricsSrv.URL+"/metrics", nil); res.StatusCode != http.StatusOK || !strings.Contains(body, "page_resolutions_total") {
		t.Fatalf("Metrics response %d: %s", res.StatusCode, body)
	}
}

func TestMetricsPath(t *testing.T) {
	config := testPagesConfig("memory", "")
	config.Metrics.Path = "/_internal/metrics"
	srv := newTestServer(t, config)
	get(t, srv.URL+"/", nil)

	if res, body := get(t, srv.URL+"/_internal/metrics", nil); res.StatusCode != http.StatusOK || !strings.Contains(body, "page_resolutions_total") {
		t.Fatalf("Metrics response %d: %s", res.StatusCode, body)
	}
}

func TestApplyFlags(t *testing.T) {
	defer func() { portFlag, originFlag, dbFilenameFlag, metricsPortFlag = 0, "", "", 0 }()

	config := Config{Store: StoreConfig{Driver: "leveldb", Path: "pages"}}
	applyFlags(&config)
	if config.Port != 8080 || config.Store.Driver != "leveldb" {
		t.Fatalf("Config is %+v", config)
	}

	portFlag, originFlag, dbFilenameFlag, metricsPortFlag = 9000, "http://origin", "pages.db", 9100
	config = Config{}
	applyFlags(&config)
	if config.Port != 9000 || config.Origin != "http://origin" || config.Store.Driver != "sqlite" || config.Store.Path != "pages.db" || config.Metrics.Port != 9100 {
		t.Fatalf("Config is %+v", config)
	}

	dbFilenameFlag = "memory"
	applyFlags(&config)
	if config.Store.Driver != "memory" {
		t.Fatalf("Store is %+v", config.Store)
	}
}

func TestUnknownStoreDriver(t *testing.T) {
	if _, _, _, err := openStore(Config{Store: StoreConfig{Driver: "redis"}}); err == nil {
		t.Fatal("Unknown driver accepted")
	}
}
