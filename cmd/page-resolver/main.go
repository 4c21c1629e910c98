package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	pageresolver "github.com/always-cache/page-resolver"
	"github.com/always-cache/page-resolver/auth"
	"github.com/always-cache/page-resolver/content"
	"github.com/always-cache/page-resolver/settings"
	"github.com/always-cache/page-resolver/site"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	configFilenameFlag string
	portFlag           int
	originFlag         string
	dbFilenameFlag     string
	verbosityTraceFlag bool
	logFilenameFlag    string
	metricsPortFlag    int

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Config file (YAML)")
	flag.IntVar(&portFlag, "port", 0, "Port to listen on (overrides config, default 8080)")
	flag.StringVar(&originFlag, "origin", "", "Origin URL rendering the pages (overrides config)")
	flag.StringVar(&dbFilenameFlag, "db", "", "Page DB file name (overrides config, use 'memory' for in-memory db)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")
	flag.IntVar(&metricsPortFlag, "metrics-port", 0, "Serve metrics on this port instead of the main listener (overrides config)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	var config Config
	if configFilenameFlag != "" {
		var err error
		if config, err = getConfig(configFilenameFlag); err != nil {
			log.Fatal().Err(err).Msg("Could not read config")
		}
	}
	applyFlags(&config)

	originURL, err := url.Parse(config.Origin)
	if err != nil || originURL.Host == "" {
		log.Fatal().Err(err).Str("origin", config.Origin).Msg("Please specify a valid origin")
	}

	store, source, closeStore, err := openStore(config)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not open page store")
	}
	defer closeStore()

	if err := seedPages(context.Background(), store, config.Pages); err != nil {
		log.Fatal().Err(err).Msg("Could not seed pages")
	}

	resolver := pageresolver.New(pageresolver.Config{
		Router:   content.PageRouter{Store: store},
		Settings: source,
		Sites:    site.NewHosts(config.DefaultSite, config.Sites),
		Bypass:   config.Bypass,
		Logger:   &log.Logger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		Handler:           newRouter(resolver, config, createProxy(originURL, config.Host)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	servers := []*http.Server{srv}
	if config.Metrics.Port != 0 {
		servers = append(servers, &http.Server{
			Addr:              fmt.Sprintf(":%d", config.Metrics.Port),
			Handler:           newMetricsRouter(config.Metrics),
			ReadHeaderTimeout: 10 * time.Second,
		})
		log.Info().Msgf("Serving metrics on port %v at %s", config.Metrics.Port, config.Metrics.path())
	}

	log.Info().Msgf("Resolving pages on port %v for %s (with hostname '%s')", config.Port, originURL.String(), config.Host)
	for _, s := range servers {
		go func(s *http.Server) {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", s.Addr).Msg("Server error")
				stop()
			}
		}(s)
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Str("addr", s.Addr).Msg("Could not shut down gracefully")
		}
	}
}

// applyFlags lets command line flags override the config file.
func applyFlags(config *Config) {
	if portFlag != 0 {
		config.Port = portFlag
	}
	if config.Port == 0 {
		config.Port = 8080
	}
	if originFlag != "" {
		config.Origin = originFlag
	}
	if metricsPortFlag != 0 {
		config.Metrics.Port = metricsPortFlag
	}
	if dbFilenameFlag == "memory" {
		config.Store = StoreConfig{Driver: "memory"}
	} else if dbFilenameFlag != "" {
		config.Store.Path = dbFilenameFlag
		if config.Store.Driver == "" || config.Store.Driver == "memory" {
			config.Store.Driver = "sqlite"
		}
	}
}

// newRouter hands requests through the resolver to the origin.
// Metrics are served on the metrics path unless they have a listener of their own.
func newRouter(resolver *pageresolver.Resolver, config Config, origin http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if config.Metrics.Port == 0 {
		r.Handle(config.Metrics.path(), promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(hlog.NewHandler(log.Logger))
		r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
		r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Debug().
				Str("method", r.Method).
				Stringer("url", r.URL).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("Sending response to client")
		}))
		r.Use(auth.Tokens(config.Tokens))
		r.Use(resolver.Middleware)
		r.Handle("/*", origin)
	})
	return r
}

func newMetricsRouter(config MetricsConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle(config.path(), promhttp.Handler())
	return r
}

// createProxy creates the reverse proxy to the origin rendering resolved pages.
func createProxy(originURL *url.URL, originHost string) *httputil.ReverseProxy {
	host := originURL.Host
	hostHeader := host
	transport := http.DefaultTransport
	if originHost != "" {
		hostHeader = originHost
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				ServerName: originHost,
			},
		}
	}
	return &httputil.ReverseProxy{
		Director:  createDirector(originURL.Scheme, host, hostHeader),
		Transport: transport,
	}
}

func createDirector(scheme, host, hostHeader string) func(req *http.Request) {
	return func(req *http.Request) {
		req.URL.Scheme = scheme
		req.URL.Host = host
		if hostHeader != "" {
			req.Host = hostHeader
		}
	}
}

// openStore opens the configured page store along with the settings source for it.
// The returned function closes whatever was opened.
func openStore(config Config) (content.Store, settings.Source, func(), error) {
	static := settings.Static{ExpiresPages: config.CacheExpiresPages}

	switch config.Store.Driver {
	case "", "memory":
		return content.NewMemStore(), static, func() {}, nil

	case "sqlite":
		db, err := content.OpenSQLite(config.Store.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		store, err := content.NewSQLiteStore(db)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		source, err := settings.NewSQLiteSource(db)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		if err := source.SetCacheExpiresPages(context.Background(), config.CacheExpiresPages); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return store, source, func() { db.Close() }, nil

	case "leveldb":
		store, err := content.NewLevelDBStore(config.Store.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, static, func() { store.Close() }, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store driver %q", config.Store.Driver)
}

func seedPages(ctx context.Context, store content.Store, pages []content.Page) error {
	for _, page := range pages {
		if err := store.Put(ctx, page); err != nil {
			return fmt.Errorf("page %q: %w", page.Slug, err)
		}
		log.Debug().Str("slug", page.Slug).Stringer("site", page.SiteID).Msg("Seeded page")
	}
	return nil
}
