package pageresolver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/always-cache/page-resolver/auth"
	"github.com/always-cache/page-resolver/content"
	"github.com/always-cache/page-resolver/internal/metrics"
	bypassrules "github.com/always-cache/page-resolver/pkg/bypass-rules"
	"github.com/always-cache/page-resolver/rfc9111"
	"github.com/always-cache/page-resolver/settings"
	"github.com/always-cache/page-resolver/site"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// ExcludedPrefix is the path prefix of static manager assets, which are never resolved.
const ExcludedPrefix = "/manager/assets/"

// Config configures a Resolver. Only Router is required.
type Config struct {
	// Route lookup for the requested URL.
	Router content.Router
	// Decides whether the caller may preview unpublished content.
	// Defaults to auth.ClaimsAuthorizer.
	Authorizer auth.Authorizer
	// Source of the page cache lifetime.
	// Defaults to an empty snapshot, i.e. caching disabled.
	Settings settings.Source
	// Optional mapping of requests to sites.
	// All requests belong to uuid.Nil if not set.
	Sites site.Lookup
	// Requests to leave alone in addition to ExcludedPrefix.
	Bypass bypassrules.Rules
	// Logger to use when the request carries none. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

// Resolver maps friendly page URLs to the internal routes that render them.
// It is safe for concurrent use.
type Resolver struct {
	router     content.Router
	authorizer auth.Authorizer
	settings   settings.Source
	sites      site.Lookup
	bypass     bypassrules.Rules
	log        zerolog.Logger
}

// New creates a resolver. Config.Router is required.
func New(config Config) *Resolver {
	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}
	res := &Resolver{
		router:     config.Router,
		authorizer: config.Authorizer,
		settings:   config.Settings,
		sites:      config.Sites,
		bypass:     config.Bypass,
		log:        logger,
	}
	if res.authorizer == nil {
		res.authorizer = auth.ClaimsAuthorizer{}
	}
	if res.settings == nil {
		res.settings = settings.Static{}
	}
	return res
}

// Middleware resolves requests before handing them to next.
// Requests for pages are either answered directly (redirect, 304) or rewritten
// to the page route. Everything else reaches next unchanged.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := res.getLogger(r)

		if Handled(r) || strings.HasPrefix(r.URL.Path, ExcludedPrefix) || res.bypass.Bypass(r) {
			logger.Trace().Str("path", r.URL.Path).Msg("Not resolving")
			metrics.Resolved(metrics.OutcomeBypass)
			next.ServeHTTP(w, r)
			return
		}

		d := res.decide(r, logger)
		metrics.Resolved(d.outcome)

		switch d.outcome {
		case metrics.OutcomeRedirect:
			logger.Debug().Str("location", d.content.RedirectURL).Str("kind", d.content.RedirectKind.String()).Msg("Redirecting")
			w.Header().Set("Location", d.content.RedirectURL)
			w.WriteHeader(d.content.RedirectKind.StatusCode())
		case metrics.OutcomeNotModified:
			d.policy.apply(w.Header())
			logger.Debug().Msg("Content not modified")
			w.WriteHeader(http.StatusNotModified)
		case metrics.OutcomeRewrite:
			d.policy.apply(w.Header())
			rewrite(r, d.content.Route, d.content.QueryString)
			logger.Debug().Str("route", r.URL.Path).Str("query", r.URL.RawQuery).Msg("Rewrote request")
			next.ServeHTTP(w, MarkHandled(r))
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// decision is the terminal action chosen for a request.
type decision struct {
	outcome string
	content *content.ResolvedContent
	policy  CachePolicy
}

// decide runs the lookup, access and policy steps without touching the response.
func (res *Resolver) decide(r *http.Request, logger *zerolog.Logger) decision {
	ctx := r.Context()

	siteID := uuid.Nil
	if res.sites != nil {
		siteID = res.sites.SiteID(r)
	}

	resolved, err := protect(func() (*content.ResolvedContent, error) {
		return res.router.Resolve(ctx, r.URL.Path, siteID)
	})
	if err != nil {
		res.collaboratorFailed(logger, metrics.CollaboratorRouter, err)
		return decision{outcome: metrics.OutcomeNotFound}
	}
	if resolved == nil {
		logger.Trace().Str("path", r.URL.Path).Stringer("site", siteID).Msg("No content found")
		return decision{outcome: metrics.OutcomeNotFound}
	}

	if !resolved.IsPublished {
		principal := auth.PrincipalFrom(ctx)
		allowed, err := protect(func() (bool, error) {
			return res.authorizer.HasCapability(ctx, principal, auth.PagePreview)
		})
		if err != nil {
			res.collaboratorFailed(logger, metrics.CollaboratorAuthorizer, err)
			return decision{outcome: metrics.OutcomeNotFound}
		}
		if !allowed {
			// indistinguishable from content that does not exist
			logger.Trace().Str("path", r.URL.Path).Msg("Unpublished content, no preview capability")
			return decision{outcome: metrics.OutcomeUnauthorized}
		}
	}

	if resolved.Redirects() {
		return decision{outcome: metrics.OutcomeRedirect, content: resolved}
	}

	policy, err := protect(func() (CachePolicy, error) {
		return res.cachePolicy(r, resolved)
	})
	if err != nil {
		res.collaboratorFailed(logger, metrics.CollaboratorSettings, err)
		return decision{outcome: metrics.OutcomeNotFound}
	}

	if rfc9111.NotModified(r.Header, resolved.CacheInfo.EntityTag, resolved.CacheInfo.LastModified) {
		return decision{outcome: metrics.OutcomeNotModified, content: resolved, policy: policy}
	}
	return decision{outcome: metrics.OutcomeRewrite, content: resolved, policy: policy}
}

func (res *Resolver) collaboratorFailed(logger *zerolog.Logger, collaborator string, err error) {
	logger.Warn().Err(err).Str("collaborator", collaborator).Msg("Collaborator failed, passing request through")
	metrics.CollaboratorFailed(collaborator)
}

// protect calls fn, turning a panic into an error.
func protect[T any](fn func() (T, error)) (result T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

// rewrite points the request at route, appending query to any existing query.
func rewrite(r *http.Request, route, query string) {
	r.URL.Path = route
	r.URL.RawPath = ""
	query = strings.TrimPrefix(query, "?")
	if query == "" {
		return
	}
	if r.URL.RawQuery == "" {
		r.URL.RawQuery = query
	} else {
		r.URL.RawQuery += "&" + query
	}
}

// getLogger returns the request logger if hlog set one up, the resolver logger otherwise.
func (res *Resolver) getLogger(r *http.Request) *zerolog.Logger {
	logger := hlog.FromRequest(r)
	if logger.GetLevel() == zerolog.Disabled {
		return &res.log
	}
	return logger
}
