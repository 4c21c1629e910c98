// Package content resolves request URLs to the pages bound to them.
package content

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// RedirectKind tells how a relocated page redirects its visitors.
type RedirectKind int

const (
	Temporary RedirectKind = iota
	Permanent
)

// StatusCode returns the HTTP status used for redirects of this kind.
func (k RedirectKind) StatusCode() int {
	if k == Permanent {
		return http.StatusMovedPermanently
	}
	return http.StatusFound
}

func (k RedirectKind) String() string {
	if k == Permanent {
		return "permanent"
	}
	return "temporary"
}

// ParseRedirectKind parses "temporary" or "permanent" (case-insensitive).
// An empty string is Temporary.
func ParseRedirectKind(s string) (RedirectKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "temporary":
		return Temporary, nil
	case "permanent":
		return Permanent, nil
	}
	return Temporary, fmt.Errorf("unknown redirect kind %q", s)
}

// UnmarshalYAML lets config files spell redirect kinds out.
func (k *RedirectKind) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	kind, err := ParseRedirectKind(s)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// CacheInfo identifies one version of a piece of content.
type CacheInfo struct {
	// Opaque entity tag, unique per content version.
	EntityTag string
	// Last modification, second precision.
	LastModified time.Time
}

// ResolvedContent describes what a URL resolved to.
// It is created per request and never mutated afterwards.
type ResolvedContent struct {
	// Internal path the request should be rewritten to.
	Route string
	// Query parameters to merge into the rewritten request.
	QueryString string
	IsPublished bool
	// Set when the content has been relocated.
	RedirectURL  string
	RedirectKind RedirectKind
	CacheInfo    CacheInfo
}

// Redirects reports whether the content is reachable only through a redirect.
func (c *ResolvedContent) Redirects() bool {
	return strings.TrimSpace(c.RedirectURL) != ""
}

// Router resolves a URL within a site.
// A nil result with a nil error means nothing is bound to the URL.
// Site id uuid.Nil means the request has no site.
//
// Implementations must be thread-safe!
type Router interface {
	Resolve(ctx context.Context, url string, siteID uuid.UUID) (*ResolvedContent, error)
}

// RouterFunc adapts a function to the Router interface.
type RouterFunc func(ctx context.Context, url string, siteID uuid.UUID) (*ResolvedContent, error)

func (f RouterFunc) Resolve(ctx context.Context, url string, siteID uuid.UUID) (*ResolvedContent, error) {
	return f(ctx, url, siteID)
}
