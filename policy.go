package pageresolver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/always-cache/page-resolver/content"
	"github.com/always-cache/page-resolver/rfc9111"
)

// CachePolicy describes how downstream caches may keep a resolved page.
// A zero MaxAgeMinutes means the page must not be cached.
type CachePolicy struct {
	MaxAgeMinutes int
	EntityTag     string
	LastModified  time.Time
}

// Cacheable reports whether the policy allows caching.
func (p CachePolicy) Cacheable() bool {
	return p.MaxAgeMinutes > 0
}

// apply writes the policy onto the response headers.
func (p CachePolicy) apply(h http.Header) {
	if !p.Cacheable() {
		h.Set("Cache-Control", rfc9111.FormatCacheControl(rfc9111.DirectiveNoCache))
		return
	}
	maxAge := rfc9111.MinutesToDeltaSeconds(p.MaxAgeMinutes)
	h.Set("Cache-Control", rfc9111.FormatCacheControl(rfc9111.DirectivePublic, rfc9111.MaxAgeDirective(maxAge)))
	if p.EntityTag != "" {
		h.Set("ETag", p.EntityTag)
	}
	if !p.LastModified.IsZero() {
		h.Set("Last-Modified", rfc9111.ToHttpDate(p.LastModified))
	}
}

// cachePolicy derives the policy for resolved content from the configured page lifetime.
func (res *Resolver) cachePolicy(r *http.Request, resolved *content.ResolvedContent) (CachePolicy, error) {
	s, err := res.settings.Acquire(r.Context())
	if err != nil {
		return CachePolicy{}, fmt.Errorf("cannot acquire settings: %w", err)
	}
	defer s.Release()

	minutes, err := s.CacheExpiresPages()
	if err != nil {
		return CachePolicy{}, fmt.Errorf("cannot read page cache lifetime: %w", err)
	}
	if !resolved.IsPublished || minutes <= 0 {
		return CachePolicy{}, nil
	}
	return CachePolicy{
		MaxAgeMinutes: minutes,
		EntityTag:     resolved.CacheInfo.EntityTag,
		LastModified:  resolved.CacheInfo.LastModified,
	}, nil
}
