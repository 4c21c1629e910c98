package content

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PageRouter resolves URLs against the pages of a Store.
//
// The start page answers for the site root. Any other URL is matched against
// page slugs from the longest to the shortest run of leading segments; the
// segments left over are appended to the route of the matching page.
type PageRouter struct {
	Store Store
	// Clock used for publication checks, time.Now if nil.
	Now func() time.Time
}

// Resolve implements Router.
func (p PageRouter) Resolve(ctx context.Context, url string, siteID uuid.UUID) (*ResolvedContent, error) {
	segments := splitSegments(url)

	if len(segments) == 0 {
		page, err := p.Store.StartPage(ctx, siteID)
		if err != nil {
			return nil, fmt.Errorf("start page of site %s: %w", siteID, err)
		}
		if page == nil {
			return nil, nil
		}
		return p.resolved(page, nil), nil
	}

	for i := len(segments); i > 0; i-- {
		slug := strings.Join(segments[:i], "/")
		page, err := p.Store.BySlug(ctx, siteID, slug)
		if err != nil {
			return nil, fmt.Errorf("page %q of site %s: %w", slug, siteID, err)
		}
		if page != nil {
			return p.resolved(page, segments[i:]), nil
		}
	}
	return nil, nil
}

func (p PageRouter) resolved(page *Page, rest []string) *ResolvedContent {
	route := page.Route
	if route == "" {
		route = DefaultRoute
	}
	if len(rest) > 0 {
		route = strings.TrimSuffix(route, "/") + "/" + strings.Join(rest, "/")
	}
	return &ResolvedContent{
		Route:        route,
		QueryString:  fmt.Sprintf("id=%s&startpage=%t", page.ID, page.IsStartPage),
		IsPublished:  page.IsPublished(p.now()),
		RedirectURL:  page.RedirectURL,
		RedirectKind: page.RedirectKind,
		CacheInfo: CacheInfo{
			EntityTag:    page.EntityTag(),
			LastModified: page.LastModified.UTC().Truncate(time.Second),
		},
	}
}

func (p PageRouter) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// splitSegments returns the non-empty path segments of url.
// Case is kept, stores normalize slugs themselves.
func splitSegments(url string) []string {
	segments := make([]string, 0)
	for _, segment := range strings.Split(url, "/") {
		if segment = strings.TrimSpace(segment); segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}
