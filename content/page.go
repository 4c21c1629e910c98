package content

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DefaultRoute is the internal route pages without an explicit route are served by.
const DefaultRoute = "/page"

// Page is a node of the content hierarchy as kept by a Store.
type Page struct {
	ID     uuid.UUID `yaml:"id"`
	SiteID uuid.UUID `yaml:"siteId"`
	// Slash separated path of the page within its site, e.g. "about/team".
	Slug string `yaml:"slug"`
	// Internal route, DefaultRoute if empty.
	Route string `yaml:"route"`
	// Publication time. Zero means unpublished, a future time means scheduled.
	Published    time.Time    `yaml:"published"`
	LastModified time.Time    `yaml:"lastModified"`
	RedirectURL  string       `yaml:"redirectUrl"`
	RedirectKind RedirectKind `yaml:"redirectKind"`
	IsStartPage  bool         `yaml:"startPage"`
}

// IsPublished reports whether the page is visible to everyone at the given time.
func (p Page) IsPublished(now time.Time) bool {
	return !p.Published.IsZero() && !p.Published.After(now)
}

// EntityTag derives a quoted entity tag from everything that shapes the resolved
// response: id, modification time, route, redirect and start page flag.
func (p Page) EntityTag() string {
	h := sha256.New()
	for _, field := range []string{
		p.ID.String(),
		strconv.FormatInt(p.LastModified.Unix(), 10),
		p.Route,
		p.RedirectURL,
		p.RedirectKind.String(),
		strconv.FormatBool(p.IsStartPage),
	} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("\"%x\"", h.Sum(nil)[:16])
}

// Store keeps pages by site and slug.
//
// Implementations must be thread-safe!
type Store interface {
	// BySlug returns the page with the given slug, or nil if there is none.
	BySlug(ctx context.Context, siteID uuid.UUID, slug string) (*Page, error)
	// StartPage returns the start page of the site, or nil if there is none.
	StartPage(ctx context.Context, siteID uuid.UUID) (*Page, error)
	// Put stores the page, replacing any page with the same site and slug.
	// A start page replaces the previous start page of the site.
	Put(ctx context.Context, page Page) error
	// Count returns the number of pages stored for the site.
	Count(ctx context.Context, siteID uuid.UUID) (int, error)
}
