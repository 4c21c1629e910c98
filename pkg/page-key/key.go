package pagekey

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrorMalformedKey = fmt.Errorf("Malformed page key")

const (
	namespaceSeparator = ":"
	siteSeparator      = ":"
	// start pages are stored under a slug that can never come from a URL
	startPageSlug = "\t"
)

type PageKeyer struct {
	// Namespace separating these pages from anything else in the same store.
	Namespace string
	// Key prefix for all pages in the namespace
	NamespacePrefix string
}

func NewPageKeyer(namespace string) PageKeyer {
	return PageKeyer{
		Namespace:       namespace,
		NamespacePrefix: namespace + namespaceSeparator,
	}
}

// SitePrefix gets the key prefix for all pages of the given site.
func (k PageKeyer) SitePrefix(siteID uuid.UUID) string {
	return k.NamespacePrefix + siteID.String() + siteSeparator
}

// SlugKey returns the key a page is stored under.
// Slugs are compared case-insensitively and without surrounding slashes.
func (k PageKeyer) SlugKey(siteID uuid.UUID, slug string) string {
	return k.SitePrefix(siteID) + NormalizeSlug(slug)
}

// StartPageKey returns the key pointing to the start page of a site.
func (k PageKeyer) StartPageKey(siteID uuid.UUID) string {
	return k.SitePrefix(siteID) + startPageSlug
}

// ParseKey splits a key created by this keyer back into site id and slug.
// For start page keys the returned slug is empty.
func (k PageKeyer) ParseKey(key string) (uuid.UUID, string, error) {
	if !strings.HasPrefix(key, k.NamespacePrefix) {
		return uuid.Nil, "", fmt.Errorf("Key and namespace do not match")
	}
	site, slug, found := strings.Cut(strings.TrimPrefix(key, k.NamespacePrefix), siteSeparator)
	if !found {
		return uuid.Nil, "", fmt.Errorf("%w: %s", ErrorMalformedKey, key)
	}
	siteID, err := uuid.Parse(site)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%w: %s", ErrorMalformedKey, key)
	}
	if slug == startPageSlug {
		slug = ""
	}
	return siteID, slug, nil
}

// NormalizeSlug lowercases the slug and trims slashes and whitespace.
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(slug), "/"))
}
