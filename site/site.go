// Package site maps requests to the site they are addressed to.
package site

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Lookup returns the site a request belongs to, uuid.Nil if none.
type Lookup interface {
	SiteID(r *http.Request) uuid.UUID
}

// Hosts looks sites up by the request host name.
type Hosts struct {
	byHost   map[string]uuid.UUID
	fallback uuid.UUID
}

// NewHosts creates a lookup for the given host names.
// Requests for unknown hosts belong to the fallback site.
func NewHosts(fallback uuid.UUID, hosts map[string]uuid.UUID) Hosts {
	byHost := make(map[string]uuid.UUID, len(hosts))
	for host, id := range hosts {
		byHost[normalizeHost(host)] = id
	}
	return Hosts{byHost: byHost, fallback: fallback}
}

func (h Hosts) SiteID(r *http.Request) uuid.UUID {
	if id, ok := h.byHost[normalizeHost(r.Host)]; ok {
		return id
	}
	return h.fallback
}

func normalizeHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.TrimSuffix(host, "."))
}
