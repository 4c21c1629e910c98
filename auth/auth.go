// Package auth carries the authenticated principal of a request and decides
// which capabilities it holds.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"
)

// PagePreview is the capability needed to see unpublished pages.
const PagePreview = "PagePreview"

type Claim struct {
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

// Principal is the authenticated caller of a request.
type Principal struct {
	Subject string  `yaml:"subject"`
	Claims  []Claim `yaml:"claims"`
}

// HasClaim reports whether the principal holds a claim with exactly this type and value.
func (p *Principal) HasClaim(claimType, value string) bool {
	if p == nil {
		return false
	}
	for _, c := range p.Claims {
		if c.Type == claimType && c.Value == value {
			return true
		}
	}
	return false
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying the principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal of the context, nil for anonymous callers.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// Authorizer decides whether a principal holds a capability.
// The principal may be nil for anonymous callers.
//
// Implementations must be thread-safe!
type Authorizer interface {
	HasCapability(ctx context.Context, p *Principal, capability string) (bool, error)
}

// ClaimsAuthorizer grants a capability to principals holding a claim whose
// type and value both equal the capability name.
type ClaimsAuthorizer struct{}

func (ClaimsAuthorizer) HasCapability(ctx context.Context, p *Principal, capability string) (bool, error) {
	return p.HasClaim(capability, capability), nil
}

// Tokens returns middleware authenticating requests by preview token.
// The token is read from a bearer Authorization header or from X-Preview-Token.
// Requests without a known token continue anonymously.
func Tokens(tokens map[string]Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			p, ok := tokens[token]
			if !ok {
				hlog.FromRequest(r).Trace().Msg("Unknown preview token, continuing anonymously")
				next.ServeHTTP(w, r)
				return
			}
			hlog.FromRequest(r).Trace().Str("subject", p.Subject).Msg("Authenticated by token")
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), &p)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); authz != "" {
		if scheme, token, found := strings.Cut(authz, " "); found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Preview-Token"))
}
