// Package settings provides scoped access to the configuration the resolver
// reads while handling a request.
package settings

import "context"

// Source hands out settings scopes.
//
// Implementations must be thread-safe!
type Source interface {
	// Acquire opens a scope. The caller must Release it on every path.
	Acquire(ctx context.Context) (Settings, error)
}

// Settings is a scope opened by a Source.
type Settings interface {
	// CacheExpiresPages returns the page cache lifetime in minutes, 0 to disable caching.
	CacheExpiresPages() (int, error)
	Release()
}

// Static is a fixed settings snapshot.
type Static struct {
	ExpiresPages int
}

func (s Static) Acquire(ctx context.Context) (Settings, error) {
	return s, nil
}

func (s Static) CacheExpiresPages() (int, error) {
	return clamp(s.ExpiresPages), nil
}

func (Static) Release() {}

func clamp(minutes int) int {
	if minutes < 0 {
		return 0
	}
	return minutes
}
