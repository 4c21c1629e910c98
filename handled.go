package pageresolver

import (
	"context"
	"net/http"
)

type handledKey struct{}

// Handled reports whether a resolver already rewrote the request.
func Handled(r *http.Request) bool {
	handled, _ := r.Context().Value(handledKey{}).(bool)
	return handled
}

// MarkHandled returns a shallow copy of r that later resolvers will leave alone.
func MarkHandled(r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), handledKey{}, true))
}
