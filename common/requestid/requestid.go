// Package requestid carries a correlation id through contexts, HTTP requests
// and message headers so every log line of one search can be tied together.
package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

// Key is the context key for request IDs.
const Key = contextKey("request-id")

// Header is the HTTP and message header carrying the request ID.
const Header = "X-Request-ID"

// New generates a request ID.
func New() string {
	return uuid.New().String()
}

// WithRequestID stores id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, Key, id)
}

// Ensure returns ctx carrying a request ID, generating one if absent.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := New()
	return WithRequestID(ctx, id), id
}

// FromContext extracts the request ID from the context.
// Returns empty string if not found.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(Key).(string); ok {
		return id
	}
	return ""
}

// Middleware propagates the X-Request-ID header, generating an ID when the
// caller sent none, and echoes it on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = New()
		}

		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}
