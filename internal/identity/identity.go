// Package identity carries the caller's user identity through request contexts.
//
// The gateway sits behind the primary application server, which authenticates
// users and forwards the user ID in a trusted header.
package identity

import (
	"context"
	"net/http"
	"regexp"
	"strings"
)

const (
	UserHeaderName        = "X-User-ID"
	SessionHeaderName     = "X-Session-ID"
	DefaultSessionIDValue = "default"
)

type contextKey int

const (
	userIDKey contextKey = iota
	sessionIDKey
)

var (
	userIDPattern    = regexp.MustCompile(`^[A-Za-z0-9._:@-]{1,128}$`)
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext extracts the tab session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return DefaultSessionIDValue
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func sanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !sessionIDPattern.MatchString(id) {
		return DefaultSessionIDValue
	}
	return id
}

func userIDFromRequest(r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(UserHeaderName))
	if id == "" {
		// Browsers cannot set headers on WebSocket upgrades.
		id = strings.TrimSpace(r.URL.Query().Get("user_id"))
	}
	if !userIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}

// Middleware rejects requests without a valid user ID and stores the ID and
// session in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromRequest(r)
		if !ok {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}

		ctx := WithUserID(r.Context(), userID)
		ctx = context.WithValue(ctx, sessionIDKey, sanitizeSessionID(r.Header.Get(SessionHeaderName)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
