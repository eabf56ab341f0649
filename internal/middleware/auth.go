package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"culturehub-api/internal/model"
	"culturehub-api/pkg/apierror"
)

const (
	// SessionKey is the key for storing session data in request context.
	SessionKey contextKey = "session"
	// TokenKey is the key for storing the raw session token in request context.
	TokenKey contextKey = "token"
)

// SessionValidator resolves a bearer token to its session.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*model.SessionData, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Sessions SessionValidator
}

// NewAuthMiddleware creates an authentication middleware with injected dependencies.
// Routes that do not need an account are mounted outside of it.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				writeError(w, apierror.Unauthorized("Authentication required. Use Authorization: Bearer or X-Token header."))
				return
			}

			session, err := cfg.Sessions.Validate(r.Context(), token)
			if err != nil {
				if errors.Is(err, model.ErrTransient) {
					writeError(w, apierror.ServiceUnavailable(""))
					return
				}
				writeError(w, apierror.Unauthorized("Invalid or expired token"))
				return
			}

			ctx := context.WithValue(r.Context(), SessionKey, session)
			ctx = context.WithValue(ctx, TokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest extracts the session token from the Authorization header,
// falling back to X-Token.
func TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("X-Token"))
}

// AdminKey rejects requests whose X-Admin-Key header does not match key. An
// empty key disables the protected routes entirely.
func AdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				writeError(w, apierror.Forbidden("admin endpoints are disabled"))
				return
			}
			if r.Header.Get("X-Admin-Key") != key {
				writeError(w, apierror.Unauthorized("Invalid admin key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

// GetSession retrieves session data from request context.
func GetSession(ctx context.Context) *model.SessionData {
	if data, ok := ctx.Value(SessionKey).(*model.SessionData); ok {
		return data
	}
	return nil
}

// GetToken retrieves the raw session token from request context.
func GetToken(ctx context.Context) string {
	if token, ok := ctx.Value(TokenKey).(string); ok {
		return token
	}
	return ""
}
