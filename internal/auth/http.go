// ABOUTME: HTTP middleware resolving the session token into an actor on every request
// ABOUTME: Banned, deleted or expired sessions fall back to anonymous and lose their cookie

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/commons/internal/identity"
	"github.com/2389/commons/internal/policy"
	"github.com/2389/commons/internal/store"
)

// DefaultCookieName is used when no cookie name is configured.
const DefaultCookieName = "commons_session"

// AccountValidator reloads the account behind a token and rejects banned
// or deleted accounts.
type AccountValidator interface {
	Validate(ctx context.Context, accountID string) (*store.Account, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// Middleware resolves the caller's session from the Authorization header or
// the session cookie. Requests whose session no longer validates continue
// as anonymous; a stale cookie is cleared. When the account cannot be
// loaded at all the request fails with 503 and the cookie is kept.
func Middleware(validator AccountValidator, verifier TokenVerifier, cookieName string) func(http.Handler) http.Handler {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	logger := slog.Default().With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			fromCookie := false
			if errMsg != "" {
				cookie, err := r.Cookie(cookieName)
				if err != nil || cookie.Value == "" {
					next.ServeHTTP(w, r) // Continue as anonymous
					return
				}
				token = cookie.Value
				fromCookie = true
			}

			accountID, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("rejected session token", "error", err)
				if fromCookie {
					ClearSessionCookie(w, cookieName)
				}
				next.ServeHTTP(w, r)
				return
			}

			account, err := validator.Validate(r.Context(), accountID)
			if err != nil && !sessionEnded(err) {
				logger.Error("loading session account", "account_id", accountID, "error", err)
				writeError(w, http.StatusServiceUnavailable, "service unavailable")
				return
			}
			if err != nil {
				logger.Info("session no longer valid", "account_id", accountID, "error", err)
				if fromCookie {
					ClearSessionCookie(w, cookieName)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithActor(r.Context(), policy.ActorFor(account))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionEnded reports whether err means the account behind a valid token
// is gone or banned.
func sessionEnded(err error) bool {
	return errors.Is(err, store.ErrNotFound) || errors.Is(err, identity.ErrAccountBanned)
}

// RequireAuth creates an HTTP middleware that rejects anonymous requests.
// Must be used after Middleware.
func RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ActorFromContext(r.Context()) == nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdminHTTP creates an HTTP middleware that requires the admin role.
// Must be used after Middleware.
func RequireAdminHTTP() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			if actor == nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if !actor.IsAdmin() {
				writeError(w, http.StatusForbidden, "admin role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetSessionCookie stores the session token in an HttpOnly cookie.
func SetSessionCookie(w http.ResponseWriter, name, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
