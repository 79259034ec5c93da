// ABOUTME: JSON encoding helpers and the error to HTTP status mapping
// ABOUTME: Known sentinels surface their message; everything else is a logged 500

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/2389/commons/internal/auth"
	"github.com/2389/commons/internal/content"
	"github.com/2389/commons/internal/identity"
	"github.com/2389/commons/internal/policy"
	"github.com/2389/commons/internal/store"
)

var errInvalidLimit = errors.New("limit must be a non-negative integer")

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sendJSONError writes a JSON error response with the given status code.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrDuplicateUsername),
		errors.Is(err, store.ErrDuplicateEmail),
		errors.Is(err, store.ErrAlreadyLiked),
		errors.Is(err, store.ErrProtectedAccount):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, identity.ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, identity.ErrAccountBanned),
		errors.Is(err, policy.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, identity.ErrInvalidInput),
		errors.Is(err, content.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sendServiceError writes the response for an error returned by a service.
// Forbidden for an anonymous caller is reported as 401.
func (s *Server) sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		s.sendJSONError(w, status, "internal server error")
		return
	case http.StatusServiceUnavailable:
		s.logger.Error("store unavailable", "method", r.Method, "path", r.URL.Path, "error", err)
		s.sendJSONError(w, status, "service unavailable")
		return
	case http.StatusForbidden:
		if errors.Is(err, policy.ErrForbidden) && auth.ActorFromContext(r.Context()) == nil {
			s.sendJSONError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
	}
	s.sendJSONError(w, status, err.Error())
}
