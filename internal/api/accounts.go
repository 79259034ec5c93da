// ABOUTME: HTTP handlers for registration, sessions and account administration
// ABOUTME: Login issues a signed token both in the body and as an HttpOnly cookie

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/2389/commons/internal/auth"
	"github.com/2389/commons/internal/identity"
	"github.com/2389/commons/internal/policy"
	"github.com/2389/commons/internal/store"
)

func parseDOB(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// handleRegister handles POST /api/register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	dob, err := parseDOB(req.DOB)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "dob must be YYYY-MM-DD")
		return
	}

	a, err := s.identity.Register(r.Context(), identity.Registration{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		DOB:       dob,
		Photo:     req.Photo,
	})
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, accountResponse(a, nil))
}

// handleLogin handles POST /api/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		s.sendJSONError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	a, err := s.identity.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		// Unknown usernames look the same as wrong secrets.
		if statusFor(err) == http.StatusNotFound {
			err = identity.ErrInvalidCredential
		}
		s.sendServiceError(w, r, err)
		return
	}

	token, err := s.tokens.Generate(a.ID, s.config.SessionTTL)
	if err != nil {
		s.logger.Error("failed to issue session token", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	auth.SetSessionCookie(w, s.config.CookieName, token, s.config.SessionTTL, s.config.CookieSecure)

	s.logger.Info("login", "username", a.Username)
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(s.config.SessionTTL).UTC().Format(time.RFC3339),
		Account:   accountResponse(a, policy.ActorFor(a)),
	})
}

// handleLogout handles POST /api/logout. Tokens are stateless, so this only
// clears the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, s.config.CookieName)
	w.WriteHeader(http.StatusNoContent)
}

// handleMe handles GET /api/me.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	a, err := s.identity.Validate(r.Context(), actor.ID)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse(a, actor))
}

// handleListAccounts handles GET /api/accounts?limit=N.
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor := auth.ActorFromContext(r.Context())
	accounts, err := s.identity.List(r.Context(), actor, limit)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	resp := make([]AccountResponse, len(accounts))
	for i, a := range accounts {
		resp[i] = accountResponse(a, actor)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetAccount handles GET /api/accounts/{username}.
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	a, err := s.identity.Get(r.Context(), actor, r.PathValue("username"))
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse(a, actor))
}

// handleUpdateProfile handles PATCH /api/accounts/{username}.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	update := identity.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Photo:     req.Photo,
	}
	if req.DOB != nil {
		dob, err := parseDOB(*req.DOB)
		if err != nil || dob == nil {
			s.sendJSONError(w, http.StatusBadRequest, "dob must be YYYY-MM-DD")
			return
		}
		update.DOB = dob
	}

	actor := auth.ActorFromContext(r.Context())
	a, err := s.identity.UpdateProfile(r.Context(), actor, r.PathValue("username"), update)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse(a, actor))
}

// handleChangeRole handles PUT /api/accounts/{username}/role.
func (s *Server) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	err := s.identity.ChangeRole(r.Context(), auth.ActorFromContext(r.Context()), r.PathValue("username"), store.Role(req.Role))
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetBanned handles PUT /api/accounts/{username}/banned.
func (s *Server) handleSetBanned(w http.ResponseWriter, r *http.Request) {
	var req BannedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	err := s.identity.SetBanned(r.Context(), auth.ActorFromContext(r.Context()), r.PathValue("username"), req.Banned)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetPassword handles PUT /api/accounts/{username}/password.
// Changing your own secret requires old_password; admins reset anyone's
// secret without it.
func (s *Server) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	actor := auth.ActorFromContext(r.Context())
	username := r.PathValue("username")

	var err error
	if actor.Username == username && req.OldPassword != "" {
		err = s.identity.ChangeOwnCredential(r.Context(), actor, req.OldPassword, req.NewPassword)
	} else {
		err = s.identity.ResetCredential(r.Context(), actor, username, req.NewPassword)
	}
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteAccount handles DELETE /api/accounts/{username}.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	err := s.identity.Delete(r.Context(), auth.ActorFromContext(r.Context()), r.PathValue("username"))
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// queryLimit parses the optional ?limit=N parameter.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, errInvalidLimit
	}
	return limit, nil
}
