// ABOUTME: HTTP handler exposing the administrative audit log
// ABOUTME: Supports filtering by actor, action, target type and start time

package api

import (
	"net/http"
	"time"

	"github.com/2389/commons/internal/store"
)

// handleListAudit handles GET /api/audit.
// Query params: actor, action, target_type, since (RFC3339), limit.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryLimit(r)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := store.AuditFilter{Limit: limit}
	if v := q.Get("actor"); v != "" {
		filter.ActorID = &v
	}
	if v := q.Get("action"); v != "" {
		action := store.AuditAction(v)
		filter.Action = &action
	}
	if v := q.Get("target_type"); v != "" {
		filter.TargetType = &v
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.sendJSONError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = &since
	}

	entries, err := s.store.ListAuditLog(r.Context(), filter)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	resp := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		resp[i] = auditEntryResponse(e)
	}
	writeJSON(w, http.StatusOK, resp)
}
