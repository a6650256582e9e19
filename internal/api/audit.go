package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-accounts/internal/audit"
)

var (
	errNotNonNegative = errors.New("must be a non-negative integer")
	errNotTimestamp   = errors.New("must be an RFC 3339 timestamp")
)

// handleListAuditLogs pages through the audit trail, newest first. Admin only.
//
// Query parameters: action (login.failed, token.reuse_detected, ...),
// entity_type (account or refresh_token), entity_id, actor_id, since and
// until (RFC 3339), limit (default 50, max 200) and offset.
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeError(w, http.StatusServiceUnavailable, "audit logging not configured")
		return
	}

	filter, field, err := auditFilter(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Message:     "Invalid query",
			FieldErrors: map[string]string{field: err.Error()},
		})
		return
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "listing audit logs", "error", err)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// auditFilter builds a Filter from q. On failure it also returns the
// offending parameter name.
func auditFilter(q url.Values) (audit.Filter, string, error) {
	f := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		ActorID:    q.Get("actor_id"),
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &f.Limit}, {"offset", &f.Offset}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, p.name, errNotNonNegative
		}
		*p.dst = n
	}

	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"since", &f.Since}, {"until", &f.Until}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, p.name, errNotTimestamp
		}
		*p.dst = t
	}

	return f, "", nil
}
