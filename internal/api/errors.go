package api

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-accounts/internal/account"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Message     string            `json:"message"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
}

// messageResponse is the body of successful requests that carry no data.
type messageResponse struct {
	Message string `json:"message"`
}

// Messages for failures produced by the HTTP layer itself.
const (
	msgInvalidBody  = "Invalid JSON body"
	msgUnauthorized = "Unauthorized"
	msgForbidden    = "Forbidden"
	msgInternal     = "An internal error occurred"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeMessage writes a 200 response with a plain message.
func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, messageResponse{Message: message})
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, msgUnauthorized)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, msgInternal)
}

// statusOf maps a service failure kind to an HTTP status.
func statusOf(kind account.Kind) int {
	switch kind {
	case account.KindValidation, account.KindToken:
		return http.StatusBadRequest
	case account.KindAuthentication:
		return http.StatusUnauthorized
	case account.KindAuthorization:
		return http.StatusForbidden
	case account.KindNotFound:
		return http.StatusNotFound
	case account.KindConflict:
		return http.StatusConflict
	case account.KindRateLimited:
		return http.StatusTooManyRequests
	case account.KindInternal, account.KindDelivery:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError translates an error returned by account.Service. The
// cause of internal failures has already been logged by the service and is
// never sent to the client.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var e *account.Error
	if !errors.As(err, &e) {
		s.logger.ErrorContext(r.Context(), "unexpected handler error",
			"error", err,
			"path", r.URL.Path,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w)
		return
	}

	status := statusOf(e.Kind)
	if status == http.StatusInternalServerError {
		writeInternalError(w)
		return
	}
	if e.Kind == account.KindRateLimited && e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(e.RetryAfter.Seconds()))))
	}
	writeJSON(w, status, errorResponse{Message: e.Message, FieldErrors: e.Fields})
}

// decodeJSON decodes the request body into v. An empty body leaves v
// untouched when allowEmpty is set. On failure a 400 has been written and
// false is returned.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	writeBadRequest(w, msgInvalidBody)
	return false
}
