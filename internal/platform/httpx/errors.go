// Package httpx provides HTTP response utilities.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/parkyard/parkyard/internal/shared"
)

// StatusForKind maps an error kind to its HTTP status.
func StatusForKind(kind shared.Kind) int {
	switch kind {
	case shared.KindValidation:
		return http.StatusBadRequest
	case shared.KindStateConflict:
		return http.StatusConflict
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindPermission:
		return http.StatusForbidden
	case shared.KindRemote, shared.KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	e, ok := shared.AsError(err)
	if !ok || e.Kind == shared.KindInternal {
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	status := StatusForKind(e.Kind)
	if e.Code == shared.ErrTokenMissing.Code || e.Code == shared.ErrTokenInvalid.Code || e.Code == shared.ErrInvalidCredentials.Code {
		status = http.StatusUnauthorized
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProblemDetail{
		Title:   http.StatusText(status),
		Status:  status,
		Detail:  e.Message,
		Kind:    string(e.Kind),
		Code:    e.Code,
		Details: e.Details,
	})
}
