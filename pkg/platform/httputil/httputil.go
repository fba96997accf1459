package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	id "docucred/pkg/domain"
	dErrors "docucred/pkg/domain-errors"
	"docucred/pkg/requestcontext"
)

// ErrorResponse is the JSON envelope for every error the API returns.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:         http.StatusBadRequest,
	dErrors.CodeValidation:         http.StatusBadRequest,
	dErrors.CodeDuplicateUsername:  http.StatusBadRequest,
	dErrors.CodeInvalidCredentials: http.StatusBadRequest,
	dErrors.CodeUnauthorized:       http.StatusUnauthorized,
	dErrors.CodeNotFound:           http.StatusNotFound,
	dErrors.CodeTimeout:            http.StatusGatewayTimeout,
	dErrors.CodeUpstream:           http.StatusInternalServerError,
	dErrors.CodeInternal:           http.StatusInternalServerError,
}

// StatusFor maps a domain code to its HTTP status. Unmapped codes are 500.
func StatusFor(code dErrors.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError is the single place domain errors become HTTP responses. Only
// the code and client-safe message are rendered; anything that is not a
// domain error is reported as an opaque internal_error.
func WriteError(w http.ResponseWriter, err error) {
	domainErr, ok := dErrors.As(err)
	if !ok {
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: string(dErrors.CodeInternal)})
		return
	}
	WriteJSON(w, StatusFor(domainErr.Code), ErrorResponse{
		Error:       string(domainErr.Code),
		Description: domainErr.Message,
	})
}

// RequireUserID reads the authenticated user. Handlers mounted behind
// RequireAuth always have one, so a miss is reported as internal.
func RequireUserID(ctx context.Context, logger *slog.Logger) (id.UserID, error) {
	userID := requestcontext.UserID(ctx)
	if !userID.IsNil() {
		return userID, nil
	}
	if logger != nil {
		logger.ErrorContext(ctx, "user missing from authenticated request",
			"request_id", requestcontext.RequestID(ctx))
	}
	return id.UserID{}, dErrors.New(dErrors.CodeInternal, "authentication context error")
}
