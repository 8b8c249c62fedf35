package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/projecthub/apiserver/internal/logging"
	"github.com/projecthub/apiserver/internal/services"
)

var statusByCode = map[string]int{
	services.CodeInvalidInput:        http.StatusBadRequest,
	services.CodeUnauthenticated:     http.StatusUnauthorized,
	services.CodeUnauthorized:        http.StatusUnauthorized,
	services.CodeForbidden:           http.StatusForbidden,
	services.CodeNotFound:            http.StatusNotFound,
	services.CodeConflict:            http.StatusConflict,
	services.CodeDuplicateName:       http.StatusBadRequest,
	services.CodeServerMisconfigured: http.StatusInternalServerError,
	services.CodeInternal:            http.StatusInternalServerError,
}

// statusFor maps a service error code to its HTTP status.
func statusFor(err error) int {
	if status, ok := statusByCode[services.Code(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// writeServiceError answers with the status and message carried by err.
// Server-side failures are logged with their full context first.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.LogError(logger, "request failed", err,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}
	writeError(w, status, services.Message(err))
}
