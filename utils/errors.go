package utils

import (
	"context"
	"errors"
	"net/http"

	"claims-intake-platform/internal/ai"
	"claims-intake-platform/internal/blobstore"
	"claims-intake-platform/internal/claims"
	"claims-intake-platform/internal/logger"
	"claims-intake-platform/services"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithUnauthorized sends a 401 Unauthorized error
func RespondWithUnauthorized(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnauthorized, "unauthorized", message, nil)
}

// RespondWithForbidden sends a 403 Forbidden error
func RespondWithForbidden(c *gin.Context, message string) {
	RespondWithError(c, http.StatusForbidden, "forbidden", message, nil)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// RespondWithServiceError maps a service error onto the error envelope
func RespondWithServiceError(c *gin.Context, err error) {
	status, code := classify(err)

	var upstream *ai.UpstreamError
	if errors.As(err, &upstream) {
		RespondWithError(c, status, code, err.Error(), gin.H{
			"service":     upstream.Service,
			"status_code": upstream.StatusCode,
			"message":     upstream.Message,
		})
		return
	}

	if status == http.StatusInternalServerError && code == "internal_error" {
		logger.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	RespondWithError(c, status, code, err.Error(), nil)
}

func classify(err error) (int, string) {
	var upstream *ai.UpstreamError
	switch {
	case errors.Is(err, blobstore.ErrNotFound),
		errors.Is(err, claims.ErrNotFound),
		errors.Is(err, services.ErrNoPrecedent):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, blobstore.ErrCorrupt):
		return http.StatusInternalServerError, "corruption"
	case errors.Is(err, claims.ErrUpdateConflict),
		errors.Is(err, claims.ErrDuplicateReference):
		return http.StatusConflict, "conflict"
	case errors.Is(err, claims.ErrInvalidStatus),
		errors.Is(err, services.ErrNotPDF):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, services.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "file_too_large"
	case errors.As(err, &upstream), errors.Is(err, ai.ErrNoJSON):
		return http.StatusBadGateway, "upstream_failure"
	case errors.Is(err, ai.ErrNotConfigured):
		return http.StatusServiceUnavailable, "not_configured"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
