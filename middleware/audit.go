package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"claims-intake-platform/internal/logger"

	"github.com/gin-gonic/gin"
)

// maxAuditBody caps how much of a JSON body is buffered to name changed fields
const maxAuditBody = 1 << 20

// AuditEvent is one mutating request on claims, files or precedents.
// Only field names are recorded; claim bodies carry patient data.
type AuditEvent struct {
	Action     string
	Resource   string
	ResourceID string
	UserID     string
	RequestID  string
	IPAddress  string
	Status     int
	Fields     []string
	Duration   time.Duration
}

// AuditMiddleware logs an audit event for every mutating request
func AuditMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		action := mapHTTPMethodToAction(c.Request.Method)
		if action == "" {
			c.Next()
			return
		}
		start := time.Now()

		var bodyBytes []byte
		if c.Request.Body != nil && strings.HasPrefix(c.ContentType(), "application/json") {
			bodyBytes, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxAuditBody))
			c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(bodyBytes), c.Request.Body))
		}

		c.Next()

		logAuditEvent(createAuditEvent(c, action, bodyBytes, start))
	}
}

func createAuditEvent(c *gin.Context, action string, bodyBytes []byte, start time.Time) AuditEvent {
	resource, id := extractResource(c)
	return AuditEvent{
		Action:     action,
		Resource:   resource,
		ResourceID: id,
		UserID:     GetUserID(c),
		RequestID:  GetRequestID(c),
		IPAddress:  c.ClientIP(),
		Status:     c.Writer.Status(),
		Fields:     changedFields(bodyBytes),
		Duration:   time.Since(start),
	}
}

func logAuditEvent(e AuditEvent) {
	args := []any{
		"action", e.Action,
		"resource", e.Resource,
		"resource_id", e.ResourceID,
		"user_id", e.UserID,
		"request_id", e.RequestID,
		"ip", e.IPAddress,
		"status", e.Status,
		"fields", e.Fields,
		"duration_ms", e.Duration.Milliseconds(),
	}
	if e.Status >= http.StatusBadRequest {
		logger.Warn("audit", args...)
		return
	}
	logger.Info("audit", args...)
}

// mapHTTPMethodToAction maps mutating methods to audit actions; reads are not audited
func mapHTTPMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "CREATE"
	case http.MethodPut, http.MethodPatch:
		return "UPDATE"
	case http.MethodDelete:
		return "DELETE"
	default:
		return ""
	}
}

// extractResource names the resource from the matched route
func extractResource(c *gin.Context) (string, string) {
	path := c.FullPath()
	switch {
	case strings.HasPrefix(path, "/claims/files/"):
		return "file", c.Param("fileId")
	case strings.HasSuffix(path, "/files"):
		return "file", c.Param("claimId")
	case strings.HasPrefix(path, "/claims"):
		return "claim", c.Param("claimId")
	case strings.HasPrefix(path, "/precedents"):
		return "precedent", ""
	case strings.HasPrefix(path, "/auth/"):
		return "session", ""
	case path == "":
		return "unknown", ""
	default:
		return "processing", ""
	}
}

// changedFields returns the sorted top-level keys of a JSON object body
func changedFields(bodyBytes []byte) []string {
	if len(bodyBytes) == 0 {
		return nil
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		return nil
	}

	fields := make([]string, 0, len(body))
	for key := range body {
		fields = append(fields, key)
	}
	sort.Strings(fields)
	return fields
}
