// Package ai wraps the external language model and embedding services.
// Every failure of an upstream call is returned as an *UpstreamError; nothing
// is replaced by a canned answer.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNotConfigured is returned when no API key is set for a provider
var ErrNotConfigured = errors.New("ai provider not configured")

// UpstreamError carries the status and message of a failed upstream call
type UpstreamError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream failure (status %d): %s", e.Service, e.StatusCode, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// upstreamError wraps err unless it already is an *UpstreamError
func upstreamError(service string, status int, err error) error {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return err
	}
	if status == 0 {
		status = http.StatusBadGateway
	}
	return &UpstreamError{Service: service, StatusCode: status, Message: err.Error(), Err: err}
}

// WrapUpstream marks err as a failure of the named external service.
// Cancellations and deadlines pass through so they keep their own meaning.
func WrapUpstream(service string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return upstreamError(service, 0, err)
}
