package utils

import (
	"context"
	"time"
)

const (
	// DefaultTimeout bounds claim reads and writes
	DefaultTimeout = 10 * time.Second

	// LongTimeout bounds blob uploads and downloads
	LongTimeout = 60 * time.Second

	// LLMTimeout bounds requests that call the language model, once per file
	LLMTimeout = 2 * time.Minute

	// ShortTimeout bounds rate limiter lookups
	ShortTimeout = 2 * time.Second
)

// WithTimeout creates a context with default timeout
func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultTimeout)
}

// WithLongTimeout creates a context for blob transfers
func WithLongTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, LongTimeout)
}

// WithLLMTimeout scales the model timeout by the number of documents processed
func WithLLMTimeout(parent context.Context, documents int) (context.Context, context.CancelFunc) {
	if documents < 1 {
		documents = 1
	}
	return context.WithTimeout(parent, time.Duration(documents)*LLMTimeout)
}

// WithShortTimeout creates a context with short timeout for quick operations
func WithShortTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ShortTimeout)
}
