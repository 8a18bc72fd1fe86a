package ai

import (
	"context"
	"errors"
	"net/http"
	"time"

	"claims-intake-platform/internal/logger"
	"claims-intake-platform/internal/telemetry"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// guard applies rate limiting and a circuit breaker to upstream calls
type guard struct {
	service string
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func newGuard(service string, requestsPerSecond float64, metrics *telemetry.Metrics) *guard {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "service", name, "from", from.String(), "to", to.String())
			metrics.RecordCircuitBreakerState(name, to.String())
		},
	})

	return &guard{
		service: service,
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// do waits for the limiter then runs fn through the breaker.
// statusOf extracts the upstream HTTP status from fn's error when it has one.
func (g *guard) do(ctx context.Context, fn func() (interface{}, error), statusOf func(error) int) (interface{}, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := g.breaker.Execute(fn)
	if err == nil {
		return result, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &UpstreamError{
			Service:    g.service,
			StatusCode: http.StatusServiceUnavailable,
			Message:    "circuit breaker open, upstream temporarily disabled",
			Err:        err,
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	status := 0
	if statusOf != nil {
		status = statusOf(err)
	}
	return nil, upstreamError(g.service, status, err)
}
