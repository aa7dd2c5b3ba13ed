package proxy

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/caching-proxy/pkg/cache"
)

var (
	originRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cacheproxy_origin_retries_total",
		Help: "Total number of origin retry attempts",
	})

	originRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cacheproxy_origin_retry_exhausted_total",
		Help: "Total number of times origin retry attempts were exhausted",
	})
)

// ErrRetryExhausted is returned when all retry attempts are exhausted.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// RetryConfig holds the configuration for transport retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int

	// InitialBackoff is the first backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff.
	MaxBackoff time.Duration

	// BackoffMultiplier is the exponential growth factor.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration. Transport
// errors are transient by nature, so backoffs start short.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// retryWithBackoff executes fn with exponential backoff and jitter. Only
// transport errors are retried; malformed requests and context
// cancellation abort immediately.
func retryWithBackoff(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Debug().Int("attempt", attempt).Msg("Origin request succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if errors.Is(err, cache.ErrInvalidRequest) || ctx.Err() != nil {
			return lastErr
		}
		if attempt >= config.MaxAttempts {
			break
		}

		originRetriesTotal.Inc()

		// ±20% jitter so coordinated retries spread out.
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		log.Debug().
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying origin request after backoff")

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry: %w", lastErr)
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	originRetryExhaustedTotal.Inc()
	return fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, config.MaxAttempts, lastErr)
}
