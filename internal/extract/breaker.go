package extract

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrExtractorUnavailable is returned when the breaker is open and calls
// to the extraction backend are being rejected.
var ErrExtractorUnavailable = errors.New("extraction backend unavailable")

// BreakerConfig tunes the circuit breaker guarding the extraction backend.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures required to trip
	// the circuit. Default: 3.
	MaxFailures uint32

	// Timeout is how long the circuit stays open before allowing test
	// requests. Default: 30 seconds.
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of consecutive successes in
	// half-open state required to close the circuit. Default: 2.
	HalfOpenMaxSuccesses uint32
}

// DefaultBreakerConfig returns the breaker settings used when no override
// is configured.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:          3,
		Timeout:              30 * time.Second,
		HalfOpenMaxSuccesses: 2,
	}
}

// BreakerExtractor wraps another Extractor with a circuit breaker so a
// failing extraction backend degrades fast instead of stalling every scan
// batch. It implements Extractor itself.
type BreakerExtractor struct {
	inner   Extractor
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerExtractor wraps inner with a circuit breaker using config.
// Zero-valued config fields fall back to DefaultBreakerConfig.
func NewBreakerExtractor(inner Extractor, config BreakerConfig) *BreakerExtractor {
	defaults := DefaultBreakerConfig()
	if config.MaxFailures == 0 {
		config.MaxFailures = defaults.MaxFailures
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.HalfOpenMaxSuccesses == 0 {
		config.HalfOpenMaxSuccesses = defaults.HalfOpenMaxSuccesses
	}

	settings := gobreaker.Settings{
		Name:        "ExtractorCircuitBreaker",
		MaxRequests: config.HalfOpenMaxSuccesses,
		Interval:    0, // never clear counts periodically
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
	}

	return &BreakerExtractor{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Extract runs the wrapped extractor through the circuit breaker. If the
// circuit is open it returns ErrExtractorUnavailable without calling the
// backend.
func (b *BreakerExtractor) Extract(ctx context.Context, text string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.Extract(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrExtractorUnavailable
		}
		return nil, err
	}

	return result.(*Result), nil
}

// State reports the breaker state as "closed", "open", or "half-open".
func (b *BreakerExtractor) State() string {
	switch b.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
