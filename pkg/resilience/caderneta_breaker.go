// Package resilience wraps outbound calls in circuit breakers.
package resilience

import (
	"errors"
	"time"

	"caderneta_server/pkg/logger"

	"github.com/sony/gobreaker"
)

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	Name                string
	MaxRequests         uint32        // allowed while half-open
	Interval            time.Duration // closed-state counter reset
	Timeout             time.Duration // open-state duration
	ConsecutiveFailures uint32
	FailureRatio        float64
	MinRequests         uint32 // before FailureRatio applies
}

// DefaultBreakerConfig returns default breaker settings
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		MaxRequests:         3,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		FailureRatio:        0.6,
		MinRequests:         10,
	}
}

// NewBreaker creates a circuit breaker that ignores permanent errors.
func NewBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures > cfg.ConsecutiveFailures {
				return true
			}
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithField("breaker", name).Warn("circuit breaker state changed from %s to %s", from, to)
		},
	})
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as a caller-side failure that must not trip the breaker.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Execute runs fn under cb. Errors marked Permanent are returned to the
// caller but counted as successes by the breaker.
func Execute(cb *gobreaker.CircuitBreaker, fn func() error) error {
	var permanent error
	_, err := cb.Execute(func() (interface{}, error) {
		err := fn()
		var p *permanentError
		if errors.As(err, &p) {
			permanent = p.err
			return nil, nil
		}
		return nil, err
	})
	if permanent != nil {
		return permanent
	}
	return err
}

// IsOpen reports whether err came from a breaker refusing the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
