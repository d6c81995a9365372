package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrBackendUnavailable is returned while the breaker rejects calls.
var ErrBackendUnavailable = errors.New("rendering backend unavailable")

// BreakerConfig tunes the circuit breaker around a backend.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// BreakerBackend guards another Backend with a circuit breaker so a failing
// renderer is not hammered by repeated exports.
type BreakerBackend struct {
	next   Backend
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewBreakerBackend wraps next.
func NewBreakerBackend(next Backend, cfg BreakerConfig, logger *zap.Logger) *BreakerBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Name == "" {
		cfg.Name = "render-" + next.Extension()
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("render breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &BreakerBackend{next: next, cb: gobreaker.NewCircuitBreaker(settings), logger: logger}
}

// Render delegates to the wrapped backend through the breaker.
func (b *BreakerBackend) Render(ctx context.Context, doc *Document, opts PageOptions) ([]byte, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Render(ctx, doc, opts)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, b.cb.Name())
	}
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// State exposes the breaker state for health reporting.
func (b *BreakerBackend) State() string {
	return b.cb.State().String()
}

func (b *BreakerBackend) ContentType() string { return b.next.ContentType() }

func (b *BreakerBackend) Extension() string { return b.next.Extension() }
