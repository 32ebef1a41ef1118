// Package scheduler drives decision cycles on a trailing timer: the next
// cycle is armed only after the previous one has returned, so cycles never
// overlap no matter how slow the exchange is.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"

	"meanReversionBot/internal/domain"
	"meanReversionBot/internal/ports"
)

// CycleFunc runs one decision cycle.
type CycleFunc func(ctx context.Context) error

// Config holds scheduler settings.
type Config struct {
	Interval   time.Duration // Pause between the end of one cycle and the start of the next
	MaxRetries int           // Retries of a transient failure within one slot
	MinBackoff time.Duration // Defaults to 1s
	MaxBackoff time.Duration // Defaults to 30s
	Logger     ports.Logger
}

// Stats are cumulative counters since the scheduler was created.
type Stats struct {
	Cycles    uint64 // Slots that ran to completion, successful or skipped
	Succeeded uint64
	Skipped   uint64
	Retried   uint64
}

// Scheduler runs a CycleFunc repeatedly.
type Scheduler struct {
	cfg Config

	cycles    atomic.Uint64
	succeeded atomic.Uint64
	skipped   atomic.Uint64
	retried   atomic.Uint64
}

// New creates a scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for scheduler")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries cannot be negative, got %d", cfg.MaxRetries)
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = 30 * time.Second
		if cfg.MaxBackoff < cfg.MinBackoff {
			cfg.MaxBackoff = cfg.MinBackoff
		}
	}
	return &Scheduler{cfg: cfg}, nil
}

// IsFatal reports whether err must stop the bot rather than skip a slot.
func IsFatal(err error) bool {
	return errors.Is(err, domain.ErrInvalidState) ||
		errors.Is(err, ports.ErrAuthenticationFailed) ||
		errors.Is(err, ports.ErrInvalidAPIKeys) ||
		errors.Is(err, ports.ErrConfigurationError)
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Cycles:    s.cycles.Load(),
		Succeeded: s.succeeded.Load(),
		Skipped:   s.skipped.Load(),
		Retried:   s.retried.Load(),
	}
}

// Run executes cycle immediately and then once per Interval after each
// completion. It returns nil when ctx is done and the fatal error otherwise.
func (s *Scheduler) Run(ctx context.Context, cycle CycleFunc) error {
	s.cfg.Logger.Info(ctx, "Scheduler started", map[string]interface{}{
		"interval": s.cfg.Interval.String(), "maxRetries": s.cfg.MaxRetries,
	})

	for {
		if err := s.runSlot(ctx, cycle); err != nil {
			s.cfg.Logger.Error(ctx, err, "Scheduler halted by fatal error", s.statsFields())
			return err
		}
		if ctx.Err() != nil {
			s.cfg.Logger.Info(ctx, "Scheduler stopped", s.statsFields())
			return nil
		}

		timer := time.NewTimer(s.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.cfg.Logger.Info(ctx, "Scheduler stopped", s.statsFields())
			return nil
		case <-timer.C:
		}
	}
}

// runSlot runs one cycle, retrying transient failures with backoff.
// Only fatal errors are returned.
func (s *Scheduler) runSlot(ctx context.Context, cycle CycleFunc) error {
	b := &backoff.Backoff{
		Min:    s.cfg.MinBackoff,
		Max:    s.cfg.MaxBackoff,
		Factor: 2,
		Jitter: true,
	}

	for attempt := 0; ; attempt++ {
		err := cycle(ctx)
		switch {
		case err == nil:
			s.cycles.Add(1)
			s.succeeded.Add(1)
			return nil
		case IsFatal(err):
			return err
		case ctx.Err() != nil:
			return nil
		case ports.IsTransient(err) && attempt < s.cfg.MaxRetries:
			delay := b.Duration()
			s.retried.Add(1)
			s.cfg.Logger.Warn(ctx, "Transient cycle failure, retrying", map[string]interface{}{
				"attempt": attempt + 1, "delay": delay.String(), "error": err.Error(),
			})
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		default:
			s.cycles.Add(1)
			s.skipped.Add(1)
			s.cfg.Logger.Warn(ctx, "Cycle skipped", map[string]interface{}{
				"attempts": attempt + 1, "error": err.Error(),
			})
			return nil
		}
	}
}

func (s *Scheduler) statsFields() map[string]interface{} {
	st := s.Stats()
	return map[string]interface{}{
		"cycles": st.Cycles, "succeeded": st.Succeeded, "skipped": st.Skipped, "retried": st.Retried,
	}
}
