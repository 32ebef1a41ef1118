package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meanReversionBot/internal/domain"
	"meanReversionBot/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestScheduler(t *testing.T, retries int) *Scheduler {
	t.Helper()
	s, err := New(Config{
		Interval:   time.Millisecond,
		MaxRetries: retries,
		MinBackoff: time.Millisecond,
		MaxBackoff: 2 * time.Millisecond,
		Logger:     &mockLogger{},
	})
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Interval: time.Second})
	assert.Error(t, err)

	_, err = New(Config{Logger: &mockLogger{}})
	assert.Error(t, err)

	_, err = New(Config{Interval: time.Second, MaxRetries: -1, Logger: &mockLogger{}})
	assert.Error(t, err)

	s, err := New(Config{Interval: time.Second, Logger: &mockLogger{}})
	require.NoError(t, err)
	assert.Equal(t, time.Second, s.cfg.MinBackoff)
	assert.Equal(t, 30*time.Second, s.cfg.MaxBackoff)
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(fmt.Errorf("decide: %w", domain.ErrInvalidState)))
	assert.True(t, IsFatal(ports.ErrInvalidAPIKeys))
	assert.False(t, IsFatal(domain.ErrInsufficientData))
	assert.False(t, IsFatal(ports.ErrExchangeUnavailable))
	assert.False(t, IsFatal(nil))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	s := newTestScheduler(t, 0)
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	err := s.Run(ctx, func(ctx context.Context) error {
		if calls.Add(1) == 3 {
			cancel()
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, uint64(3), s.Stats().Succeeded)
}

func TestRun_FatalErrorHalts(t *testing.T) {
	s := newTestScheduler(t, 3)

	var calls atomic.Int32
	err := s.Run(context.Background(), func(ctx context.Context) error {
		calls.Add(1)
		return fmt.Errorf("restore: %w", domain.ErrInvalidState)
	})

	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, int32(1), calls.Load(), "fatal errors are not retried")
}

func TestRun_RetriesTransientThenSucceeds(t *testing.T) {
	s := newTestScheduler(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	err := s.Run(ctx, func(ctx context.Context) error {
		n := calls.Add(1)
		if n <= 2 {
			return fmt.Errorf("fetch: %w", ports.ErrExchangeUnavailable)
		}
		cancel()
		return nil
	})

	require.NoError(t, err)
	st := s.Stats()
	assert.Equal(t, uint64(2), st.Retried)
	assert.Equal(t, uint64(1), st.Succeeded)
	assert.Equal(t, uint64(1), st.Cycles)
}

func TestRun_SkipsAfterRetriesExhausted(t *testing.T) {
	s := newTestScheduler(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	err := s.Run(ctx, func(ctx context.Context) error {
		n := calls.Add(1)
		if n == 4 {
			cancel()
			return nil
		}
		return ports.ErrTimeout
	})

	require.NoError(t, err)
	st := s.Stats()
	assert.Equal(t, uint64(1), st.Skipped, "first slot gives up after 1 try + 2 retries")
	assert.Equal(t, uint64(2), st.Retried)
	assert.Equal(t, int32(4), calls.Load())
}

func TestRun_NonTransientErrorSkipsWithoutRetry(t *testing.T) {
	s := newTestScheduler(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	err := s.Run(ctx, func(ctx context.Context) error {
		if calls.Add(1) == 2 {
			cancel()
		}
		return fmt.Errorf("signal: %w", domain.ErrInsufficientData)
	})

	require.NoError(t, err)
	st := s.Stats()
	assert.Zero(t, st.Retried)
	assert.Equal(t, uint64(1), st.Skipped)
}

func TestRun_CyclesNeverOverlap(t *testing.T) {
	s := newTestScheduler(t, 0)
	ctx, cancel := context.WithCancel(context.Background())

	var inFlight, maxInFlight, calls atomic.Int32
	err := s.Run(ctx, func(ctx context.Context) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		// Longer than the interval: a fixed-rate ticker would pile up here.
		time.Sleep(3 * time.Millisecond)
		if calls.Add(1) == 5 {
			cancel()
		}
		return errors.New("slow cycle")
	})

	require.NoError(t, err)
	assert.Equal(t, int32(1), maxInFlight.Load())
}
