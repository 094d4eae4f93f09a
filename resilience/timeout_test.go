package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeout_Defaults(t *testing.T) {
	assert.Equal(t, 30*time.Second, NewTimeout(TimeoutConfig{}).Config().Timeout)
}

func TestTimeout_ExpiresAsErrTimeout(t *testing.T) {
	tm := NewTimeout(TimeoutConfig{Timeout: 10 * time.Millisecond})
	err := tm.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTimeout_PassesThroughResult(t *testing.T) {
	tm := NewTimeout(TimeoutConfig{Timeout: time.Second})
	require.NoError(t, tm.Execute(context.Background(), func(context.Context) error { return nil }))

	boom := errors.New("boom")
	err := tm.Execute(context.Background(), func(context.Context) error { return boom })
	assert.Equal(t, boom, err)
}

func TestTimeout_ParentCancellationIsNotATimeout(t *testing.T) {
	tm := NewTimeout(TimeoutConfig{Timeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tm.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestTimeout_ContextOutlivesCall(t *testing.T) {
	tm := NewTimeout(TimeoutConfig{Timeout: time.Second})
	ctx, cancel := tm.Context(context.Background())
	_, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.NoError(t, ctx.Err())
	cancel()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestExpired(t *testing.T) {
	parent := context.Background()
	attempt, cancel := context.WithTimeout(parent, time.Nanosecond)
	defer cancel()
	<-attempt.Done()

	assert.NoError(t, Expired(parent, attempt, nil))
	assert.ErrorIs(t, Expired(parent, attempt, errors.New("read: i/o")), ErrTimeout)

	already := Expired(parent, attempt, ErrTimeout)
	assert.Equal(t, ErrTimeout, already)
}

func TestExecuteWithTimeout(t *testing.T) {
	err := ExecuteWithTimeout(context.Background(), 5*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	assert.ErrorIs(t, err, ErrTimeout)
}
