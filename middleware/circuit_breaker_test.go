package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker(2, time.Second)
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	failing := &counter{err: errBackend}
	healthy := &counter{rows: sampleRows()}

	_, err := cb.Process(ctx, selectOp("users"), failing.next)
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, StateClosed, cb.State())

	_, err = cb.Process(ctx, selectOp("users"), failing.next)
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, StateOpen, cb.State())

	res, err := cb.Process(ctx, selectOp("users"), healthy.next)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Nil(t, res)
	assert.Equal(t, 0, healthy.calls)

	// The trial call after the timeout fails and reopens the breaker.
	now = now.Add(2 * time.Second)
	_, err = cb.Process(ctx, selectOp("users"), failing.next)
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, 3, failing.calls)

	now = now.Add(2 * time.Second)
	res, err = cb.Process(ctx, selectOp("users"), healthy.next)
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_ResetsOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Second)
	ctx := context.Background()
	failing := &counter{err: errBackend}
	healthy := &counter{rows: sampleRows()}

	cb.Process(ctx, selectOp("users"), failing.next)
	cb.Process(ctx, selectOp("users"), healthy.next)
	cb.Process(ctx, selectOp("users"), failing.next)
	assert.Equal(t, StateClosed, cb.State(), "failures must be consecutive")

	canceled := &counter{err: context.Canceled}
	cb.Process(ctx, selectOp("users"), canceled.next)
	cb.Process(ctx, selectOp("users"), canceled.next)
	assert.Equal(t, StateClosed, cb.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
