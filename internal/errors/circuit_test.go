package errors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker("journal")

	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
	assert.Equal(t, "journal", cb.Name())
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	// Given: a breaker that trips after 3 failures
	cb := NewCircuitBreaker("journal", WithMaxFailures(3))

	// When: failures accumulate
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}

	// Then: the circuit is open and blocks requests
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("journal", WithMaxFailures(3))

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()

	assert.Equal(t, 0, cb.Failures())
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpensAfterTimeout(t *testing.T) {
	// Given: an open breaker with a short reset timeout
	cb := NewCircuitBreaker("journal",
		WithMaxFailures(1),
		WithResetTimeout(20*time.Millisecond))
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())

	// When: the timeout elapses
	time.Sleep(30 * time.Millisecond)

	// Then: one probe is allowed through
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_Execute(t *testing.T) {
	cb := NewCircuitBreaker("journal", WithMaxFailures(2))

	// Successful call passes through
	err := cb.Execute(func() error { return nil })
	require.NoError(t, err)

	// Failures trip the breaker
	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		err = cb.Execute(func() error { return boom })
		assert.ErrorIs(t, err, boom)
	}

	// Open circuit fails fast without calling the function
	called := false
	err = cb.Execute(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	// Given: a tripped breaker past its reset timeout
	cb := NewCircuitBreaker("journal",
		WithMaxFailures(1),
		WithResetTimeout(10*time.Millisecond))
	_ = cb.Execute(func() error { return errors.New("fail") })
	time.Sleep(20 * time.Millisecond)

	// When: the probe call succeeds
	err := cb.Execute(func() error { return nil })

	// Then: the circuit closes again
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_ReopensOnFailedProbe(t *testing.T) {
	cb := NewCircuitBreaker("journal",
		WithMaxFailures(1),
		WithResetTimeout(10*time.Millisecond))
	_ = cb.Execute(func() error { return errors.New("fail") })
	time.Sleep(20 * time.Millisecond)

	// The probe fails, so the circuit snaps back open.
	err := cb.Execute(func() error { return errors.New("still failing") })
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}
