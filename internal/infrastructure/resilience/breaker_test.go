package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerPassesThroughWhileClosed(t *testing.T) {
	b := New("test", Settings{})
	for i := 0; i < 10; i++ {
		require.NoError(t, b.Do(func() error { return nil }))
	}
	assert.Equal(t, Closed, b.State())
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	b := New("test", Settings{Trip: 3, Cooldown: time.Hour})
	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Do(func() error { return boom }), boom)
	}
	assert.Equal(t, Open, b.State())

	// Calls are rejected without running fn.
	ran := false
	err := b.Do(func() error { ran = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, ran)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := New("test", Settings{Trip: 3, Cooldown: time.Hour})
	boom := errors.New("boom")
	b.Do(func() error { return boom })
	b.Do(func() error { return boom })
	require.NoError(t, b.Do(func() error { return nil }))
	b.Do(func() error { return boom })
	b.Do(func() error { return boom })
	assert.Equal(t, Closed, b.State())
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	b := New("test", Settings{Trip: 1, Cooldown: time.Millisecond})
	b.Do(func() error { return errors.New("boom") })
	require.Equal(t, Open, b.State())

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, HalfOpen, b.State())

	// A successful probe closes the circuit again.
	require.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, Closed, b.State())
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	b := New("test", Settings{Trip: 1, Cooldown: time.Millisecond})
	boom := errors.New("boom")
	b.Do(func() error { return boom })
	time.Sleep(5 * time.Millisecond)
	require.Equal(t, HalfOpen, b.State())

	assert.ErrorIs(t, b.Do(func() error { return boom }), boom)
	assert.Equal(t, Open, b.State())
}

func TestBreakerReportsTransitions(t *testing.T) {
	var transitions []string
	b := New("saves", Settings{Trip: 1, Cooldown: time.Hour, OnStateChange: func(name string, from, to State) {
		transitions = append(transitions, name+": "+from.String()+" -> "+to.String())
	}})
	b.Do(func() error { return errors.New("boom") })
	assert.Equal(t, []string{"saves: closed -> open"}, transitions)
}
