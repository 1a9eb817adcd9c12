package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func times(n int, f func()) {
	for ; n > 0; n-- {
		f()
	}
}

func failOnce(t *testing.T, b *Breaker) {
	t.Helper()
	err := b.Execute(func() error { return errBoom })
	assert.ErrorIs(t, err, errBoom)
}

func succeedOnce(t *testing.T, b *Breaker) {
	t.Helper()
	err := b.Execute(func() error { return nil })
	assert.NoError(t, err)
}

func TestNewBreakerStartsClosed(t *testing.T) {
	b := newBreaker("b1", Settings{FailureThreshold: 3, OpenDuration: time.Minute}, nil)
	assert.Equal(t, Closed, b.State())
}

func TestOpensAfterThreshold(t *testing.T) {
	b := newBreaker("b1", Settings{FailureThreshold: 3, OpenDuration: time.Minute}, nil)

	times(2, func() { failOnce(t, b) })
	assert.Equal(t, Closed, b.State(), "should not open before reaching the threshold")

	failOnce(t, b)
	assert.Equal(t, Open, b.State())
}

func TestOpenShortCircuitsWithoutCallingOp(t *testing.T) {
	b := newBreaker("b1", Settings{FailureThreshold: 1, OpenDuration: time.Hour}, nil)
	failOnce(t, b)
	require.Equal(t, Open, b.State())

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called, "op must not run while the breaker is open")
}

func TestHalfOpenProbeAfterDwell(t *testing.T) {
	b := newBreaker("b1", Settings{FailureThreshold: 1, OpenDuration: 20 * time.Millisecond, HalfOpenRequests: 1}, nil)
	failOnce(t, b)
	require.Equal(t, Open, b.State())

	time.Sleep(25 * time.Millisecond)

	succeedOnce(t, b)
	assert.Equal(t, Closed, b.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := newBreaker("b1", Settings{FailureThreshold: 1, OpenDuration: 20 * time.Millisecond, HalfOpenRequests: 1}, nil)
	failOnce(t, b)
	time.Sleep(25 * time.Millisecond)

	failOnce(t, b)
	assert.Equal(t, Open, b.State())
}

func TestSuccessResetsCounterWhileClosed(t *testing.T) {
	b := newBreaker("b1", Settings{FailureThreshold: 2, OpenDuration: time.Minute}, nil)
	failOnce(t, b)
	succeedOnce(t, b)
	failOnce(t, b)
	assert.Equal(t, Closed, b.State(), "a success between failures must reset the consecutive counter")
}

type recordingObserver struct {
	events []TransitionEvent
}

func (r *recordingObserver) OnTransition(e TransitionEvent) {
	r.events = append(r.events, e)
}

func TestTransitionsArePublishedInOrder(t *testing.T) {
	obs := &recordingObserver{}
	b := newBreaker("b1", Settings{FailureThreshold: 1, OpenDuration: 10 * time.Millisecond, HalfOpenRequests: 1}, obs)

	failOnce(t, b)
	time.Sleep(15 * time.Millisecond)
	succeedOnce(t, b)

	require.Len(t, obs.events, 3)
	assert.Equal(t, Closed, obs.events[0].From)
	assert.Equal(t, Open, obs.events[0].To)
	assert.Equal(t, Open, obs.events[1].From)
	assert.Equal(t, HalfOpen, obs.events[1].To)
	assert.Equal(t, HalfOpen, obs.events[2].From)
	assert.Equal(t, Closed, obs.events[2].To)
	for _, e := range obs.events {
		assert.Equal(t, "b1", e.OriginID)
	}
}
