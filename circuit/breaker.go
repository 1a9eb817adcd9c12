package circuit

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// State mirrors the three-state machine from the specification. It is kept
// distinct from gobreaker.State so that callers of this package never need
// to import gobreaker directly.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateClosed:
		return Closed
	case gobreaker.StateOpen:
		return Open
	case gobreaker.StateHalfOpen:
		return HalfOpen
	default:
		return Closed
	}
}

// ErrOpen is returned by Execute when the breaker short-circuits the call.
var ErrOpen = errors.New("circuit: breaker open")

// TransitionEvent describes one atomic state change of a single origin's
// breaker.
type TransitionEvent struct {
	OriginID string
	From     State
	To       State
	At       time.Time
}

// Observer receives breaker transition events. OnTransition must not
// block; the registry publishes synchronously from inside gobreaker's
// OnStateChange callback, which is itself invoked while holding gobreaker's
// internal lock.
type Observer interface {
	OnTransition(TransitionEvent)
}

// Settings configures a single origin's breaker.
type Settings struct {
	FailureThreshold int
	OpenDuration     time.Duration
	HalfOpenRequests int
}

// Breaker gates outbound calls to a single origin. Failure is defined by
// the caller: Execute treats a non-nil error returned by op as a failure
// and anything else as a success. The breaker itself never inspects HTTP.
type Breaker struct {
	originID string
	gb       *gobreaker.TwoStepCircuitBreaker
}

func newBreaker(originID string, s Settings, observer Observer) *Breaker {
	halfOpenRequests := s.HalfOpenRequests
	if halfOpenRequests <= 0 {
		halfOpenRequests = 1
	}

	gb := gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        originID,
		MaxRequests: uint32(halfOpenRequests),
		Timeout:     s.OpenDuration,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return int(c.ConsecutiveFailures) >= s.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if observer == nil {
				return
			}
			observer.OnTransition(TransitionEvent{
				OriginID: name,
				From:     fromGobreaker(from),
				To:       fromGobreaker(to),
				At:       time.Now(),
			})
		},
	})

	return &Breaker{originID: originID, gb: gb}
}

// State reports the breaker's current state.
func (b *Breaker) State() State {
	return fromGobreaker(b.gb.State())
}

// Execute runs op if the breaker allows it, observes the outcome, and
// returns ErrOpen without calling op when the circuit is open (or the
// half-open probe slot is already taken). op's own error, if any, is
// returned unchanged on the non-short-circuited path so callers can tell
// "the call ran and failed" from "the call was short-circuited".
func (b *Breaker) Execute(op func() error) error {
	done, err := b.gb.Allow()
	if err != nil {
		return ErrOpen
	}

	opErr := op()
	done(opErr == nil)
	return opErr
}
