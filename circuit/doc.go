/*
Package circuit implements the per-origin circuit breaker used to gate
outbound traffic to backend origins.

Each origin gets exactly one breaker, keyed by origin ID and created on
first use. The breaker opens after FailureThreshold consecutive failures
observed while closed, stays open for at least OpenDuration, and then lets
a single probe call through in the half-open state: success closes the
breaker and resets the failure count, failure reopens it.

Failure is defined entirely by the caller: Execute treats a non-nil error
returned by the supplied operation as a failure. The forwarder packages
decide what counts as a failure — a dial error, a 5xx response, or an I/O
error while streaming.

Every state transition is published synchronously to an Observer before
Execute returns control to its caller, so observers see a total order of
transitions per origin.

The underlying two-step breaker comes from github.com/sony/gobreaker; this
package exists to give it an origin-keyed registry and an origin-scoped,
proxy-specific state/event vocabulary.
*/
package circuit
