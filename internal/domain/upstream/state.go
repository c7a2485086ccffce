package upstream

import (
	"sync/atomic"
	"time"
)

// ConnectionState is a node in the upstream lifecycle state machine:
// Disabled, Disconnected, Connecting, Connected, Unhealthy.
type ConnectionState string

const (
	// StateDisabled is held by a descriptor with enabled=false. Never
	// holds a live HTTP client.
	StateDisabled ConnectionState = "disabled"
	// StateDisconnected is the resting state of an enabled upstream before
	// its first connect attempt, and the state disconnectUpstream leaves
	// behind.
	StateDisconnected ConnectionState = "disconnected"
	// StateConnecting indicates a connect attempt (initialize + discovery)
	// is in flight.
	StateConnecting ConnectionState = "connecting"
	// StateConnected indicates initialize and discovery succeeded and the
	// upstream is eligible for dispatch.
	StateConnected ConnectionState = "connected"
	// StateUnhealthy indicates a previously connected upstream failed a
	// health ping, or a connect attempt failed; retry is governed by
	// RetryRecord.
	StateUnhealthy ConnectionState = "unhealthy"
)

// HealthCheckMode records whether this upstream's endpoint follows the
// "/mcp" convention the health ping relies on. An endpoint without a
// "/mcp" suffix has no sibling "/health" to ping, so it is marked
// unavailable and the reconciler skips its health ping.
type HealthCheckMode string

const (
	// HealthCheckAvailable means the endpoint ends in "/mcp" and a
	// sibling "/health" URL can be derived and pinged.
	HealthCheckAvailable HealthCheckMode = "available"
	// HealthCheckUnavailable means no health endpoint could be derived;
	// after a successful connect the upstream stays Connected, since no
	// health ping runs to demote it.
	HealthCheckUnavailable HealthCheckMode = "unavailable"
)

// RetryRecord tracks exponential-backoff bookkeeping for reconnect
// attempts.
type RetryRecord struct {
	Attempt   int
	NotBefore time.Time
}

// backoffCap, backoffMaxShift implement delay = min(60s, 2^min(attempt,6)).
const (
	backoffCap      = 60 * time.Second
	backoffMaxShift = 6
)

// NextDelay computes the backoff delay for the given attempt number,
// where attempt is the 1-based count of consecutive failures.
func NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt
	if shift > backoffMaxShift {
		shift = backoffMaxShift
	}
	delay := time.Duration(1<<uint(shift)) * time.Second
	if delay > backoffCap {
		delay = backoffCap
	}
	return delay
}

// State is the mutable per-upstream runtime record. Fields are only ever
// mutated by the component holding the hub-level lock, except the
// request-id counter, which NextRequestID advances atomically; callers
// outside that lock must treat a State value as a point-in-time snapshot.
type State struct {
	Descriptor Descriptor
	Conn       ConnectionState
	HealthMode HealthCheckMode
	Retry      RetryRecord
	LastError  string

	// nextID is the strictly monotonic request-id counter for this
	// upstream's connected lifetime. It is never reset on reconnect.
	nextID int64
}

// NewState creates the initial State for a freshly added descriptor. A
// disabled descriptor starts in StateDisabled; an enabled one starts in
// StateDisconnected, awaiting the reconciler's first connect attempt.
func NewState(d Descriptor) *State {
	s := &State{Descriptor: d}
	if d.Enabled {
		s.Conn = StateDisconnected
	} else {
		s.Conn = StateDisabled
	}
	return s
}

// NextRequestID returns the next strictly increasing JSON-RPC id for this
// upstream. Safe to call concurrently without the hub-level lock.
func (s *State) NextRequestID() int64 {
	return atomic.AddInt64(&s.nextID, 1)
}
