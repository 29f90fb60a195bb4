// Package conn manages the long-lived control sessions to the TVs.
//
// The Manager runs one state machine per device: Disconnected, Connecting,
// Connected, with transitions driven by the session client's typed event
// stream. Failures arm a reconnect timer that is throttled so an
// unreachable TV does not cause retry storms. Liveness exposed to callers
// is derived from an activity window over confirmed traffic, never from
// the session client's own readiness flag. A per-device poller publishes
// periodic state snapshots to registered listeners.
package conn
