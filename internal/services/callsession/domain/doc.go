// Package domain defines the call session entity, its lifecycle states, and
// the inbound trigger contract.
//
// A Session represents one device's participation in a live audio channel,
// started because a remote participant began speaking.
//
// # Session Lifecycle
//
// Sessions move through these states:
//   - Joining: a fresh trigger was accepted and the channel join is in flight.
//   - Active: the channel was found occupied; the user has been notified.
//   - Ending: an end was requested and the channel leave is in flight.
//   - Ended: terminal; equivalent to "no session".
//
// Joining may short-circuit directly to Ended when the channel resolves empty
// or the join fails. At most one non-terminal session exists per device.
package domain
