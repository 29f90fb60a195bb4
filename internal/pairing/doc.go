// Package pairing drives the two-phase handshake that exchanges an
// on-screen code for long-lived certificate credentials.
//
// Phase one opens a pairing transport and reports whether the TV put its
// one-time code on screen. Phase two forwards the user-entered code,
// persists the issued credentials, and promotes the device into a live
// session. In-flight attempts carry a TTL so an abandoned pairing never
// leaks its transport.
package pairing
