// Package session defines the boundary to the TV remote-control protocol.
//
// The wire protocol itself (certificate exchange, message framing, key
// codes) lives behind the Client and PairingClient interfaces; everything
// above this package treats a session as an opaque command surface plus a
// typed event stream. The Dialer seam lets the connection manager and
// pairing coordinator run against fakes in tests.
package session
