// Package remote implements the session transport to the TV's remote
// service: mutual-TLS connections authenticated by the client certificate
// issued during pairing, carrying newline-delimited JSON frames.
//
// The session service listens on port 6466 and streams state events
// (power, volume, foreground app) alongside accepting key, app-launch,
// and text frames. Pairing uses a separate service on port 6467: the
// bridge generates a self-signed client keypair, the TV shows a one-time
// code, and a successful secret exchange registers the certificate for
// future sessions.
package remote
