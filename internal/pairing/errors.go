package pairing

import "errors"

var (
	// ErrMissingParameters is returned when a required field is blank.
	ErrMissingParameters = errors.New("pairing: missing parameters")

	// ErrInvalidCodeFormat is returned when the code is not exactly six
	// alphanumeric characters.
	ErrInvalidCodeFormat = errors.New("pairing: invalid code format")

	// ErrNoPairingInProgress is returned when complete is called for a
	// device with no started (or an already expired) pairing.
	ErrNoPairingInProgress = errors.New("pairing: no pairing in progress")

	// ErrHandshakeRejected is returned when the TV declined the code.
	ErrHandshakeRejected = errors.New("pairing: handshake rejected")

	// ErrCertificateUnavailable is returned when the handshake reported
	// success but produced no credential material. Treated as failure.
	ErrCertificateUnavailable = errors.New("pairing: certificate unavailable")
)
