package device

import "errors"

var (
	// ErrNotFound is returned when a device ID is not in the store.
	ErrNotFound = errors.New("device: not found")

	// ErrInvalidDevice is returned when a record fails validation.
	ErrInvalidDevice = errors.New("device: invalid device")

	// ErrCredentialsNotFound is returned when no stored credentials exist
	// for a device.
	ErrCredentialsNotFound = errors.New("device: credentials not found")
)
