package conn

import "errors"

var (
	// ErrNotPaired is returned when connect is requested for a device with
	// no stored credentials.
	ErrNotPaired = errors.New("conn: device not paired")

	// ErrDeviceNotConnected is returned when a command is issued to a
	// device without a live session.
	ErrDeviceNotConnected = errors.New("conn: device not connected")

	// ErrManagerClosed is returned once the manager has been shut down.
	ErrManagerClosed = errors.New("conn: manager closed")
)
