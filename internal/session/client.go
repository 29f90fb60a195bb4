package session

import (
	"context"
	"time"
)

// EventType identifies a session event.
type EventType string

// Session event types emitted by a Client.
const (
	// EventReady signals the encrypted session is established and usable.
	EventReady EventType = "ready"

	// EventError signals the session failed; the client will not recover
	// on its own and should be closed and re-dialled.
	EventError EventType = "error"

	// EventUnpaired signals the TV no longer recognises the credentials.
	// Reconnecting is pointless until the device is paired again.
	EventUnpaired EventType = "unpaired"

	// EventPowerChanged reports a TV power state transition.
	EventPowerChanged EventType = "power_changed"

	// EventVolumeChanged reports a volume level or mute change.
	EventVolumeChanged EventType = "volume_changed"

	// EventAppChanged reports the foreground app changing.
	EventAppChanged EventType = "app_changed"
)

// Event is a single notification from the session protocol.
// Only the fields relevant to the Type are populated.
type Event struct {
	Type EventType

	// Err describes the failure for EventError.
	Err error

	// PowerOn is the new power state for EventPowerChanged.
	PowerOn bool

	// Volume (0-100) and Muted for EventVolumeChanged.
	Volume int
	Muted  bool

	// AppID is the foreground app for EventAppChanged.
	AppID string

	// At is when the client observed the event.
	At time.Time
}

// Credentials is the certificate material issued by a successful pairing.
// Both fields are opaque blobs owned by the protocol implementation.
type Credentials struct {
	Certificate []byte
	PrivateKey  []byte
}

// IsZero reports whether no credential material is present.
func (c Credentials) IsZero() bool {
	return len(c.Certificate) == 0 && len(c.PrivateKey) == 0
}

// Config describes a session to an already-paired device.
type Config struct {
	Host        string
	Name        string
	Credentials Credentials
}

// Client holds one encrypted control session to a TV.
//
// Implementations wrap the proprietary remote-control protocol; this package
// only fixes the contract the connection manager depends on. Events() must
// deliver a typed stream the owning device task consumes in a single loop;
// the channel is closed when the session ends. Command methods must respect
// ctx cancellation and return an error satisfying errors.Is(err, ErrTransport)
// for connection-level failures.
type Client interface {
	// Start establishes the session. It returns once the transport is up;
	// EventReady follows on the event channel.
	Start(ctx context.Context) error

	// Events returns the session's event stream. The same channel is
	// returned on every call.
	Events() <-chan Event

	// SendKey presses a single remote key.
	SendKey(ctx context.Context, keyCode int, keyName string) error

	// LaunchApp opens the given app link on the TV.
	LaunchApp(ctx context.Context, appURL string) error

	// SendText types text into the focused input field.
	SendText(ctx context.Context, text string) error

	// Close tears the session down. Idempotent.
	Close() error
}

// PairingClient drives the one-time pairing handshake for a single device.
type PairingClient interface {
	// Start opens the pairing transport and asks the TV to display the
	// one-time code.
	Start(ctx context.Context) error

	// CodeDisplayed is closed once the TV reports the code is on screen.
	CodeDisplayed() <-chan struct{}

	// Complete forwards the user-entered code. On acceptance it returns the
	// issued credentials; ErrCodeRejected if the TV declined the code,
	// ErrNoCredentials if the handshake succeeded but produced no material.
	Complete(ctx context.Context, code string) (Credentials, error)

	// Close aborts the handshake and releases the transport. Idempotent.
	Close() error
}

// Dialer creates protocol sessions. It is injected into the connection
// manager and pairing coordinator so tests can substitute fakes.
type Dialer interface {
	// Dial creates a session client for an already-paired device.
	Dial(cfg Config) (Client, error)

	// DialPairing creates a pairing client for an unpaired device.
	// name is the label shown on the TV's pairing screen.
	DialPairing(host, name string) (PairingClient, error)
}
