package device

import "time"

// ConnState is the lifecycle state of a device's control session.
type ConnState string

// Connection states.
const (
	// StateDisconnected means no session exists and none is being opened.
	StateDisconnected ConnState = "disconnected"

	// StateConnecting means a session is being established.
	StateConnecting ConnState = "connecting"

	// StateConnected means the encrypted session is up and commands flow.
	StateConnected ConnState = "connected"

	// StatePairing means a pairing handshake is in progress.
	StatePairing ConnState = "pairing"

	// StateNotPaired means the device has no usable credentials.
	StateNotPaired ConnState = "not_paired"
)

// Device is the in-memory record for one TV.
//
// State fields are a best-effort cache of the last values reported by the
// TV; they are authoritative only while State is StateConnected.
type Device struct {
	ID   string `json:"id"`
	Host string `json:"host"`
	Name string `json:"name"`

	State ConnState `json:"state"`

	// Cached TV state, refreshed by session events and the poller.
	Volume     int    `json:"volume"`
	Muted      bool   `json:"muted"`
	CurrentApp string `json:"current_app,omitempty"`
	PowerOn    bool   `json:"power_on"`

	// LastActivity is the last time a command or poll succeeded over the
	// session. The connection manager uses it to judge liveness.
	LastActivity time.Time `json:"last_activity,omitempty"`

	// LastReconnect is when a reconnect was last scheduled, used to
	// rate-limit retry storms against a TV that is simply off.
	LastReconnect time.Time `json:"-"`

	// PairedAt is when pairing last completed, zero if never paired.
	PairedAt time.Time `json:"paired_at,omitempty"`
}

// DeepCopy returns an independent copy of the device record.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	clone := *d
	return &clone
}
