package conn

import (
	"time"

	"github.com/nerrad567/tvbridge/internal/device"
)

// Snapshot is an immutable view of one device's state at a point in time.
//
// Connected is derived from the activity window, not from the session
// client's own readiness flag: the device counts as live only while
// confirmed traffic (an event or a successful command) has been seen
// within the activity timeout.
type Snapshot struct {
	DeviceID     string     `json:"device_id"`
	Connected    bool       `json:"connected"`
	PowerState   bool       `json:"power_state"`
	Volume       int        `json:"volume"`
	Muted        bool       `json:"muted"`
	CurrentApp   string     `json:"current_app,omitempty"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
	At           time.Time  `json:"at"`
}

// SnapshotListener receives snapshots from the state poller. Listeners are
// invoked synchronously, in registration order, on the poller's goroutine;
// slow listeners delay the tick.
type SnapshotListener func(Snapshot)

// buildSnapshot derives a snapshot from a device record at time now.
func buildSnapshot(d *device.Device, now time.Time, activityTimeout time.Duration) Snapshot {
	snap := Snapshot{
		DeviceID:   d.ID,
		PowerState: d.PowerOn,
		Volume:     d.Volume,
		Muted:      d.Muted,
		CurrentApp: d.CurrentApp,
		At:         now,
	}
	if !d.LastActivity.IsZero() {
		la := d.LastActivity
		snap.LastActivity = &la
		snap.Connected = now.Sub(la) < activityTimeout
	}
	return snap
}
