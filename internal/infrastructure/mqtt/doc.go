// Package mqtt publishes the bridge's state to an MQTT broker.
//
// The bridge is publish-only: retained per-device snapshots go to
// tvbridge/state/{deviceId} on every poll tick, and the bridge's own
// online/offline status (including a Last Will for crash detection) goes
// to tvbridge/system/status. The hub subscribes; nothing flows back in.
package mqtt
