package mqtt

import "fmt"

// topicPrefix is the root of the bridge's topic namespace.
const topicPrefix = "tvbridge"

// Topics builds the bridge's MQTT topic strings.
//
// Layout:
//   - tvbridge/state/{deviceId}  retained per-device state snapshots
//   - tvbridge/system/status     retained bridge online/offline status (and LWT)
type Topics struct{}

// DeviceState returns the retained state topic for one device.
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/state/%s", topicPrefix, deviceID)
}

// SystemStatus returns the bridge status topic.
func (Topics) SystemStatus() string {
	return topicPrefix + "/system/status"
}
