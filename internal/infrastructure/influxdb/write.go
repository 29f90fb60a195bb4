package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceState records one poll-tick snapshot for a device.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Booleans are stored as 0/1 integers so dashboards can graph uptime and
// power directly.
func (c *Client) WriteDeviceState(deviceID string, connected, powerOn, muted bool, volume int, currentApp string) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"connected": boolToInt(connected),
		"power_on":  boolToInt(powerOn),
		"muted":     boolToInt(muted),
		"volume":    volume,
	}
	if currentApp != "" {
		fields["current_app"] = currentApp
	}

	point := write.NewPoint(
		"device_state",
		map[string]string{
			"device_id": deviceID,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSessionEvent records a connection lifecycle transition (connect,
// disconnect, reconnect, unpaired) for availability analysis.
func (c *Client) WriteSessionEvent(deviceID, event string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"session_events",
		map[string]string{
			"device_id": deviceID,
			"event":     event,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point for measurements that do not fit the
// helpers above.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
