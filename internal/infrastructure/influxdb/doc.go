// Package influxdb records optional telemetry: per-device state on every
// poll tick and session lifecycle events, written non-blocking in batches.
// The bridge runs fine with it disabled.
package influxdb
