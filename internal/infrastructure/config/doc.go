// Package config loads and validates the TV bridge configuration.
//
// Configuration is read from a YAML file with hardcoded defaults applied
// first, then overridden by TVBRIDGE_* environment variables. The session
// section carries the connection timing model (reconnect throttle, activity
// window, poll interval) that drives the per-device state machines.
package config
