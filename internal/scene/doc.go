// Package scene persists named target-state bundles and replays them
// against live devices.
package scene
