package scene

import "errors"

var (
	// ErrSceneNotFound is returned when no scene exists under the name.
	ErrSceneNotFound = errors.New("scene: not found")

	// ErrInvalidScene is returned when a scene fails validation.
	ErrInvalidScene = errors.New("scene: invalid scene")

	// ErrDeviceNotConnected is returned when execution targets a device
	// outside its liveness window.
	ErrDeviceNotConnected = errors.New("scene: device not connected")
)
