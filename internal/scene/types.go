package scene

import (
	"fmt"
	"strings"
	"time"
)

// maxVolume is the TV volume ceiling.
const maxVolume = 100

// Key is one entry in a scene's key sequence.
type Key struct {
	Code int    `json:"code"`
	Name string `json:"name,omitempty"`
}

// Scene is a named, replayable bundle of target state. Optional fields are
// pointers: nil means the scene leaves that aspect of the TV alone.
type Scene struct {
	Name string `json:"name"`

	// Volume is the target level (0-100) the engine converges toward.
	Volume *int `json:"volume,omitempty"`

	// Muted is the target mute state; applied as a toggle only when it
	// differs from the cached state.
	Muted *bool `json:"muted,omitempty"`

	// CurrentApp is an app link launched before anything else.
	CurrentApp string `json:"current_app,omitempty"`

	// Keys is a literal key sequence replayed after the state targets.
	Keys []Key `json:"keys,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate checks the scene is well-formed.
func (s *Scene) Validate() error {
	if s == nil || strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidScene)
	}
	if s.Volume != nil && (*s.Volume < 0 || *s.Volume > maxVolume) {
		return fmt.Errorf("%w: volume %d out of range 0-%d", ErrInvalidScene, *s.Volume, maxVolume)
	}
	for i, k := range s.Keys {
		if k.Code < 0 {
			return fmt.Errorf("%w: key %d has negative code %d", ErrInvalidScene, i, k.Code)
		}
	}
	return nil
}

// DeepCopy returns an independent copy of the scene.
func (s *Scene) DeepCopy() *Scene {
	if s == nil {
		return nil
	}
	clone := *s
	if s.Volume != nil {
		v := *s.Volume
		clone.Volume = &v
	}
	if s.Muted != nil {
		m := *s.Muted
		clone.Muted = &m
	}
	if s.Keys != nil {
		clone.Keys = append([]Key(nil), s.Keys...)
	}
	return &clone
}
