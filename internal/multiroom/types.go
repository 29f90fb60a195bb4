package multiroom

import (
	"fmt"
	"strings"
	"time"
)

// SyncGroup is a named set of devices that receive the same logical
// command as one fan-out. The primary is the first member listed at
// creation; it is informational metadata and never affects dispatch order
// or failure handling.
type SyncGroup struct {
	Name      string    `json:"name"`
	DeviceIDs []string  `json:"device_ids"`
	Primary   string    `json:"primary"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// DeepCopy returns an independent copy of the group.
func (g *SyncGroup) DeepCopy() *SyncGroup {
	if g == nil {
		return nil
	}
	clone := *g
	clone.DeviceIDs = append([]string(nil), g.DeviceIDs...)
	return &clone
}

// CommandType identifies the logical command fanned out to a group.
type CommandType string

// Supported group commands.
const (
	CommandKey    CommandType = "key"
	CommandApp    CommandType = "app_launch"
	CommandVolume CommandType = "volume"
)

// Command is one logical command applied to every group member.
type Command struct {
	Type CommandType `json:"type"`

	// Key press (CommandKey).
	KeyCode int    `json:"key_code,omitempty"`
	KeyName string `json:"key_name,omitempty"`

	// App link (CommandApp).
	AppURL string `json:"app_url,omitempty"`

	// Target level (CommandVolume).
	Volume int `json:"volume,omitempty"`
}

// Validate checks the command is well-formed.
func (c Command) Validate() error {
	switch c.Type {
	case CommandKey:
		if c.KeyCode < 0 {
			return fmt.Errorf("%w: negative key code %d", ErrInvalidCommand, c.KeyCode)
		}
	case CommandApp:
		if strings.TrimSpace(c.AppURL) == "" {
			return fmt.Errorf("%w: app_url is required", ErrInvalidCommand)
		}
	case CommandVolume:
		if c.Volume < 0 || c.Volume > 100 {
			return fmt.Errorf("%w: volume %d out of range 0-100", ErrInvalidCommand, c.Volume)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidCommand, c.Type)
	}
	return nil
}

// Result is the outcome of one member's share of a dispatch.
type Result struct {
	DeviceID string `json:"device_id"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}
