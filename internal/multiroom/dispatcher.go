package multiroom

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/tvbridge/internal/device"
)

// Logger defines the logging interface used by the Dispatcher.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Controller is the per-device command surface. Satisfied by conn.Manager.
type Controller interface {
	SendKey(ctx context.Context, deviceID string, keyCode int, keyName string) error
	LaunchApp(ctx context.Context, deviceID, appURL string) error
	IsLive(deviceID string) bool
}

// VolumeSetter converges one device's volume to a target level.
// Satisfied by scene.Engine.
type VolumeSetter interface {
	SetVolume(ctx context.Context, deviceID string, target int) error
}

// Deps wires the dispatcher's collaborators.
type Deps struct {
	Repository Repository
	Store      *device.Store
	Controller Controller
	Volume     VolumeSetter
}

// Dispatcher manages sync groups and fans one logical command out to
// every member concurrently, join-all, aggregating per-device outcomes.
type Dispatcher struct {
	repo   Repository
	store  *device.Store
	ctrl   Controller
	volume VolumeSetter

	logger Logger
}

// NewDispatcher creates a sync dispatcher.
func NewDispatcher(deps Deps) *Dispatcher {
	return &Dispatcher{
		repo:   deps.Repository,
		store:  deps.Store,
		ctrl:   deps.Controller,
		volume: deps.Volume,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// CreateGroup stores a named group. At least two devices are required and
// every member must be live at creation time; membership is not
// re-validated afterwards. The first listed device becomes the nominal
// primary.
func (d *Dispatcher) CreateGroup(ctx context.Context, name string, deviceIDs []string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidGroup)
	}
	if len(deviceIDs) < 2 {
		return fmt.Errorf("%w: got %d", ErrInsufficientGroupSize, len(deviceIDs))
	}

	seen := make(map[string]bool, len(deviceIDs))
	for _, id := range deviceIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: blank device id", ErrInvalidGroup)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate device %q", ErrInvalidGroup, id)
		}
		seen[id] = true

		if _, err := d.store.Get(id); err != nil {
			return fmt.Errorf("%w: %s", ErrMemberNotConnected, id)
		}
		if !d.ctrl.IsLive(id) {
			return fmt.Errorf("%w: %s", ErrMemberNotConnected, id)
		}
	}

	g := &SyncGroup{
		Name:      name,
		DeviceIDs: append([]string(nil), deviceIDs...),
		Primary:   deviceIDs[0],
		CreatedAt: time.Now(),
	}
	if err := d.repo.Save(ctx, g); err != nil {
		return err
	}

	d.logger.Info("sync group created", "group", name,
		"members", len(deviceIDs), "primary", g.Primary)
	return nil
}

// Get returns the named group.
func (d *Dispatcher) Get(ctx context.Context, name string) (*SyncGroup, error) {
	return d.repo.Get(ctx, name)
}

// List returns all groups.
func (d *Dispatcher) List(ctx context.Context) ([]*SyncGroup, error) {
	return d.repo.List(ctx)
}

// DeleteGroup removes the named group.
func (d *Dispatcher) DeleteGroup(ctx context.Context, name string) error {
	if err := d.repo.Delete(ctx, name); err != nil {
		return err
	}
	d.logger.Info("sync group deleted", "group", name)
	return nil
}

// Dispatch sends cmd to every member of the group concurrently and waits
// for all of them. One member's failure never blocks or aborts the
// others; it surfaces only in that member's Result. The returned error is
// non-nil only when the group or command themselves are invalid.
func (d *Dispatcher) Dispatch(ctx context.Context, groupName string, cmd Command) ([]Result, error) {
	g, err := d.repo.Get(ctx, groupName)
	if err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	dispatchID := uuid.New().String()
	d.logger.Info("dispatching group command", "group", groupName,
		"dispatch_id", dispatchID, "type", string(cmd.Type), "members", len(g.DeviceIDs))

	results := make([]Result, len(g.DeviceIDs))
	var wg sync.WaitGroup
	for i, id := range g.DeviceIDs {
		wg.Add(1)
		go func(i int, deviceID string) {
			defer wg.Done()
			res := Result{DeviceID: deviceID, Success: true}
			if err := d.runCommand(ctx, deviceID, cmd); err != nil {
				res.Success = false
				res.Error = err.Error()
			}
			results[i] = res
		}(i, id)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	if failed > 0 {
		d.logger.Warn("group command partial failure", "group", groupName,
			"dispatch_id", dispatchID, "failed", failed, "members", len(results))
	}
	return results, nil
}

func (d *Dispatcher) runCommand(ctx context.Context, deviceID string, cmd Command) error {
	switch cmd.Type {
	case CommandKey:
		return d.ctrl.SendKey(ctx, deviceID, cmd.KeyCode, cmd.KeyName)
	case CommandApp:
		return d.ctrl.LaunchApp(ctx, deviceID, cmd.AppURL)
	case CommandVolume:
		return d.volume.SetVolume(ctx, deviceID, cmd.Volume)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidCommand, cmd.Type)
	}
}
