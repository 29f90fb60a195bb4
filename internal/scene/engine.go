package scene

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/tvbridge/internal/device"
)

// Android key codes used for state convergence.
const (
	keyVolumeUp   = 24
	keyVolumeDown = 25
	keyMute       = 164
)

// Default sequencing delays, overridable via Deps.
const (
	defaultAppSettleDelay  = 3 * time.Second
	defaultVolumeStepDelay = 300 * time.Millisecond
	defaultKeyDelay        = 500 * time.Millisecond
)

// Logger defines the logging interface used by the Engine.
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

// Controller is the command surface the engine drives. Satisfied by
// conn.Manager.
type Controller interface {
	SendKey(ctx context.Context, deviceID string, keyCode int, keyName string) error
	LaunchApp(ctx context.Context, deviceID, appURL string) error
	IsLive(deviceID string) bool
}

// Deps wires the engine's collaborators.
type Deps struct {
	Repository Repository
	Store      *device.Store
	Controller Controller

	// AppSettleDelay is the pause after an app launch before state
	// convergence continues.
	AppSettleDelay time.Duration

	// VolumeStepDelay separates discrete volume steps so the TV registers
	// each one.
	VolumeStepDelay time.Duration

	// KeyDelay separates the keys of the literal key sequence.
	KeyDelay time.Duration
}

// Engine persists scenes and replays them against live devices.
//
// Replay is best-effort open-loop control: volume convergence computes the
// step count from the last cached value and never reads back the actual
// level between steps. The state poller reconciles any drift afterwards.
type Engine struct {
	repo  Repository
	store *device.Store
	ctrl  Controller

	appSettleDelay  time.Duration
	volumeStepDelay time.Duration
	keyDelay        time.Duration

	logger Logger
}

// NewEngine creates a scene engine. Zero delays fall back to the package
// defaults.
func NewEngine(deps Deps) *Engine {
	e := &Engine{
		repo:            deps.Repository,
		store:           deps.Store,
		ctrl:            deps.Controller,
		appSettleDelay:  deps.AppSettleDelay,
		volumeStepDelay: deps.VolumeStepDelay,
		keyDelay:        deps.KeyDelay,
		logger:          noopLogger{},
	}
	if e.appSettleDelay <= 0 {
		e.appSettleDelay = defaultAppSettleDelay
	}
	if e.volumeStepDelay <= 0 {
		e.volumeStepDelay = defaultVolumeStepDelay
	}
	if e.keyDelay <= 0 {
		e.keyDelay = defaultKeyDelay
	}
	return e
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// Save validates and upserts a scene, overwriting any existing entry of
// the same name.
func (e *Engine) Save(ctx context.Context, s *Scene) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := e.repo.Save(ctx, s); err != nil {
		return err
	}
	e.logger.Info("scene saved", "scene", s.Name)
	return nil
}

// Get returns the named scene.
func (e *Engine) Get(ctx context.Context, name string) (*Scene, error) {
	return e.repo.Get(ctx, name)
}

// List returns all saved scenes.
func (e *Engine) List(ctx context.Context) ([]*Scene, error) {
	return e.repo.List(ctx)
}

// Delete removes the named scene.
func (e *Engine) Delete(ctx context.Context, name string) error {
	if err := e.repo.Delete(ctx, name); err != nil {
		return err
	}
	e.logger.Info("scene deleted", "scene", name)
	return nil
}

// Execute replays the named scene against a device, in order: app launch
// with a settle delay, volume convergence, mute toggle when needed, then
// the literal key sequence.
func (e *Engine) Execute(ctx context.Context, name, deviceID string) error {
	s, err := e.repo.Get(ctx, name)
	if err != nil {
		return err
	}

	if _, err := e.store.Get(deviceID); err != nil {
		return fmt.Errorf("%w: %s", ErrDeviceNotConnected, deviceID)
	}
	if !e.ctrl.IsLive(deviceID) {
		return fmt.Errorf("%w: %s", ErrDeviceNotConnected, deviceID)
	}

	e.logger.Info("executing scene", "scene", name, "device_id", deviceID)

	if s.CurrentApp != "" {
		if err := e.ctrl.LaunchApp(ctx, deviceID, s.CurrentApp); err != nil {
			return fmt.Errorf("launching %q: %w", s.CurrentApp, err)
		}
		if err := sleepCtx(ctx, e.appSettleDelay); err != nil {
			return err
		}
	}

	if s.Volume != nil {
		if err := e.convergeVolume(ctx, deviceID, *s.Volume); err != nil {
			return err
		}
	}

	if s.Muted != nil {
		if err := e.applyMute(ctx, deviceID, *s.Muted); err != nil {
			return err
		}
	}

	for i, k := range s.Keys {
		if err := e.ctrl.SendKey(ctx, deviceID, k.Code, k.Name); err != nil {
			return fmt.Errorf("key %d (%d): %w", i, k.Code, err)
		}
		if i < len(s.Keys)-1 {
			if err := sleepCtx(ctx, e.keyDelay); err != nil {
				return err
			}
		}
	}

	return nil
}

// SetVolume converges a live device's volume toward target using the same
// open-loop stepping a scene replay uses.
func (e *Engine) SetVolume(ctx context.Context, deviceID string, target int) error {
	if target < 0 || target > maxVolume {
		return fmt.Errorf("%w: volume %d out of range 0-%d", ErrInvalidScene, target, maxVolume)
	}
	if !e.ctrl.IsLive(deviceID) {
		return fmt.Errorf("%w: %s", ErrDeviceNotConnected, deviceID)
	}
	return e.convergeVolume(ctx, deviceID, target)
}

// convergeVolume walks the cached volume toward target with discrete
// up/down steps. A device whose volume was never observed converges from
// zero.
func (e *Engine) convergeVolume(ctx context.Context, deviceID string, target int) error {
	d, err := e.store.Get(deviceID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDeviceNotConnected, deviceID)
	}

	delta := target - d.Volume
	if delta == 0 {
		return nil
	}

	keyCode, keyName := keyVolumeUp, "KEYCODE_VOLUME_UP"
	step := 1
	if delta < 0 {
		keyCode, keyName = keyVolumeDown, "KEYCODE_VOLUME_DOWN"
		step = -1
		delta = -delta
	}

	e.logger.Debug("volume convergence", "device_id", deviceID,
		"from", d.Volume, "to", target, "steps", delta)

	for i := 0; i < delta; i++ {
		if err := e.ctrl.SendKey(ctx, deviceID, keyCode, keyName); err != nil {
			return fmt.Errorf("volume step %d/%d: %w", i+1, delta, err)
		}
		// Optimistic cache update; the poller corrects drift later.
		_ = e.store.Update(deviceID, func(d *device.Device) {
			d.Volume = clampVolume(d.Volume + step)
		})
		if err := sleepCtx(ctx, e.volumeStepDelay); err != nil {
			return err
		}
	}
	return nil
}

// applyMute toggles mute only when the cached state differs from target.
func (e *Engine) applyMute(ctx context.Context, deviceID string, target bool) error {
	d, err := e.store.Get(deviceID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDeviceNotConnected, deviceID)
	}
	if d.Muted == target {
		return nil
	}
	if err := e.ctrl.SendKey(ctx, deviceID, keyMute, "KEYCODE_VOLUME_MUTE"); err != nil {
		return fmt.Errorf("mute toggle: %w", err)
	}
	_ = e.store.Update(deviceID, func(d *device.Device) {
		d.Muted = target
	})
	return nil
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > maxVolume {
		return maxVolume
	}
	return v
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
