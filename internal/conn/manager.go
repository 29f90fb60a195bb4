package conn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/tvbridge/internal/device"
	"github.com/nerrad567/tvbridge/internal/session"
)

// Default timing parameters, overridable via Options.
const (
	defaultReconnectDelay       = 10 * time.Second
	defaultMinReconnectInterval = 30 * time.Second
	defaultActivityTimeout      = 60 * time.Second
	defaultPollInterval         = 10 * time.Second
)

// Logger defines the logging interface used by the Manager.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Manager.
type Options struct {
	Store       *device.Store
	Credentials device.CredentialsRepository
	Dialer      session.Dialer

	// ReconnectDelay is how long after a failure the retry fires.
	ReconnectDelay time.Duration

	// MinReconnectInterval throttles retry scheduling: a new retry is only
	// armed if this much time has passed since the previous one. Keeps the
	// bridge from hammering a TV that is simply powered off.
	MinReconnectInterval time.Duration

	// ActivityTimeout is the liveness window: a device with no confirmed
	// traffic for this long reports connected=false.
	ActivityTimeout time.Duration

	// PollInterval is the state poller tick.
	PollInterval time.Duration
}

// Manager owns the per-device connection state machines.
//
// Each device gets one task holding at most one live session, its reconnect
// timer, and its state poller. All transitions for a device run through its
// task; the shared device.Store is only touched via its locked accessors.
type Manager struct {
	store  *device.Store
	creds  device.CredentialsRepository
	dialer session.Dialer

	reconnectDelay       time.Duration
	minReconnectInterval time.Duration
	activityTimeout      time.Duration
	pollInterval         time.Duration

	// now is swappable for liveness tests.
	now func() time.Time

	mu     sync.Mutex
	tasks  map[string]*deviceTask
	closed bool

	listenerMu sync.RWMutex
	listeners  []SnapshotListener

	logger Logger
}

// NewManager creates a connection manager. Zero durations in opts fall back
// to the package defaults.
func NewManager(opts Options) *Manager {
	m := &Manager{
		store:                opts.Store,
		creds:                opts.Credentials,
		dialer:               opts.Dialer,
		reconnectDelay:       opts.ReconnectDelay,
		minReconnectInterval: opts.MinReconnectInterval,
		activityTimeout:      opts.ActivityTimeout,
		pollInterval:         opts.PollInterval,
		now:                  time.Now,
		tasks:                make(map[string]*deviceTask),
		logger:               noopLogger{},
	}
	if m.reconnectDelay <= 0 {
		m.reconnectDelay = defaultReconnectDelay
	}
	if m.minReconnectInterval <= 0 {
		m.minReconnectInterval = defaultMinReconnectInterval
	}
	if m.activityTimeout <= 0 {
		m.activityTimeout = defaultActivityTimeout
	}
	if m.pollInterval <= 0 {
		m.pollInterval = defaultPollInterval
	}
	return m
}

// SetLogger sets the logger for the manager and its device tasks.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// AddListener registers a snapshot listener. Listeners are notified on
// every poll tick, synchronously, in registration order.
func (m *Manager) AddListener(fn SnapshotListener) {
	m.listenerMu.Lock()
	m.listeners = append(m.listeners, fn)
	m.listenerMu.Unlock()
}

// Connect establishes a session to a paired device. Idempotent: if the
// device already holds a live session this is a no-op returning nil, with
// no second handshake. Fails with ErrNotPaired when no credentials are
// stored for the device.
func (m *Manager) Connect(ctx context.Context, deviceID string) error {
	creds, err := m.creds.Get(ctx, deviceID)
	if err != nil {
		if errors.Is(err, device.ErrCredentialsNotFound) {
			return fmt.Errorf("%w: %s", ErrNotPaired, deviceID)
		}
		return fmt.Errorf("loading credentials for %s: %w", deviceID, err)
	}

	task, err := m.taskFor(deviceID)
	if err != nil {
		return err
	}

	// Ensure a store record exists before any transition is published.
	if _, getErr := m.store.Get(deviceID); errors.Is(getErr, device.ErrNotFound) {
		putErr := m.store.Put(&device.Device{
			ID:       deviceID,
			Host:     creds.Host,
			Name:     creds.Name,
			State:    device.StateDisconnected,
			PairedAt: creds.PairedAt,
		})
		if putErr != nil {
			return putErr
		}
	}

	return task.connect(ctx, creds)
}

// Disconnect cancels the device's timers, releases its session, and marks
// it disconnected. Idempotent; disconnecting an unknown device is a no-op.
func (m *Manager) Disconnect(deviceID string) error {
	m.mu.Lock()
	task, ok := m.tasks[deviceID]
	if ok {
		delete(m.tasks, deviceID)
	}
	m.mu.Unlock()

	if ok {
		task.stop()
	}

	// Record may have been removed already (unpair path).
	_ = m.store.Update(deviceID, func(d *device.Device) {
		d.State = device.StateDisconnected
	})
	m.logger.Info("device disconnected", "device_id", deviceID)
	return nil
}

// Unpair tears down the session and removes both the runtime record and
// the persisted credentials.
func (m *Manager) Unpair(ctx context.Context, deviceID string) error {
	if err := m.Disconnect(deviceID); err != nil {
		return err
	}
	if err := m.store.Delete(deviceID); err != nil && !errors.Is(err, device.ErrNotFound) {
		return err
	}
	err := m.creds.Delete(ctx, deviceID)
	if err != nil && !errors.Is(err, device.ErrCredentialsNotFound) {
		return fmt.Errorf("removing credentials for %s: %w", deviceID, err)
	}
	m.logger.Info("device unpaired", "device_id", deviceID)
	return nil
}

// SendKey presses a single remote key on the device.
func (m *Manager) SendKey(ctx context.Context, deviceID string, keyCode int, keyName string) error {
	return m.command(deviceID, func(c session.Client) error {
		return c.SendKey(ctx, keyCode, keyName)
	})
}

// LaunchApp opens an app link on the device.
func (m *Manager) LaunchApp(ctx context.Context, deviceID, appURL string) error {
	err := m.command(deviceID, func(c session.Client) error {
		return c.LaunchApp(ctx, appURL)
	})
	if err != nil {
		return err
	}
	// Optimistic: the poller reconciles if the launch did not stick.
	_ = m.store.Update(deviceID, func(d *device.Device) {
		d.CurrentApp = appURL
	})
	return nil
}

// SendText types text into the device's focused input.
func (m *Manager) SendText(ctx context.Context, deviceID, text string) error {
	return m.command(deviceID, func(c session.Client) error {
		return c.SendText(ctx, text)
	})
}

// command runs fn against the device's live session, serialized per device
// so submissions are not reordered. Success refreshes the activity window;
// a transport failure marks the device disconnected and arms the throttled
// reconnect, while the call itself still reports the error.
func (m *Manager) command(deviceID string, fn func(session.Client) error) error {
	m.mu.Lock()
	task, ok := m.tasks[deviceID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotConnected, deviceID)
	}
	return task.command(fn)
}

// IsLive reports whether the device is within its activity window.
func (m *Manager) IsLive(deviceID string) bool {
	d, err := m.store.Get(deviceID)
	if err != nil {
		return false
	}
	return !d.LastActivity.IsZero() && m.now().Sub(d.LastActivity) < m.activityTimeout
}

// Status returns a fresh snapshot for the device, or device.ErrNotFound.
func (m *Manager) Status(deviceID string) (Snapshot, error) {
	d, err := m.store.Get(deviceID)
	if err != nil {
		return Snapshot{}, err
	}
	return buildSnapshot(d, m.now(), m.activityTimeout), nil
}

// Snapshots returns fresh snapshots for every known device, sorted by ID.
func (m *Manager) Snapshots() []Snapshot {
	now := m.now()
	devices := m.store.List()
	out := make([]Snapshot, 0, len(devices))
	for _, d := range devices {
		out = append(out, buildSnapshot(d, now, m.activityTimeout))
	}
	return out
}

// Close stops every device task, poller, and timer. The manager cannot be
// reused afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	tasks := make([]*deviceTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	m.tasks = make(map[string]*deviceTask)
	m.mu.Unlock()

	for _, t := range tasks {
		t.stop()
	}
	m.logger.Info("connection manager closed", "devices", len(tasks))
	return nil
}

// taskFor returns the device's task, creating it if needed.
func (m *Manager) taskFor(deviceID string) (*deviceTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	task, ok := m.tasks[deviceID]
	if !ok {
		task = newDeviceTask(m, deviceID)
		m.tasks[deviceID] = task
	}
	return task, nil
}

// publishSnapshot builds the device's current snapshot and hands it to the
// registered listeners in order. Called from the poller goroutine.
func (m *Manager) publishSnapshot(deviceID string) {
	d, err := m.store.Get(deviceID)
	if err != nil {
		return
	}
	snap := buildSnapshot(d, m.now(), m.activityTimeout)

	m.listenerMu.RLock()
	listeners := make([]SnapshotListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.listenerMu.RUnlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
