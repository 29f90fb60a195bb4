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

// retryConnectTimeout bounds a timer-driven reconnect attempt.
const retryConnectTimeout = 30 * time.Second

// deviceTask owns one device's state machine: its single session handle,
// its reconnect timer, and its poller. All session lifecycle for the device
// funnels through here, which is what keeps the one-handle-per-device
// invariant.
type deviceTask struct {
	id string
	m  *Manager

	mu             sync.Mutex
	client         session.Client
	connected      bool
	connecting     bool
	creds          *device.Credentials
	reconnectTimer *time.Timer
	lastReconnect  time.Time
	poller         *poller
	stopped        bool

	// cmdMu serializes commands so per-device submission order holds.
	cmdMu sync.Mutex

	wg sync.WaitGroup
}

func newDeviceTask(m *Manager, deviceID string) *deviceTask {
	return &deviceTask{id: deviceID, m: m}
}

// connect dials a session using creds. No-op when a live session already
// exists or another connect is in flight. On failure the device lands in
// Disconnected with a throttled retry armed.
func (t *deviceTask) connect(ctx context.Context, creds *device.Credentials) error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return ErrManagerClosed
	}
	if t.connected || t.connecting {
		t.mu.Unlock()
		return nil
	}
	t.connecting = true
	t.creds = creds
	stale := t.client
	t.client = nil
	t.mu.Unlock()

	// Old handle must be gone before a new one exists.
	if stale != nil {
		_ = stale.Close()
	}

	t.setState(device.StateConnecting)
	t.m.logger.Info("connecting to device", "device_id", t.id, "host", creds.Host)

	client, err := t.m.dialer.Dial(session.Config{
		Host:        creds.Host,
		Name:        creds.Name,
		Credentials: creds.Material,
	})
	if err == nil {
		if startErr := client.Start(ctx); startErr != nil {
			_ = client.Close()
			err = startErr
		}
	}

	if err != nil {
		t.mu.Lock()
		t.connecting = false
		t.mu.Unlock()
		t.setState(device.StateDisconnected)
		t.scheduleReconnect()
		return fmt.Errorf("connecting to %s: %w", t.id, err)
	}

	t.mu.Lock()
	t.connecting = false
	if t.stopped {
		t.mu.Unlock()
		_ = client.Close()
		return ErrManagerClosed
	}
	t.client = client
	t.connected = true
	t.mu.Unlock()

	now := t.m.now()
	_ = t.m.store.Update(t.id, func(d *device.Device) {
		d.State = device.StateConnected
		d.Host = creds.Host
		d.LastActivity = now
	})

	t.wg.Add(1)
	go t.eventLoop(client)
	t.startPoller()

	t.m.logger.Info("device connected", "device_id", t.id, "host", creds.Host)
	return nil
}

// command runs fn against the live session. Success counts as confirmed
// traffic and refreshes the activity window; a transport failure tears the
// session down and arms the throttled reconnect, but the caller still gets
// the error rather than a silent synchronous retry.
func (t *deviceTask) command(fn func(session.Client) error) error {
	t.cmdMu.Lock()
	defer t.cmdMu.Unlock()

	t.mu.Lock()
	client := t.client
	live := t.connected
	t.mu.Unlock()

	if !live || client == nil {
		return fmt.Errorf("%w: %s", ErrDeviceNotConnected, t.id)
	}

	if err := fn(client); err != nil {
		if errors.Is(err, session.ErrTransport) {
			t.m.logger.Warn("transport failure during command", "device_id", t.id, "error", err)
			t.handleSessionLoss()
		}
		return err
	}

	now := t.m.now()
	_ = t.m.store.Update(t.id, func(d *device.Device) {
		d.LastActivity = now
	})
	return nil
}

// eventLoop is the single consumer of the session's event stream. It runs
// until the client closes the channel.
func (t *deviceTask) eventLoop(client session.Client) {
	defer t.wg.Done()

	for ev := range client.Events() {
		switch ev.Type {
		case session.EventReady:
			t.touch(func(d *device.Device) {
				d.State = device.StateConnected
			})

		case session.EventPowerChanged:
			t.touch(func(d *device.Device) {
				d.PowerOn = ev.PowerOn
			})

		case session.EventVolumeChanged:
			t.touch(func(d *device.Device) {
				d.Volume = ev.Volume
				d.Muted = ev.Muted
			})

		case session.EventAppChanged:
			t.touch(func(d *device.Device) {
				d.CurrentApp = ev.AppID
			})

		case session.EventError:
			t.m.logger.Warn("session error", "device_id", t.id, "error", ev.Err)
			t.handleSessionLoss()

		case session.EventUnpaired:
			t.m.logger.Warn("device reports unpaired", "device_id", t.id)
			t.handleUnpaired()
		}
	}
}

// touch applies fn to the device record and stamps the activity window.
// Every observed event is confirmed traffic.
func (t *deviceTask) touch(fn func(*device.Device)) {
	now := t.m.now()
	_ = t.m.store.Update(t.id, func(d *device.Device) {
		fn(d)
		d.LastActivity = now
	})
}

// handleSessionLoss tears down the session after a transport failure and
// arms the throttled reconnect. The poller keeps running so listeners see
// the liveness window lapse.
func (t *deviceTask) handleSessionLoss() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	client := t.client
	t.client = nil
	t.connected = false
	t.mu.Unlock()

	if client != nil {
		_ = client.Close()
	}
	t.setState(device.StateDisconnected)
	t.scheduleReconnect()
}

// handleUnpaired tears everything down without a retry: reconnecting is
// pointless until the device is paired again.
func (t *deviceTask) handleUnpaired() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	client := t.client
	t.client = nil
	t.connected = false
	t.creds = nil
	if t.reconnectTimer != nil {
		t.reconnectTimer.Stop()
		t.reconnectTimer = nil
	}
	p := t.poller
	t.poller = nil
	t.mu.Unlock()

	if client != nil {
		_ = client.Close()
	}
	if p != nil {
		p.stop()
	}
	t.setState(device.StateNotPaired)
}

// scheduleReconnect arms the retry timer, unless one was armed less than
// minReconnectInterval ago.
func (t *deviceTask) scheduleReconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.creds == nil {
		return
	}

	now := t.m.now()
	if !t.lastReconnect.IsZero() && now.Sub(t.lastReconnect) < t.m.minReconnectInterval {
		t.m.logger.Debug("reconnect throttled", "device_id", t.id,
			"since_last", now.Sub(t.lastReconnect).String())
		return
	}
	t.lastReconnect = now
	_ = t.m.store.Update(t.id, func(d *device.Device) {
		d.LastReconnect = now
	})

	if t.reconnectTimer != nil {
		t.reconnectTimer.Stop()
	}
	t.reconnectTimer = time.AfterFunc(t.m.reconnectDelay, t.retry)
	t.m.logger.Info("reconnect scheduled", "device_id", t.id,
		"delay", t.m.reconnectDelay.String())
}

// retry is the reconnect timer callback.
func (t *deviceTask) retry() {
	t.mu.Lock()
	creds := t.creds
	stopped := t.stopped
	t.mu.Unlock()

	if stopped || creds == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), retryConnectTimeout)
	defer cancel()

	if err := t.connect(ctx, creds); err != nil {
		t.m.logger.Warn("reconnect attempt failed", "device_id", t.id, "error", err)
	}
}

// startPoller starts the device's poller, replacing any existing one so a
// repeated start never duplicates the timer.
func (t *deviceTask) startPoller() {
	t.mu.Lock()
	old := t.poller
	p := newPoller(t.m, t.id, t.m.pollInterval)
	t.poller = p
	t.mu.Unlock()

	if old != nil {
		old.stop()
	}
	p.start()
}

// stop cancels every timer, releases the session, and waits for the event
// loop to drain. Idempotent.
func (t *deviceTask) stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	if t.reconnectTimer != nil {
		t.reconnectTimer.Stop()
		t.reconnectTimer = nil
	}
	client := t.client
	t.client = nil
	t.connected = false
	p := t.poller
	t.poller = nil
	t.mu.Unlock()

	if p != nil {
		p.stop()
	}
	if client != nil {
		_ = client.Close()
	}
	t.wg.Wait()
}

// setState records a connection state transition.
func (t *deviceTask) setState(state device.ConnState) {
	_ = t.m.store.Update(t.id, func(d *device.Device) {
		d.State = state
	})
}
