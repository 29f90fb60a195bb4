package pairing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/tvbridge/internal/device"
	"github.com/nerrad567/tvbridge/internal/session"
)

// Default timing parameters, overridable via Deps.
const (
	defaultCodeWait = 3 * time.Second
	defaultTTL      = 5 * time.Minute
)

// codeLength is the fixed length of the on-screen pairing code.
const codeLength = 6

// Logger defines the logging interface used by the Coordinator.
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

// Connector promotes a freshly paired device into a live session.
// Satisfied by conn.Manager.
type Connector interface {
	Connect(ctx context.Context, deviceID string) error
}

// Deps wires the coordinator's collaborators.
type Deps struct {
	Dialer      session.Dialer
	Store       *device.Store
	Credentials device.CredentialsRepository
	Connector   Connector

	// CodeWait is how long Start waits for the TV to confirm the code is
	// on screen before reporting codeDisplayed=false.
	CodeWait time.Duration

	// TTL bounds an in-flight pairing: a started-but-never-completed
	// handshake is discarded after this long so abandoned attempts do not
	// leak session handles.
	TTL time.Duration
}

// Coordinator drives the two-phase pairing handshake, one in-flight
// attempt per device.
type Coordinator struct {
	dialer    session.Dialer
	store     *device.Store
	creds     device.CredentialsRepository
	connector Connector
	codeWait  time.Duration
	ttl       time.Duration

	mu       sync.Mutex
	sessions map[string]*pairingSession
	closed   bool

	logger Logger
}

// pairingSession is one in-flight handshake.
type pairingSession struct {
	deviceID      string
	host          string
	name          string
	client        session.PairingClient
	codeDisplayed bool
	startedAt     time.Time
	expiry        *time.Timer
}

// NewCoordinator creates a pairing coordinator. Zero durations fall back
// to the package defaults.
func NewCoordinator(deps Deps) *Coordinator {
	c := &Coordinator{
		dialer:    deps.Dialer,
		store:     deps.Store,
		creds:     deps.Credentials,
		connector: deps.Connector,
		codeWait:  deps.CodeWait,
		ttl:       deps.TTL,
		sessions:  make(map[string]*pairingSession),
		logger:    noopLogger{},
	}
	if c.codeWait <= 0 {
		c.codeWait = defaultCodeWait
	}
	if c.ttl <= 0 {
		c.ttl = defaultTTL
	}
	return c
}

// SetLogger sets the logger for the coordinator.
func (c *Coordinator) SetLogger(logger Logger) {
	c.logger = logger
}

// Start opens a pairing handshake to the device and waits briefly for the
// TV to put the one-time code on screen. It returns whether the display
// was confirmed; the code value itself never passes through this side.
// Starting again for the same device discards the previous attempt.
func (c *Coordinator) Start(ctx context.Context, deviceID, host, displayName string) (bool, error) {
	if strings.TrimSpace(deviceID) == "" || strings.TrimSpace(host) == "" || strings.TrimSpace(displayName) == "" {
		return false, ErrMissingParameters
	}

	client, err := c.dialer.DialPairing(host, displayName)
	if err != nil {
		return false, fmt.Errorf("dialling pairing session for %s: %w", deviceID, err)
	}
	if err := client.Start(ctx); err != nil {
		_ = client.Close()
		return false, fmt.Errorf("starting pairing handshake for %s: %w", deviceID, err)
	}

	displayed := false
	select {
	case <-client.CodeDisplayed():
		displayed = true
	case <-time.After(c.codeWait):
	case <-ctx.Done():
		_ = client.Close()
		return false, ctx.Err()
	}

	sess := &pairingSession{
		deviceID:      deviceID,
		host:          host,
		name:          displayName,
		client:        client,
		codeDisplayed: displayed,
		startedAt:     time.Now(),
	}
	sess.expiry = time.AfterFunc(c.ttl, func() { c.expire(sess) })

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sess.expiry.Stop()
		_ = client.Close()
		return false, errors.New("pairing: coordinator closed")
	}
	old := c.sessions[deviceID]
	c.sessions[deviceID] = sess
	c.mu.Unlock()

	if old != nil {
		c.discard(old)
	}

	_ = c.store.Put(&device.Device{
		ID:    deviceID,
		Host:  host,
		Name:  displayName,
		State: device.StatePairing,
	})

	c.logger.Info("pairing started", "device_id", deviceID, "host", host,
		"code_displayed", displayed)
	return displayed, nil
}

// Complete forwards the user-entered code and, on acceptance, persists the
// issued credentials and promotes the device into a live session. The
// in-flight attempt is discarded whatever the outcome; failure leaves the
// device not paired.
func (c *Coordinator) Complete(ctx context.Context, deviceID, code string) (session.Credentials, error) {
	if strings.TrimSpace(deviceID) == "" || code == "" {
		return session.Credentials{}, ErrMissingParameters
	}
	normalized, err := normalizeCode(code)
	if err != nil {
		return session.Credentials{}, err
	}

	c.mu.Lock()
	sess, ok := c.sessions[deviceID]
	if ok {
		delete(c.sessions, deviceID)
	}
	c.mu.Unlock()
	if !ok {
		return session.Credentials{}, fmt.Errorf("%w: %s", ErrNoPairingInProgress, deviceID)
	}
	sess.expiry.Stop()
	defer func() { _ = sess.client.Close() }()

	material, err := sess.client.Complete(ctx, normalized)
	if err != nil {
		c.markNotPaired(sess)
		switch {
		case errors.Is(err, session.ErrCodeRejected):
			return session.Credentials{}, fmt.Errorf("%w: %s", ErrHandshakeRejected, deviceID)
		case errors.Is(err, session.ErrNoCredentials):
			return session.Credentials{}, fmt.Errorf("%w: %s", ErrCertificateUnavailable, deviceID)
		default:
			return session.Credentials{}, fmt.Errorf("completing pairing for %s: %w", deviceID, err)
		}
	}
	if material.IsZero() {
		c.markNotPaired(sess)
		return session.Credentials{}, fmt.Errorf("%w: %s", ErrCertificateUnavailable, deviceID)
	}

	err = c.creds.Save(ctx, &device.Credentials{
		DeviceID: deviceID,
		Host:     sess.host,
		Name:     sess.name,
		Material: material,
		PairedAt: time.Now(),
	})
	if err != nil {
		c.markNotPaired(sess)
		return session.Credentials{}, fmt.Errorf("persisting credentials for %s: %w", deviceID, err)
	}

	// Promote: the pairing transport is done, open the long-lived session.
	if err := c.connector.Connect(ctx, deviceID); err != nil {
		c.logger.Warn("paired but initial connect failed", "device_id", deviceID, "error", err)
	}

	c.logger.Info("pairing complete", "device_id", deviceID)
	return material, nil
}

// Close discards every in-flight pairing attempt.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sessions := make([]*pairingSession, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.sessions = make(map[string]*pairingSession)
	c.mu.Unlock()

	for _, s := range sessions {
		c.discard(s)
	}
	return nil
}

// expire is the TTL timer callback: an abandoned attempt is torn down so
// the session handle does not leak.
func (c *Coordinator) expire(sess *pairingSession) {
	c.mu.Lock()
	current, ok := c.sessions[sess.deviceID]
	if !ok || current != sess {
		c.mu.Unlock()
		return
	}
	delete(c.sessions, sess.deviceID)
	c.mu.Unlock()

	c.logger.Info("pairing attempt expired", "device_id", sess.deviceID,
		"age", time.Since(sess.startedAt).String())
	c.discard(sess)
}

func (c *Coordinator) discard(sess *pairingSession) {
	sess.expiry.Stop()
	_ = sess.client.Close()
	c.markNotPaired(sess)
}

// markNotPaired records the failed outcome, unless the device has since
// moved on (a replacement attempt or a live session).
func (c *Coordinator) markNotPaired(sess *pairingSession) {
	_ = c.store.Update(sess.deviceID, func(d *device.Device) {
		if d.State == device.StatePairing {
			d.State = device.StateNotPaired
		}
	})
}

// normalizeCode validates the six-character alphanumeric code and folds it
// to uppercase. Case carries no meaning in the protocol.
func normalizeCode(code string) (string, error) {
	if len(code) != codeLength {
		return "", fmt.Errorf("%w: want %d characters, got %d", ErrInvalidCodeFormat, codeLength, len(code))
	}
	for _, r := range code {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return "", fmt.Errorf("%w: non-alphanumeric character %q", ErrInvalidCodeFormat, r)
		}
	}
	return strings.ToUpper(code), nil
}
