package remote

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/nerrad567/tvbridge/internal/session"
)

// client is one live session connection. It implements session.Client.
type client struct {
	conn   net.Conn
	events chan session.Event

	mu     sync.Mutex // guards writes and closed
	closed bool
}

func newClient(conn net.Conn) *client {
	return &client{
		conn:   conn,
		events: make(chan session.Event, 16),
	}
}

// Start launches the event reader. The TLS handshake already completed in
// the dialer, so the transport is up when Start returns.
func (c *client) Start(_ context.Context) error {
	go c.readLoop()
	return nil
}

// Events returns the session's event stream.
func (c *client) Events() <-chan session.Event {
	return c.events
}

// SendKey presses a single remote key.
func (c *client) SendKey(ctx context.Context, keyCode int, keyName string) error {
	return c.send(ctx, frame{Type: frameKey, KeyCode: keyCode, KeyName: keyName})
}

// LaunchApp opens the given app link on the TV.
func (c *client) LaunchApp(ctx context.Context, appURL string) error {
	return c.send(ctx, frame{Type: frameAppLaunch, AppURL: appURL})
}

// SendText types text into the TV's focused input.
func (c *client) SendText(ctx context.Context, text string) error {
	return c.send(ctx, frame{Type: frameText, Text: text})
}

// Close tears the connection down. The event channel closes once the
// reader observes the dead transport.
func (c *client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}

// send writes one frame under the write lock with a bounded deadline.
func (c *client) send(ctx context.Context, f frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return session.ErrClosed
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	//nolint:errcheck // Best-effort deadline; write error surfaces below
	c.conn.SetWriteDeadline(deadline)
	return writeFrame(c.conn, f)
}

// readLoop converts wire frames into session events until the transport
// dies, then closes the event channel.
func (c *client) readLoop() {
	defer close(c.events)

	reader := newFrameReader(c.conn)
	for {
		f, err := reader.next()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.emit(session.Event{Type: session.EventError, Err: err})
			}
			return
		}
		if ev, ok := eventFromFrame(f); ok {
			c.emit(ev)
		}
	}
}

// emit delivers an event, dropping it if the consumer is gone.
func (c *client) emit(ev session.Event) {
	ev.At = time.Now()
	select {
	case c.events <- ev:
	default:
	}
}

// eventFromFrame maps a wire frame to a session event. Unknown frame
// types are ignored for forward compatibility.
func eventFromFrame(f frame) (session.Event, bool) {
	switch f.Type {
	case frameReady:
		return session.Event{Type: session.EventReady}, true
	case frameError:
		return session.Event{Type: session.EventError, Err: errors.New(f.Message)}, true
	case frameUnpaired:
		return session.Event{Type: session.EventUnpaired}, true
	case framePowerChanged:
		return session.Event{Type: session.EventPowerChanged, PowerOn: f.PowerOn}, true
	case frameVolumeChanged:
		return session.Event{Type: session.EventVolumeChanged, Volume: f.Volume, Muted: f.Muted}, true
	case frameAppChanged:
		return session.Event{Type: session.EventAppChanged, AppID: f.AppID}, true
	default:
		return session.Event{}, false
	}
}
