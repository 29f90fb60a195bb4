package remote

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/nerrad567/tvbridge/internal/session"
)

// pairingResponseTimeout bounds the wait for the TV's verdict on a
// submitted code when the caller's context carries no deadline.
const pairingResponseTimeout = 15 * time.Second

// pairingClient drives one pairing exchange. It implements
// session.PairingClient.
type pairingClient struct {
	conn  net.Conn
	name  string
	creds session.Credentials

	codeDisplayed chan struct{}
	verdict       chan frame

	mu     sync.Mutex
	closed bool
}

func newPairingClient(conn net.Conn, name string, creds session.Credentials) *pairingClient {
	return &pairingClient{
		conn:          conn,
		name:          name,
		creds:         creds,
		codeDisplayed: make(chan struct{}),
		verdict:       make(chan frame, 1),
	}
}

// Start sends the pairing request, which makes the TV display the
// one-time code, and launches the response reader.
func (p *pairingClient) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := writeFrame(p.conn, frame{
		Type:        framePairingRequest,
		ClientName:  p.name,
		Certificate: p.creds.Certificate,
	})
	if err != nil {
		return err
	}

	go p.readLoop()
	return nil
}

// CodeDisplayed is closed once the TV confirms the code is on screen.
func (p *pairingClient) CodeDisplayed() <-chan struct{} {
	return p.codeDisplayed
}

// Complete forwards the user-entered code and waits for the TV's verdict.
func (p *pairingClient) Complete(ctx context.Context, code string) (session.Credentials, error) {
	if err := writeFrame(p.conn, frame{Type: frameSecret, Code: code}); err != nil {
		return session.Credentials{}, err
	}

	timeout := time.NewTimer(pairingResponseTimeout)
	defer timeout.Stop()

	select {
	case f, ok := <-p.verdict:
		if !ok {
			return session.Credentials{}, fmt.Errorf("%w: pairing connection lost", session.ErrTransport)
		}
		switch f.Type {
		case framePaired:
			return p.creds, nil
		case frameRejected:
			return session.Credentials{}, session.ErrCodeRejected
		default:
			return session.Credentials{}, fmt.Errorf("%w: unexpected pairing reply %q", session.ErrTransport, f.Type)
		}
	case <-timeout.C:
		return session.Credentials{}, fmt.Errorf("%w: pairing reply timeout", session.ErrTransport)
	case <-ctx.Done():
		return session.Credentials{}, ctx.Err()
	}
}

// Close releases the pairing connection.
func (p *pairingClient) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.conn.Close()
}

// readLoop routes pairing replies: the code-displayed signal closes its
// channel, everything else is a verdict for Complete.
func (p *pairingClient) readLoop() {
	defer close(p.verdict)

	reader := newFrameReader(p.conn)
	codeSeen := false
	for {
		f, err := reader.next()
		if err != nil {
			return
		}
		if f.Type == frameCodeDisplayed {
			if !codeSeen {
				codeSeen = true
				close(p.codeDisplayed)
			}
			continue
		}
		select {
		case p.verdict <- f:
		default:
		}
	}
}
