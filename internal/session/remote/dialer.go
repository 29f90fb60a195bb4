package remote

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/nerrad567/tvbridge/internal/session"
)

// Service ports on the TV.
const (
	sessionPort = 6466
	pairingPort = 6467
)

// Timeouts for connection setup and single frame writes.
const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 5 * time.Second
)

// Dialer creates TLS-backed session and pairing clients.
// It implements session.Dialer.
type Dialer struct {
	// Name is the client label shown on the TV's pairing screen and
	// presented as the certificate subject.
	Name string
}

// NewDialer creates a dialer advertising the given client name.
func NewDialer(name string) *Dialer {
	return &Dialer{Name: name}
}

// Dial opens an authenticated session to an already-paired device.
func (d *Dialer) Dial(cfg session.Config) (session.Client, error) {
	if cfg.Credentials.IsZero() {
		return nil, session.ErrNoCredentials
	}
	tlsCfg, err := tlsConfig(cfg.Credentials)
	if err != nil {
		return nil, err
	}

	conn, err := dialTLS(cfg.Host, sessionPort, tlsCfg)
	if err != nil {
		return nil, err
	}

	return newClient(conn), nil
}

// DialPairing opens an unauthenticated pairing connection. The keypair the
// TV will register is generated here, before any traffic.
func (d *Dialer) DialPairing(host, name string) (session.PairingClient, error) {
	if name == "" {
		name = d.Name
	}

	creds, err := generateCredentials(name)
	if err != nil {
		return nil, err
	}
	tlsCfg, err := tlsConfig(creds)
	if err != nil {
		return nil, err
	}

	conn, err := dialTLS(host, pairingPort, tlsCfg)
	if err != nil {
		return nil, err
	}

	return newPairingClient(conn, name, creds), nil
}

// dialTLS connects and completes the handshake within dialTimeout.
func dialTLS(host string, port int, cfg *tls.Config) (*tls.Conn, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	nd := &net.Dialer{Timeout: dialTimeout}
	conn, err := tls.DialWithDialer(nd, "tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: dialling %s: %v", session.ErrTransport, addr, err)
	}
	return conn, nil
}
