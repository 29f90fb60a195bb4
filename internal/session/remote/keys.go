package remote

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	"github.com/nerrad567/tvbridge/internal/session"
)

// clientCertValidity is how long a generated pairing certificate lasts.
// TVs pin the certificate itself, not its expiry, but a bounded window
// keeps re-pairing honest on very old installs.
const clientCertValidity = 10 * 365 * 24 * time.Hour

// generateCredentials creates the self-signed client keypair that pairing
// registers with the TV. Both halves are PEM.
func generateCredentials(name string) (session.Credentials, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return session.Credentials{}, fmt.Errorf("generating key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return session.Credentials{}, fmt.Errorf("generating serial: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: name},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(clientCertValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return session.Credentials{}, fmt.Errorf("creating certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return session.Credentials{}, fmt.Errorf("marshalling key: %w", err)
	}

	return session.Credentials{
		Certificate: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		PrivateKey:  pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
	}, nil
}

// tlsConfig builds the mutual-TLS client config for a session. TVs present
// self-signed certificates, so server verification is pinned to nothing and
// trust rides on the client certificate the TV registered during pairing.
func tlsConfig(creds session.Credentials) (*tls.Config, error) {
	cert, err := tls.X509KeyPair(creds.Certificate, creds.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("loading client certificate: %w", err)
	}
	return &tls.Config{
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: true, //nolint:gosec // TV certs are self-signed; identity is host+pairing
		MinVersion:         tls.VersionTLS12,
	}, nil
}
