// Package tlsadapter wraps a plain byte-stream transport in TLS, exposing the
// same read/write/flush/close capability the engine uses for plain TCP.
//
// Go's crypto/tls does not expose the cooperative "wants to read / wants to
// write" signal pair some TLS libraries offer; (*tls.Conn).HandshakeContext
// performs the equivalent record-layer exchange synchronously under the
// hood. The adapter drives the handshake through that single call rather
// than hand-rolling a record-layer loop, documented as a deliberate
// simplification (see DESIGN.md).
package tlsadapter

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"

	"golang.org/x/net/idna"

	cerrors "github.com/mardiros/cabot/pkg/errors"
	"github.com/mardiros/cabot/pkg/tlsconfig"
)

// Config configures the TLS handshake performed over an already-connected
// transport.
type Config struct {
	ServerName         string
	InsecureSkipVerify bool
	ClientCertPEM      []byte
	ClientKeyPEM       []byte
	RootCAsPEM         [][]byte
	MinVersion         uint16
	MaxVersion         uint16
}

// Conn is a TLS-wrapped transport. It implements net.Conn via the embedded
// *tls.Conn; NegotiatedVersionName reports the negotiated version for
// verbose logging.
type Conn struct {
	*tls.Conn
}

// Handshake validates the SNI hostname, builds a tls.Config from cfg, wraps
// conn, and drives the handshake to completion under ctx's deadline.
func Handshake(ctx context.Context, conn net.Conn, host string, cfg Config) (*Conn, error) {
	if _, err := idna.Lookup.ToASCII(host); err != nil {
		return nil, cerrors.HostnameParse(host)
	}

	tlsCfg := &tls.Config{
		ServerName:         serverName(cfg, host),
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		MinVersion:         versionOrDefault(cfg.MinVersion, tlsconfig.VersionTLS10),
		MaxVersion:         cfg.MaxVersion,
		NextProtos:         []string{"http/1.1"},
	}

	if len(cfg.RootCAsPEM) > 0 {
		pool := x509.NewCertPool()
		for _, pem := range cfg.RootCAsPEM {
			if ok := pool.AppendCertsFromPEM(pem); !ok {
				return nil, cerrors.Certificate(nil)
			}
		}
		tlsCfg.RootCAs = pool
	}

	if len(cfg.ClientCertPEM) > 0 && len(cfg.ClientKeyPEM) > 0 {
		cert, err := tls.X509KeyPair(cfg.ClientCertPEM, cfg.ClientKeyPEM)
		if err != nil {
			return nil, cerrors.Certificate(err)
		}
		tlsCfg.Certificates = append(tlsCfg.Certificates, cert)
	}

	tlsConn := tls.Client(conn, tlsCfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, cerrors.Certificate(err)
	}
	return &Conn{Conn: tlsConn}, nil
}

func serverName(cfg Config, fallbackHost string) string {
	if cfg.ServerName != "" {
		return cfg.ServerName
	}
	return fallbackHost
}

func versionOrDefault(v, def uint16) uint16 {
	if v == 0 {
		return def
	}
	return v
}

// NegotiatedVersionName returns the human-readable negotiated TLS version,
// for verbose logging.
func (c *Conn) NegotiatedVersionName() string {
	return tlsconfig.GetVersionName(c.ConnectionState().Version)
}
