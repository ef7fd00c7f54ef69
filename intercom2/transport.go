// Package intercom2 implements the point-to-point framed-message transport
// ("Intercom2") used to carry the broker's wallet-command and wallet-event
// traffic: a bidirectional, length-framed byte stream, optionally secured
// with mutual TLS, between two identified endpoints.
package intercom2

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/decred/walletbroker/errs"
)

// Config describes how this peer's Intercom2 endpoint is secured and
// addressed. It corresponds to the INTERCOM_* environment variables,
// already parsed into typed fields (see the config package for the
// environment-to-Config adapter).
type Config struct {
	// OwnID is this peer's 32-bit endpoint identity, sent as the
	// SenderID of every frame.
	OwnID uint32

	// ListenPort is the local TCP port this peer accepts inbound
	// connections on.
	ListenPort int

	// Mode selects plaintext or mutual TLS.
	Mode Mode

	// MaxFrameSize bounds the payload size this transport will read or
	// write in a single frame.
	MaxFrameSize uint32

	// Certs and Passphrase are only consulted when Mode == ModeMutualTLS.
	Certs      CertPaths
	Passphrase string
}

func (c *Config) maxFrame() uint32 {
	if c.MaxFrameSize == 0 {
		return MaxFrame
	}
	return c.MaxFrameSize
}

// Transport owns the listening socket and TLS material for a single local
// endpoint, and knows how to dial and accept Intercom2 connections.
type Transport struct {
	cfg *Config

	serverTLS *tls.Config
	clientTLS *tls.Config
}

// New builds a Transport from cfg, loading TLS certificates up front when
// Mode is ModeMutualTLS. Failure to load TLS material is fatal at process
// startup; there is no degraded mode to fall back to.
func New(cfg *Config) (*Transport, error) {
	t := &Transport{cfg: cfg}

	if cfg.Mode == ModeMutualTLS {
		serverTLS, err := ServerTLSConfig(cfg.Certs, cfg.Passphrase)
		if err != nil {
			return nil, errs.NewTransportError("", err)
		}
		clientTLS, err := ClientTLSConfig(cfg.Certs, cfg.Passphrase)
		if err != nil {
			return nil, errs.NewTransportError("", err)
		}
		t.serverTLS = serverTLS
		t.clientTLS = clientTLS
	}

	return t, nil
}

// Listen opens the local listening socket, wrapping it in TLS when Mode ==
// ModeMutualTLS. The caller is responsible for Accept-ing and wrapping the
// resulting connections with NewConn.
func (t *Transport) Listen() (net.Listener, error) {
	addr := fmt.Sprintf(":%d", t.cfg.ListenPort)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errs.NewTransportError(addr, err)
	}

	if t.cfg.Mode == ModeMutualTLS {
		ln = tls.NewListener(ln, t.serverTLS)
	}

	log.Infof("Intercom2 listening on %s (mode=%d)", addr, t.cfg.Mode)
	return ln, nil
}

// Dial connects to a remote endpoint at host:port, wrapping the connection
// in TLS when Mode == ModeMutualTLS and verifying the peer's certificate
// against the shared CA.
func (t *Transport) Dial(ctx context.Context, host string, port int) (net.Conn, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	dialer := &net.Dialer{Timeout: 10 * time.Second}

	var (
		conn net.Conn
		err  error
	)
	if t.cfg.Mode == ModeMutualTLS {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: t.clientTLS}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, errs.NewTransportError(addr, err)
	}

	return conn, nil
}

// Conn wraps a net.Conn with Intercom2 framing and serializes concurrent
// writers so a Session can safely issue a reply on one goroutine while
// sending a new request on another.
type Conn struct {
	raw      net.Conn
	maxFrame uint32

	writeMu sync.Mutex
}

// NewConn wraps raw for Intercom2 framing, using maxFrame as the largest
// payload this side will send or accept.
func NewConn(raw net.Conn, maxFrame uint32) *Conn {
	if maxFrame == 0 {
		maxFrame = MaxFrame
	}
	return &Conn{raw: raw, maxFrame: maxFrame}
}

// WriteFrame sends f, serialized per the wire format, to the peer.
func (c *Conn) WriteFrame(f *Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := WriteFrame(c.raw, f, c.maxFrame); err != nil {
		return errs.NewTransportError(c.raw.RemoteAddr().String(), err)
	}
	return nil
}

// ReadFrame blocks until the next frame arrives, or the connection errors
// or is closed.
func (c *Conn) ReadFrame() (*Frame, error) {
	f, err := ReadFrame(c.raw, c.maxFrame)
	if err != nil {
		return nil, errs.NewTransportError(c.raw.RemoteAddr().String(), err)
	}
	return f, nil
}

// Close tears down the underlying connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// RemoteAddr returns the address of the peer on the other end of c.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}
