package brokertest

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/decred/walletbroker/dispatch"
	"github.com/decred/walletbroker/intercom2"
	"github.com/decred/walletbroker/session"
)

// Peer is one side of an in-process two-endpoint Intercom2 mesh: its own
// listener plus a configured outbound endpoint to the other side, used to
// exercise Session/Dispatcher wiring end to end without real sockets
// crossing process boundaries or a live wallet peer.
type Peer struct {
	OwnID uint32
	Port  int
	Disp  *dispatch.Dispatcher
	Sess  *session.Session

	transport *intercom2.Transport
}

// NewPeer builds a plaintext Peer listening on an ephemeral port.
func NewPeer(t testing.TB, ownID uint32) *Peer {
	t.Helper()

	port, err := freePort()
	if err != nil {
		t.Fatalf("allocating port: %v", err)
	}

	transport, err := intercom2.New(&intercom2.Config{
		OwnID:      ownID,
		ListenPort: port,
		Mode:       intercom2.ModePlaintext,
	})
	if err != nil {
		t.Fatalf("building transport: %v", err)
	}

	disp := dispatch.New(0, 0)
	sess := session.New(session.Config{
		OwnID:     ownID,
		Transport: transport,
		Handler:   disp,
	})

	return &Peer{OwnID: ownID, Port: port, Disp: disp, Sess: sess, transport: transport}
}

// Start begins listening for inbound connections.
func (p *Peer) Start(t testing.TB) {
	t.Helper()
	if err := p.Sess.Start(); err != nil {
		t.Fatalf("starting peer %d: %v", p.OwnID, err)
	}
}

// ConnectTo configures an outbound endpoint from p to other, and waits
// briefly for the connection to establish.
func (p *Peer) ConnectTo(t testing.TB, other *Peer) {
	t.Helper()
	if err := p.Sess.AddEndpoint(other.OwnID, "127.0.0.1", other.Port); err != nil {
		t.Fatalf("connecting peer %d to %d: %v", p.OwnID, other.OwnID, err)
	}
	time.Sleep(200 * time.Millisecond)
}

// Send issues messageID/payload from p to endpointID and blocks for the
// reply, failing the test if it times out within timeout.
func (p *Peer) Send(t testing.TB, endpointID uint32, messageID uint16, payload []byte, timeout time.Duration) []byte {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ch := make(chan struct {
		payload []byte
		err     error
	}, 1)

	err := p.Sess.Send(ctx, endpointID, messageID, payload, func(payload []byte, err error) {
		ch <- struct {
			payload []byte
			err     error
		}{payload, err}
	})
	if err != nil {
		t.Fatalf("send from %d to %d: %v", p.OwnID, endpointID, err)
	}

	select {
	case res := <-ch:
		if res.err != nil {
			t.Fatalf("reply from %d to %d: %v", endpointID, p.OwnID, res.err)
		}
		return res.payload
	case <-ctx.Done():
		t.Fatalf("timed out waiting for reply from %d", endpointID)
		return nil
	}
}

// Stop tears the peer down.
func (p *Peer) Stop() {
	p.Sess.Stop()
}

func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	addr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected listener address type %T", ln.Addr())
	}
	return addr.Port, nil
}
