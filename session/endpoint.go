package session

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/decred/dcrd/connmgr"
	"github.com/decred/walletbroker/intercom2"
	"github.com/decred/walletbroker/metrics"
)

// Endpoint is a single configured remote peer in the Intercom2 mesh: a
// numeric identity reachable at host:port. The Session dials it and keeps
// it connected, reconnecting with bounded exponential backoff whenever the
// connection drops, using dcrd/connmgr's permanent-connection retry logic
// for exactly that purpose.
type Endpoint struct {
	RemoteID uint32
	Host     string
	Port     int

	transport *intercom2.Transport
	onFrame   func(conn *intercom2.Conn, frame *intercom2.Frame)
	onConnect func(conn *intercom2.Conn)

	pending *pendingTable
	nextCID uint64

	cm     *connmgr.ConnManager
	connMu sync.Mutex
	conn   *intercom2.Conn

	metrics *metrics.Registry

	wg sync.WaitGroup
}

func newEndpoint(remoteID uint32, host string, port int, t *intercom2.Transport,
	onFrame func(*intercom2.Conn, *intercom2.Frame), onConnect func(*intercom2.Conn),
	m *metrics.Registry) (*Endpoint, error) {

	e := &Endpoint{
		RemoteID:  remoteID,
		Host:      host,
		Port:      port,
		transport: t,
		onFrame:   onFrame,
		onConnect: onConnect,
		pending:   newPendingTable(),
		metrics:   m,
	}

	// Host may be a DNS name rather than a literal IP; connmgr only needs a
	// net.Addr for logging/identity purposes, so a thin wrapper is enough.
	var addr net.Addr
	if ip := net.ParseIP(host); ip != nil {
		addr = &net.TCPAddr{IP: ip, Port: port}
	} else {
		addr = stringAddr(fmt.Sprintf("%s:%d", host, port))
	}

	cm, err := connmgr.New(&connmgr.Config{
		TargetOutbound: 1,
		RetryDuration:  time.Second,
		DialAddr: func(net.Addr) (net.Conn, error) {
			return t.Dial(context.Background(), host, port)
		},
		OnConnection:    e.handleConnected,
		OnDisconnection: e.handleDisconnected,
	})
	if err != nil {
		return nil, err
	}
	e.cm = cm
	e.cm.Start()
	go e.cm.Connect(&connmgr.ConnReq{Addr: addr, Permanent: true})

	return e, nil
}

// stringAddr is a minimal net.Addr implementation for host:port pairs that
// aren't a bare IP literal, satisfying connmgr's requirement for a net.Addr
// to log and key connection requests by.
type stringAddr string

func (a stringAddr) Network() string { return "tcp" }
func (a stringAddr) String() string  { return string(a) }

func (e *Endpoint) handleConnected(c *connmgr.ConnReq, rawConn net.Conn) {
	conn := intercom2.NewConn(rawConn, 0)

	e.connMu.Lock()
	e.conn = conn
	e.connMu.Unlock()

	log.Infof("endpoint %d connected at %s", e.RemoteID, rawConn.RemoteAddr())

	if e.onConnect != nil {
		e.onConnect(conn)
	}

	e.wg.Add(1)
	go e.readLoop(conn)
}

func (e *Endpoint) handleDisconnected(c *connmgr.ConnReq) {
	log.Warnf("endpoint %d disconnected, reconnecting with backoff", e.RemoteID)

	e.connMu.Lock()
	e.conn = nil
	e.connMu.Unlock()

	e.pending.cancelAll()
	e.metrics.SetPending(e.RemoteID, 0)
}

func (e *Endpoint) readLoop(conn *intercom2.Conn) {
	defer e.wg.Done()

	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			log.Debugf("endpoint %d read loop exiting: %v", e.RemoteID, err)
			return
		}
		e.onFrame(conn, frame)
	}
}

// activeConn returns the currently connected Conn, or nil if the endpoint is
// between connections.
func (e *Endpoint) activeConn() *intercom2.Conn {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	return e.conn
}

func (e *Endpoint) allocCorrelationID() uint64 {
	return atomic.AddUint64(&e.nextCID, 1)
}

// close tears down the endpoint, cancelling pending requests with
// CancelledError before their table entries are removed.
func (e *Endpoint) close() {
	e.pending.cancelAll()
	e.metrics.SetPending(e.RemoteID, 0)
	if e.cm != nil {
		e.cm.Stop()
	}
	e.connMu.Lock()
	conn := e.conn
	e.connMu.Unlock()
	if conn != nil {
		conn.Close()
	}
	e.wg.Wait()
}
