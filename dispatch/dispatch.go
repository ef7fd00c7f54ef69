// Package dispatch maps inbound Intercom2 message ids to registered
// handlers and enforces the one-shot reply discipline described in the
// spec: a handler's reply function may be invoked at most once.
package dispatch

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/decred/walletbroker/errs"
)

// HandlerFunc processes one inbound message. reply must be invoked at most
// once; invoking it a second time is reported via DoubleReplyError rather
// than panicking, so a buggy handler can't take down the connection.
type HandlerFunc func(senderID uint32, payload []byte, reply func(payload []byte))

// Dispatcher is a messageId -> HandlerFunc registry. It does not serialize
// handler invocations against each other; concurrency discipline within a
// handler (e.g. the per-txid row lock in the ingestion state machine) is
// that handler's responsibility.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[uint16]HandlerFunc

	// limiter throttles inbound handler dispatch so a misbehaving or
	// compromised wallet peer flooding NOTIFY/HEARTBEAT frames can't
	// overwhelm the worker pool or the database.
	limiter *rate.Limiter
}

// New creates a Dispatcher. ratePerSecond and burst configure the inbound
// rate limiter; pass 0 for ratePerSecond to disable limiting.
func New(ratePerSecond float64, burst int) *Dispatcher {
	d := &Dispatcher{handlers: make(map[uint16]HandlerFunc)}
	if ratePerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return d
}

// Register associates messageID with handler, overwriting any previous
// registration. The broker façade calls this for the inbound message kinds
// (NOTIFY, HEARTBEAT) during setup.
func (d *Dispatcher) Register(messageID uint16, handler HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[messageID] = handler
}

// Dispatch implements session.Handler. It looks up the handler registered
// for messageID and invokes it, wrapping reply so a second invocation
// reports DoubleReplyError instead of double-sending on the wire.
func (d *Dispatcher) Dispatch(senderID uint32, messageID uint16, correlationID uint64,
	payload []byte, reply func([]byte)) {

	if d.limiter != nil && !d.limiter.Allow() {
		log.Warnf("dropping message %d from sender %d: rate limit exceeded",
			messageID, senderID)
		reply(nil)
		return
	}

	d.mu.RLock()
	handler, ok := d.handlers[messageID]
	d.mu.RUnlock()

	if !ok {
		log.Warnf("%v", &errs.FrameDecodeError{MessageID: messageID})
		reply(nil)
		return
	}

	var (
		mu   sync.Mutex
		sent bool
	)
	guardedReply := func(payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		if sent {
			log.Errorf("%v", &errs.DoubleReplyError{MessageID: messageID})
			return
		}
		sent = true
		reply(payload)
	}

	handler(senderID, payload, guardedReply)
}
