// Package session implements the Intercom2 session layer: endpoint
// bookkeeping, correlation-id allocation, outbound request/continuation
// matching, and reconnect-with-backoff, sitting directly on top of the
// intercom2 transport.
package session

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/decred/walletbroker/errs"
	"github.com/decred/walletbroker/intercom2"
	"github.com/decred/walletbroker/metrics"
)

// RequestTimeout is the default time an outbound request waits for a reply
// before its continuation is invoked with a TimeoutError.
const RequestTimeout = 30 * time.Second

// HandlerShutdownGrace is the default time Stop waits for in-flight inbound
// handlers to finish before returning.
const HandlerShutdownGrace = 10 * time.Second

// DefaultHandlerWorkers is the default size of the worker pool inbound
// handler invocations are dispatched to.
const DefaultHandlerWorkers = 8

// Handler processes an inbound Intercom2 request or notification that did
// not match a pending outbound continuation. reply must be invoked exactly
// once; the Dispatcher implements the one-shot/DoubleReplyError discipline,
// and Session also guards the wire reply the same way and sends an empty
// reply if Dispatch returns without having replied.
type Handler interface {
	Dispatch(senderID uint32, messageID uint16, correlationID uint64,
		payload []byte, reply func([]byte))
}

// Config configures a Session.
type Config struct {
	OwnID                uint32
	Transport            *intercom2.Transport
	Handler              Handler
	RequestTimeout       time.Duration
	HandlerShutdownGrace time.Duration

	// HandlerWorkers bounds how many inbound handler invocations run at
	// once; a saturated pool applies backpressure to the connection's
	// read loop rather than queueing frames without limit.
	HandlerWorkers int

	// Metrics records per-endpoint frame counters and the pending
	// correlation-table gauge. Nil disables metrics.
	Metrics *metrics.Registry
}

// Session owns the local listener and the set of configured outbound
// endpoints, routing inbound frames to either a waiting continuation or the
// configured Handler, and outbound requests to the right endpoint with
// correlation-id bookkeeping.
type Session struct {
	cfg Config

	mu        sync.RWMutex
	endpoints map[uint32]*Endpoint

	listener net.Listener

	handlerWG  sync.WaitGroup
	handlerSem chan struct{}

	quit chan struct{}
}

// New creates a Session. Call Start to begin listening.
func New(cfg Config) *Session {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = RequestTimeout
	}
	if cfg.HandlerShutdownGrace == 0 {
		cfg.HandlerShutdownGrace = HandlerShutdownGrace
	}
	if cfg.HandlerWorkers <= 0 {
		cfg.HandlerWorkers = DefaultHandlerWorkers
	}
	return &Session{
		cfg:        cfg,
		endpoints:  make(map[uint32]*Endpoint),
		handlerSem: make(chan struct{}, cfg.HandlerWorkers),
		quit:       make(chan struct{}),
	}
}

// AddEndpoint registers a remote peer this Session should maintain an
// outbound connection to, reconnecting with backoff as needed.
func (s *Session) AddEndpoint(remoteID uint32, host string, port int) error {
	ep, err := newEndpoint(remoteID, host, port, s.cfg.Transport, s.routeFrame, nil, s.cfg.Metrics)
	if err != nil {
		return errs.NewTransportError(host, err)
	}

	s.mu.Lock()
	s.endpoints[remoteID] = ep
	s.mu.Unlock()

	return nil
}

// Start opens the local listener and begins accepting inbound connections,
// and launches the timeout sweep for outbound requests.
func (s *Session) Start() error {
	ln, err := s.cfg.Transport.Listen()
	if err != nil {
		return err
	}
	s.listener = ln

	go s.acceptLoop(ln)
	go s.sweepLoop()

	return nil
}

func (s *Session) acceptLoop(ln net.Listener) {
	for {
		raw, err := ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				log.Errorf("accept error: %v", err)
				return
			}
		}

		conn := intercom2.NewConn(raw, 0)
		go s.inboundReadLoop(conn)
	}
}

func (s *Session) inboundReadLoop(conn *intercom2.Conn) {
	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			log.Debugf("inbound connection from %s closed: %v", conn.RemoteAddr(), err)
			return
		}
		s.routeFrame(conn, frame)
	}
}

func (s *Session) sweepLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.RLock()
			endpoints := make([]*Endpoint, 0, len(s.endpoints))
			for _, ep := range s.endpoints {
				endpoints = append(endpoints, ep)
			}
			s.mu.RUnlock()

			now := time.Now()
			for _, ep := range endpoints {
				ep.pending.sweepTimeouts(now)
				s.cfg.Metrics.SetPending(ep.RemoteID, ep.pending.len())
			}
		case <-s.quit:
			return
		}
	}
}

// routeFrame delivers an inbound frame either to the pending continuation
// that matches its correlation id and message id (a reply), or to the
// configured Handler (a request or notification).
func (s *Session) routeFrame(conn *intercom2.Conn, frame *intercom2.Frame) {
	s.cfg.Metrics.FrameReceived(frame.SenderID)

	if frame.CorrelationID != 0 {
		s.mu.RLock()
		ep, ok := s.endpoints[frame.SenderID]
		s.mu.RUnlock()

		if ok && ep.pending.resolve(frame.CorrelationID, frame.MessageID, frame.Payload) {
			s.cfg.Metrics.SetPending(frame.SenderID, ep.pending.len())
			return
		}
	}

	if s.cfg.Handler == nil {
		return
	}

	select {
	case s.handlerSem <- struct{}{}:
	case <-s.quit:
		return
	}

	s.handlerWG.Add(1)
	go func() {
		defer s.handlerWG.Done()
		defer func() { <-s.handlerSem }()

		replied := false
		var replyMu sync.Mutex
		reply := func(payload []byte) {
			replyMu.Lock()
			defer replyMu.Unlock()
			if replied {
				log.Errorf("%v", &errs.DoubleReplyError{MessageID: frame.MessageID})
				return
			}
			replied = true

			if frame.CorrelationID == 0 {
				return
			}
			out := &intercom2.Frame{
				SenderID:      s.cfg.OwnID,
				MessageID:     frame.MessageID,
				CorrelationID: frame.CorrelationID,
				Payload:       payload,
			}
			if err := conn.WriteFrame(out); err != nil {
				log.Errorf("failed to send reply: %v", err)
				return
			}
			s.cfg.Metrics.FrameSent(frame.SenderID)
		}

		s.cfg.Handler.Dispatch(frame.SenderID, frame.MessageID, frame.CorrelationID,
			frame.Payload, reply)

		replyMu.Lock()
		sent := replied
		replyMu.Unlock()
		if !sent {
			log.Warnf("handler for message %d completed without replying; sending empty reply",
				frame.MessageID)
			reply(nil)
		}
	}()
}

// Send issues an outbound request of the given messageID and payload to
// endpoint. Transport errors are returned by Send itself, not passed to
// continuation: an unknown or unconnected endpoint returns an error before
// anything is registered, and a failed write returns an error while the
// request stays registered until it times out. Once registered,
// continuation is invoked exactly once with a TimeoutError, a
// CancelledError, or the reply payload.
func (s *Session) Send(ctx context.Context, endpointID uint32, messageID uint16,
	payload []byte, continuation Continuation) error {

	s.mu.RLock()
	ep, ok := s.endpoints[endpointID]
	s.mu.RUnlock()
	if !ok {
		return errs.NewTransportError("", net.UnknownNetworkError("unknown endpoint"))
	}

	conn := ep.activeConn()
	if conn == nil {
		return errs.NewTransportError("", net.UnknownNetworkError("endpoint not connected"))
	}

	cid := ep.allocCorrelationID()
	deadline := time.Now().Add(s.cfg.RequestTimeout)
	ep.pending.add(cid, messageID, deadline, continuation)
	s.cfg.Metrics.SetPending(endpointID, ep.pending.len())

	frame := &intercom2.Frame{
		SenderID:      s.cfg.OwnID,
		MessageID:     messageID,
		CorrelationID: cid,
		Payload:       payload,
	}

	if err := conn.WriteFrame(frame); err != nil {
		return err
	}
	s.cfg.Metrics.FrameSent(endpointID)

	return nil
}

// Stop closes the listener and all endpoints, cancelling their pending
// continuations, then waits up to HandlerShutdownGrace for in-flight
// inbound handlers to finish.
func (s *Session) Stop() {
	close(s.quit)

	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	endpoints := s.endpoints
	s.endpoints = make(map[uint32]*Endpoint)
	s.mu.Unlock()

	for _, ep := range endpoints {
		ep.close()
	}

	done := make(chan struct{})
	go func() {
		s.handlerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.HandlerShutdownGrace):
		log.Warnf("handler shutdown grace period elapsed with handlers still running")
	}
}
