// Package errs defines the typed error kinds used across the broker: each
// kind is raised by exactly one layer and carries enough context for that
// layer's caller to decide whether to retry, abort, or merely log.
package errs

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// TransportError wraps a failure to establish, maintain, or tear down an
// Intercom2 connection: a refused dial, a rejected TLS handshake, a
// malformed frame header, or an oversized payload. The Session reacts to it
// by logging and scheduling a reconnect with backoff.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error on endpoint %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err with a stack trace and the endpoint it
// occurred on.
func NewTransportError(endpoint string, err error) *TransportError {
	return &TransportError{Endpoint: endpoint, Err: goerrors.Wrap(err, 1)}
}

// TimeoutError is delivered to an outbound request's continuation when no
// reply arrives within the session's configured REQUEST_TIMEOUT. The
// Session does not retry automatically.
type TimeoutError struct {
	CorrelationID uint64
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request %d timed out waiting for reply", e.CorrelationID)
}

// CancelledError is delivered to all of an endpoint's pending outbound
// continuations when that endpoint is closed, e.g. during shutdown.
type CancelledError struct {
	CorrelationID uint64
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("request %d cancelled: endpoint closed", e.CorrelationID)
}

// FrameDecodeError is raised by the Dispatcher when an inbound frame cannot
// be decoded into a message it knows how to route. The error is logged and
// the frame is answered with an empty reply; the connection is left open.
type FrameDecodeError struct {
	MessageID uint16
	Err       error
}

func (e *FrameDecodeError) Error() string {
	return fmt.Sprintf("failed to decode frame for message %d: %v", e.MessageID, e.Err)
}

func (e *FrameDecodeError) Unwrap() error { return e.Err }

// DoubleReplyError is logged by a Dispatcher reply function when a handler
// invokes it more than once for the same inbound request; the second reply
// is not sent.
type DoubleReplyError struct {
	MessageID uint16
}

func (e *DoubleReplyError) Error() string {
	return fmt.Sprintf("reply for message %d already sent", e.MessageID)
}

// DuplicateCreditError is returned by the persistence gateway's
// InsertCreditRow when a type-3 WalletTransaction row already exists for a
// (txid, userId) pair. The ingestion state machine aborts the enclosing
// transaction and logs at error level, but still replies normally to the
// wallet so it doesn't retransmit indefinitely.
type DuplicateCreditError struct {
	Txid   string
	UserID string
}

func (e *DuplicateCreditError) Error() string {
	return fmt.Sprintf("duplicate credit for txid=%s user=%s", e.Txid, e.UserID)
}

// DBError wraps any other persistence-gateway failure. The enclosing
// transaction is aborted and the caller may retransmit.
type DBError struct {
	Op  string
	Err error
}

func (e *DBError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

func (e *DBError) Unwrap() error { return e.Err }

// NewDBError wraps err with a stack trace and the operation name it failed
// during.
func NewDBError(op string, err error) *DBError {
	return &DBError{Op: op, Err: goerrors.Wrap(err, 1)}
}

// ReplyParseError indicates a reply payload from the wallet did not parse
// as the structured {isError, message} object the broker façade expects.
// The façade downgrades this to delivering the raw payload as informational
// rather than failing the command outright.
type ReplyParseError struct {
	Err error
}

func (e *ReplyParseError) Error() string {
	return fmt.Sprintf("reply did not parse as a structured object: %v", e.Err)
}

func (e *ReplyParseError) Unwrap() error { return e.Err }
