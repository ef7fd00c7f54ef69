package session

import (
	"sync"
	"time"

	"github.com/decred/walletbroker/errs"
)

// Continuation is invoked exactly once when an outbound request's reply
// arrives, times out, or is cancelled. err is non-nil in the latter two
// cases; payload is the raw reply bytes on success.
type Continuation func(payload []byte, err error)

type pendingRequest struct {
	continuation Continuation
	messageID    uint16
	deadline     time.Time
}

// pendingTable holds outstanding outbound requests keyed by correlation id,
// matching each to the continuation waiting on its reply.
type pendingTable struct {
	mu      sync.Mutex
	entries map[uint64]*pendingRequest
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[uint64]*pendingRequest)}
}

func (t *pendingTable) add(correlationID uint64, messageID uint16, deadline time.Time, cont Continuation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[correlationID] = &pendingRequest{
		continuation: cont,
		messageID:    messageID,
		deadline:     deadline,
	}
}

// resolve delivers payload to the continuation registered for
// correlationID and removes the entry. A reply echoes the messageID of the
// request it answers, so a mismatched messageID means the frame is an
// inbound request whose correlation id happens to collide with one of our
// own outstanding requests (both peers allocate ids independently); such a
// frame is left for the dispatcher. A late reply for a correlation id that
// has already timed out or been cancelled (and thus purged) is silently
// discarded.
func (t *pendingTable) resolve(correlationID uint64, messageID uint16, payload []byte) bool {
	t.mu.Lock()
	entry, ok := t.entries[correlationID]
	if ok && entry.messageID != messageID {
		ok = false
		entry = nil
	} else if ok {
		delete(t.entries, correlationID)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	entry.continuation(payload, nil)
	return true
}

// sweepTimeouts fails every entry whose deadline has passed as of now with
// a TimeoutError, and purges it from the table.
func (t *pendingTable) sweepTimeouts(now time.Time) {
	var expired []*pendingRequest

	t.mu.Lock()
	for id, entry := range t.entries {
		if !entry.deadline.After(now) {
			expired = append(expired, entry)
			delete(t.entries, id)
		}
	}
	t.mu.Unlock()

	for _, entry := range expired {
		entry.continuation(nil, &errs.TimeoutError{})
	}
}

// len returns the current number of outstanding entries, for the pending
// outbound correlation-table size gauge.
func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// cancelAll fails every pending entry with a CancelledError and empties the
// table, used when an endpoint is closed.
func (t *pendingTable) cancelAll() {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[uint64]*pendingRequest)
	t.mu.Unlock()

	for _, entry := range entries {
		entry.continuation(nil, &errs.CancelledError{})
	}
}
