package broker

import (
	"encoding/json"

	"github.com/decred/walletbroker/errs"
)

// rawReply is the wire shape of a structured {isError, message} reply.
// message may be a string or an arbitrary JSON value (e.g. ADDRESSES
// returns a list), so it is decoded lazily via json.RawMessage.
type rawReply struct {
	IsError bool            `json:"isError"`
	Message json.RawMessage `json:"message"`
}

// Reply is the decoded result of an outbound command, per the façade's
// uniform reply-parsing rule: a structured {isError, message} object is
// decoded and split into success/failure; anything that doesn't parse as
// that shape is delivered as a raw informational payload instead of
// failing the command outright.
type Reply struct {
	// IsError is true only when the payload parsed as a structured object
	// with isError=true.
	IsError bool
	// Message holds the decoded message field's raw JSON bytes when the
	// payload parsed as a structured object, or the entire raw payload
	// otherwise.
	Message json.RawMessage
	// Raw is true when the payload did not parse as {isError, message} and
	// Message is therefore the verbatim payload.
	Raw bool
}

// Failed reports whether the reply represents a wallet-reported error.
func (r *Reply) Failed() bool { return r.IsError }

// String returns Message as a string, unquoting it if it was JSON-encoded
// as a string literal.
func (r *Reply) String() string {
	var s string
	if err := json.Unmarshal(r.Message, &s); err == nil {
		return s
	}
	return string(r.Message)
}

// parseReply applies the broker façade's reply-parsing rule to a raw
// payload received on a correlation id.
func parseReply(payload []byte) *Reply {
	var rr rawReply
	if err := json.Unmarshal(payload, &rr); err != nil {
		log.Debugf("%v", &errs.ReplyParseError{Err: err})
		return &Reply{Message: payload, Raw: true}
	}
	return &Reply{IsError: rr.IsError, Message: rr.Message}
}
