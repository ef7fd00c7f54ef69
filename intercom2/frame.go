package intercom2

import (
	"encoding/binary"
	"io"

	"github.com/decred/walletbroker/errs"
)

// MaxFrame is the largest payload this package will accept in a single
// frame unless a transport is configured with a larger MaxFrameSize. The
// spec requires this to be at least 1 MiB; the default here is 4 MiB to
// leave room for ADDRESSES replies listing many addresses.
const MaxFrame = 4 * 1024 * 1024

// headerSize is the wire size, in bytes, of a Frame's fixed-size header:
// senderId(4) + messageId(2) + correlationId(8) + payloadLen(4).
const headerSize = 4 + 2 + 8 + 4

// Frame is a single Intercom2 message as described in the wire protocol
// section: a sender identity, a message-id, a correlation id (nonzero for
// requests, echoed on replies), and a length-prefixed payload. All integer
// fields are encoded big-endian (network byte order).
type Frame struct {
	SenderID      uint32
	MessageID     uint16
	CorrelationID uint64
	Payload       []byte
}

// WriteFrame serializes f to w as a single length-framed message. The
// maxFrame argument bounds the payload this peer is willing to send; it
// should match the limit advertised by the Transport.
func WriteFrame(w io.Writer, f *Frame, maxFrame uint32) error {
	if uint32(len(f.Payload)) > maxFrame {
		return errs.NewTransportError("", io.ErrShortWrite)
	}

	var header [headerSize]byte
	binary.BigEndian.PutUint32(header[0:4], f.SenderID)
	binary.BigEndian.PutUint16(header[4:6], f.MessageID)
	binary.BigEndian.PutUint64(header[6:14], f.CorrelationID)
	binary.BigEndian.PutUint32(header[14:18], uint32(len(f.Payload)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(f.Payload) == 0 {
		return nil
	}
	_, err := w.Write(f.Payload)
	return err
}

// ReadFrame deserializes a single frame from r, rejecting payloads larger
// than maxFrame as a malformed-frame TransportError.
func ReadFrame(r io.Reader, maxFrame uint32) (*Frame, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	payloadLen := binary.BigEndian.Uint32(header[14:18])
	if payloadLen > maxFrame {
		return nil, errs.NewTransportError("", io.ErrShortBuffer)
	}

	f := &Frame{
		SenderID:      binary.BigEndian.Uint32(header[0:4]),
		MessageID:     binary.BigEndian.Uint16(header[4:6]),
		CorrelationID: binary.BigEndian.Uint64(header[6:14]),
	}

	if payloadLen > 0 {
		f.Payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			return nil, err
		}
	}

	return f, nil
}
