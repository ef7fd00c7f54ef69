package intercom2

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	cases := []*Frame{
		{SenderID: 1, MessageID: 100, CorrelationID: 0, Payload: nil},
		{SenderID: 42, MessageID: 1, CorrelationID: 12345, Payload: []byte("hello")},
		{SenderID: 0, MessageID: 101, CorrelationID: 1, Payload: bytes.Repeat([]byte{0xAB}, 4096)},
	}

	for _, want := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteFrame(&buf, want, MaxFrame))

		got, err := ReadFrame(&buf, MaxFrame)
		require.NoError(t, err)

		require.Equal(t, want.SenderID, got.SenderID)
		require.Equal(t, want.MessageID, got.MessageID)
		require.Equal(t, want.CorrelationID, got.CorrelationID)
		require.True(t, bytes.Equal(want.Payload, got.Payload))
	}
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	f := &Frame{SenderID: 1, MessageID: 1, Payload: make([]byte, 100)}

	var buf bytes.Buffer
	require.Error(t, WriteFrame(&buf, f, 10))
}

func TestReadFrameRejectsOversizedHeaderLen(t *testing.T) {
	f := &Frame{SenderID: 1, MessageID: 1, Payload: make([]byte, 100)}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, f, MaxFrame))

	_, err := ReadFrame(&buf, 10)
	require.Error(t, err)
}
