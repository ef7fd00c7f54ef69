package broker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseReplyStructuredSuccess(t *testing.T) {
	r := parseReply([]byte(`{"isError":false,"message":"abc123"}`))
	require.False(t, r.IsError)
	require.False(t, r.Raw, "expected a structured reply, not raw")
	require.Equal(t, "abc123", r.String())
}

func TestParseReplyStructuredError(t *testing.T) {
	r := parseReply([]byte(`{"isError":true,"message":"wallet locked"}`))
	require.True(t, r.Failed())
	require.Equal(t, "wallet locked", r.String())
}

func TestParseReplyUnstructuredIsRaw(t *testing.T) {
	r := parseReply([]byte("plain text reply"))
	require.True(t, r.Raw, "expected the payload to be treated as raw")
	require.False(t, r.IsError, "a raw reply must not be treated as an error")
	require.Equal(t, "plain text reply", r.String())
}
