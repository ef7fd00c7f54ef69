package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDispatchRoutesToRegisteredHandler(t *testing.T) {
	d := New(0, 0)

	var got []byte
	d.Register(42, func(senderID uint32, payload []byte, reply func([]byte)) {
		got = payload
		reply([]byte("ok"))
	})

	var replied []byte
	d.Dispatch(1, 42, 99, []byte("hi"), func(p []byte) { replied = p })

	require.Equal(t, "hi", string(got))
	require.Equal(t, "ok", string(replied))
}

func TestDispatchUnregisteredMessageRepliesEmpty(t *testing.T) {
	d := New(0, 0)

	var repliedCount int
	var repliedPayload []byte
	d.Dispatch(1, 999, 1, nil, func(p []byte) {
		repliedCount++
		repliedPayload = p
	})

	require.Equal(t, 1, repliedCount)
	require.Nil(t, repliedPayload)
}

func TestDispatchSecondReplyIsSwallowedNotPanicked(t *testing.T) {
	d := New(0, 0)

	d.Register(1, func(senderID uint32, payload []byte, reply func([]byte)) {
		reply([]byte("first"))
		reply([]byte("second")) // must not panic, must not be delivered twice
	})

	var calls int
	var last []byte
	d.Dispatch(1, 1, 1, nil, func(p []byte) {
		calls++
		last = p
	})

	require.Equal(t, 1, calls)
	require.Equal(t, "first", string(last))
}

func TestDispatchRateLimitDropsExcessFrames(t *testing.T) {
	d := New(1, 1)

	var handled int
	var mu sync.Mutex
	d.Register(1, func(senderID uint32, payload []byte, reply func([]byte)) {
		mu.Lock()
		handled++
		mu.Unlock()
		reply(nil)
	})

	for i := 0; i < 5; i++ {
		d.Dispatch(1, 1, uint64(i), nil, func(p []byte) {})
	}

	mu.Lock()
	initialHandled := handled
	mu.Unlock()
	require.Less(t, initialHandled, 5, "expected the rate limiter to drop some of 5 rapid frames")

	// Give the limiter a moment and confirm it recovers.
	time.Sleep(1100 * time.Millisecond)
	d.Dispatch(1, 1, 100, nil, func(p []byte) {})

	mu.Lock()
	defer mu.Unlock()
	require.Greater(t, handled, initialHandled, "expected the limiter to admit a frame after refilling")
}
