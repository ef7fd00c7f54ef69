package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/decred/walletbroker/errs"
)

func TestPendingResolveDeliversOnce(t *testing.T) {
	pt := newPendingTable()

	var calls int
	var got []byte
	pt.add(1, 15, time.Now().Add(time.Minute), func(payload []byte, err error) {
		calls++
		got = payload
		require.NoError(t, err)
	})

	require.True(t, pt.resolve(1, 15, []byte("reply")))
	require.Equal(t, 1, calls)
	require.Equal(t, "reply", string(got))

	// A late duplicate for the same correlation id is discarded.
	require.False(t, pt.resolve(1, 15, []byte("again")))
	require.Equal(t, 1, calls)
	require.Zero(t, pt.len())
}

// A frame whose correlation id collides with an outstanding request of ours
// but carries a different message id is an inbound request from the peer,
// not a reply; it must be left for the dispatcher and the pending entry
// must survive.
func TestPendingResolveRejectsMessageIDMismatch(t *testing.T) {
	pt := newPendingTable()

	var calls int
	pt.add(1, 15, time.Now().Add(time.Minute), func(payload []byte, err error) {
		calls++
	})

	require.False(t, pt.resolve(1, 100, []byte("notify payload")))
	require.Zero(t, calls)
	require.Equal(t, 1, pt.len())

	require.True(t, pt.resolve(1, 15, []byte("real reply")))
	require.Equal(t, 1, calls)
}

func TestPendingSweepTimeoutsFailsExpiredOnly(t *testing.T) {
	pt := newPendingTable()
	now := time.Now()

	var expiredErr error
	pt.add(1, 15, now.Add(-time.Second), func(payload []byte, err error) {
		expiredErr = err
	})

	var liveCalls int
	pt.add(2, 15, now.Add(time.Minute), func(payload []byte, err error) {
		liveCalls++
	})

	pt.sweepTimeouts(now)

	var timeout *errs.TimeoutError
	require.True(t, errors.As(expiredErr, &timeout), "want TimeoutError, got %v", expiredErr)
	require.Zero(t, liveCalls)
	require.Equal(t, 1, pt.len())
}

func TestPendingCancelAllFailsEverything(t *testing.T) {
	pt := newPendingTable()

	errsSeen := make([]error, 0, 2)
	cont := func(payload []byte, err error) {
		errsSeen = append(errsSeen, err)
	}
	pt.add(1, 15, time.Now().Add(time.Minute), cont)
	pt.add(2, 20, time.Now().Add(time.Minute), cont)

	pt.cancelAll()

	require.Len(t, errsSeen, 2)
	for _, err := range errsSeen {
		var cancelled *errs.CancelledError
		require.True(t, errors.As(err, &cancelled), "want CancelledError, got %v", err)
	}
	require.Zero(t, pt.len())
}
