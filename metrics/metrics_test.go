package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/decred/walletbroker/metrics"
)

func TestFrameCountersIncrementPerEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRegistry(reg)

	m.FrameSent(7)
	m.FrameSent(7)
	m.FrameReceived(9)

	require.Equal(t, float64(2), testutil.ToFloat64(m.FramesSent.WithLabelValues("7")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.FramesReceived.WithLabelValues("9")))
}

func TestSetPendingReflectsLatestValue(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRegistry(reg)

	m.SetPending(3, 5)
	require.Equal(t, float64(5), testutil.ToFloat64(m.PendingRequests.WithLabelValues("3")))

	m.SetPending(3, 0)
	require.Equal(t, float64(0), testutil.ToFloat64(m.PendingRequests.WithLabelValues("3")))
}

// A nil *Registry is the documented way to disable metrics; every method
// must tolerate it rather than panic.
func TestNilRegistryIsANoop(t *testing.T) {
	var m *metrics.Registry

	require.NotPanics(t, func() {
		m.FrameSent(1)
		m.FrameReceived(1)
		m.SetPending(1, 1)
	})
}
