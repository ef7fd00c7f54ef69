// Package metrics exposes Prometheus counters and gauges for the transport,
// ingestion, and status layers. It is purely observational: nothing in the
// core reads these back to make decisions, matching the shared-resource
// policy that the database is the only source of truth for broker state.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the collectors registered by the broker. Callers that
// don't want metrics can leave a *Registry nil; every increment method on
// this package's callers guards against a nil receiver.
type Registry struct {
	FramesSent        *prometheus.CounterVec
	FramesReceived    *prometheus.CounterVec
	NotifiesHandled   prometheus.Counter
	CreditsApplied    prometheus.Counter
	DuplicateCredits  prometheus.Counter
	HeartbeatsHandled prometheus.Counter
	PendingRequests   *prometheus.GaugeVec
}

// NewRegistry creates and registers a Registry's collectors against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walletbroker",
			Name:      "frames_sent_total",
			Help:      "Intercom2 frames sent, by remote endpoint id.",
		}, []string{"endpoint"}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walletbroker",
			Name:      "frames_received_total",
			Help:      "Intercom2 frames received, by remote endpoint id.",
		}, []string{"endpoint"}),
		NotifiesHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "walletbroker",
			Name:      "notifies_handled_total",
			Help:      "NOTIFY frames processed by the ingestion state machine.",
		}),
		CreditsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "walletbroker",
			Name:      "credits_applied_total",
			Help:      "Type-3 credit rows successfully inserted.",
		}),
		DuplicateCredits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "walletbroker",
			Name:      "duplicate_credits_total",
			Help:      "NOTIFY transactions aborted by a DuplicateCreditError.",
		}),
		HeartbeatsHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "walletbroker",
			Name:      "heartbeats_handled_total",
			Help:      "HEARTBEAT frames processed by the status updater.",
		}),
		PendingRequests: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "walletbroker",
			Name:      "pending_requests",
			Help:      "Outbound requests awaiting a reply, by remote endpoint id.",
		}, []string{"endpoint"}),
	}

	reg.MustRegister(m.FramesSent, m.FramesReceived, m.NotifiesHandled,
		m.CreditsApplied, m.DuplicateCredits, m.HeartbeatsHandled, m.PendingRequests)

	return m
}

// FrameSent records one Intercom2 frame written to endpointID. Safe to call
// on a nil *Registry.
func (m *Registry) FrameSent(endpointID uint32) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(endpointLabel(endpointID)).Inc()
}

// FrameReceived records one Intercom2 frame read from endpointID. Safe to
// call on a nil *Registry.
func (m *Registry) FrameReceived(endpointID uint32) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(endpointLabel(endpointID)).Inc()
}

// SetPending sets the current size of endpointID's outbound correlation
// table. Safe to call on a nil *Registry.
func (m *Registry) SetPending(endpointID uint32, n int) {
	if m == nil {
		return
	}
	m.PendingRequests.WithLabelValues(endpointLabel(endpointID)).Set(float64(n))
}

func endpointLabel(endpointID uint32) string {
	return strconv.FormatUint(uint64(endpointID), 10)
}
