// Package status implements the HEARTBEAT handler: a pure coin-status
// upsert with no cross-row invariants, unlike the ingestion state machine.
package status

import (
	"context"
	"encoding/json"

	"github.com/decred/walletbroker/metrics"
	"github.com/decred/walletbroker/walletdb"
)

// heartbeatPayload is the HEARTBEAT wire payload.
type heartbeatPayload struct {
	Coin          string `json:"coin"`
	Online        bool   `json:"online"`
	Synced        bool   `json:"synced"`
	Crawling      bool   `json:"crawling"`
	BlockHeight   int64  `json:"blockheight"`
	BestBlockHash string `json:"bestBlockHash"`
	BlockTime     int64  `json:"blocktime"`
}

// Handler processes HEARTBEAT frames against a persistence gateway.
type Handler struct {
	gw      walletdb.Gateway
	metrics *metrics.Registry
}

// New creates a HEARTBEAT Handler. m may be nil to disable metrics.
func New(gw walletdb.Gateway, m *metrics.Registry) *Handler {
	return &Handler{gw: gw, metrics: m}
}

// Handle implements the dispatch.HandlerFunc shape for message id
// HEARTBEAT.
func (h *Handler) Handle(senderID uint32, payload []byte, reply func([]byte)) {
	var in heartbeatPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		log.Errorf("failed to decode HEARTBEAT payload: %v", err)
		reply([]byte("failed to decode HEARTBEAT"))
		return
	}

	err := h.gw.WithTxn(context.Background(), func(tx walletdb.Tx) error {
		return tx.UpsertStatus(in.Coin, in.Online, in.Synced, in.Crawling,
			in.BlockHeight, in.BestBlockHash, in.BlockTime)
	})
	if err != nil {
		log.Errorf("heartbeat processing failed for coin=%s: %v", in.Coin, err)
		reply([]byte("failed to process HEARTBEAT"))
		return
	}

	if h.metrics != nil {
		h.metrics.HeartbeatsHandled.Inc()
	}
	reply([]byte("Received HEARTBEAT"))
}
