// Package ingest implements the NOTIFY handler: the transaction/job/balance
// state machine that turns wallet transaction observations into durable,
// idempotent user credits.
package ingest

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/davecgh/go-spew/spew"

	"github.com/decred/walletbroker/errs"
	"github.com/decred/walletbroker/metrics"
	"github.com/decred/walletbroker/walletdb"
)

// balanceEntry is one element of a NOTIFY's balances array: an address and
// its balance as an integer string in the coin's smallest unit.
type balanceEntry struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// notifyPayload is the NOTIFY wire payload.
type notifyPayload struct {
	Txid          string         `json:"txid"`
	Coin          string         `json:"coin"`
	Confirmations int64          `json:"confirmations"`
	Blockhash     string         `json:"blockhash"`
	Balances      []balanceEntry `json:"balances"`
}

// attribution is one address resolved to a site user during step 3.
type attribution struct {
	Address string
	UserID  string
	Balance string
}

// Handler processes NOTIFY frames against a persistence gateway.
type Handler struct {
	gw               walletdb.Gateway
	confirmThreshold int64
	precisionFor     func(coin string) int
	metrics          *metrics.Registry
}

// New creates a NOTIFY Handler. confirmThreshold is CONFIRM_THRESHOLD from
// configuration. precisionFor resolves a NOTIFY's coin field to its
// DECIMAL_PRECISION (a per-coin constant per the wire protocol — a balance's
// smallest-unit scale depends on which coin reported it), typically
// (*config.Config).PrecisionFor. m may be nil to disable metrics.
func New(gw walletdb.Gateway, confirmThreshold int64, precisionFor func(coin string) int, m *metrics.Registry) *Handler {
	return &Handler{gw: gw, confirmThreshold: confirmThreshold, precisionFor: precisionFor, metrics: m}
}

// Handle implements the dispatch.HandlerFunc shape for message id NOTIFY.
func (h *Handler) Handle(senderID uint32, payload []byte, reply func([]byte)) {
	var in notifyPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		log.Errorf("failed to decode NOTIFY payload: %v\n%s", err, spew.Sdump(payload))
		reply([]byte("failed to decode NOTIFY"))
		return
	}

	err := h.gw.WithTxn(context.Background(), func(tx walletdb.Tx) error {
		return h.apply(tx, &in)
	})

	var dup *errs.DuplicateCreditError
	switch {
	case err == nil:
		if h.metrics != nil {
			h.metrics.NotifiesHandled.Inc()
		}
		reply([]byte("Received NOTIFY"))
	case errors.As(err, &dup):
		// Abort the transaction but still reply normally so the wallet
		// doesn't retransmit indefinitely.
		log.Errorf("%v", err)
		if h.metrics != nil {
			h.metrics.DuplicateCredits.Inc()
		}
		reply([]byte("Received NOTIFY"))
	default:
		log.Errorf("notify processing failed for txid=%s: %v", in.Txid, err)
		reply([]byte("failed to process NOTIFY"))
	}
}

// apply runs the seven-step NOTIFY transition inside a single transaction.
// Step 7 (the reply) is the caller's responsibility.
func (h *Handler) apply(tx walletdb.Tx, in *notifyPayload) error {
	// Per-txid serialization is the first statement of the transaction:
	// NOTIFYs for the same txid never interleave past this point.
	if err := tx.LockTxidRow(in.Txid); err != nil {
		return err
	}

	// Step 1: ensure transaction row.
	txRow, err := tx.UpsertTxRow(in.Txid, in.Confirmations)
	if err != nil {
		return err
	}
	alreadyComplete := txRow.Complete

	// confirms is the row's confirmation count after step 1's max-with-
	// existing upsert, not the raw incoming value: an out-of-order, lower
	// confirmations value must not un-cross a threshold already crossed by
	// an earlier delivery.
	confirms := txRow.Confirms

	// Step 2: ensure job row.
	job, err := tx.FindJob(in.Txid)
	if err != nil {
		return err
	}
	if job == nil && !alreadyComplete && confirms >= 0 {
		rawPayload, _ := json.Marshal(in)
		if err := tx.InsertJob(in.Txid, in.Coin, rawPayload); err != nil {
			return err
		}
	}

	// Step 3: attribution attempt.
	var attributed []attribution
	if !alreadyComplete && confirms >= h.confirmThreshold {
		attributed, err = h.attribute(tx, in.Balances)
		if err != nil {
			return err
		}
	}

	if len(attributed) > 0 {
		// Step 4: promote job. Re-fetch in case step 2 just inserted it.
		if job == nil {
			job, err = tx.FindJob(in.Txid)
			if err != nil {
				return err
			}
		}
		if job != nil && job.State == int(walletdb.JobObserved) {
			if err := tx.PromoteJob(in.Txid, attributed[0].UserID, "okay"); err != nil {
				return err
			}
		}

		// Step 5: credit users.
		for _, a := range attributed {
			amount, err := ParseIntString(a.Balance, h.precisionFor(in.Coin))
			if err != nil {
				return err
			}

			if err := tx.InsertCreditRow(in.Txid, a.UserID, amount); err != nil {
				return err
			}
			if h.metrics != nil {
				h.metrics.CreditsApplied.Inc()
			}

			if _, err := tx.GetOrInitBalance(a.UserID); err != nil {
				return err
			}
			if err := tx.AddToBalance(a.UserID, amount); err != nil {
				return err
			}
		}
	}

	// Step 6: finalize transaction row.
	complete := confirms >= h.confirmThreshold
	if err := tx.FinalizeTxRow(in.Txid, confirms, complete); err != nil {
		return err
	}

	return nil
}

// attribute resolves each balance entry's address to a site user, skipping
// unmapped addresses, deduplicating repeated addresses so each appears at
// most once with its last-seen balance, and preserving first-encounter
// order so the caller can pick "the first encountered" attributed user.
func (h *Handler) attribute(tx walletdb.Tx, balances []balanceEntry) ([]attribution, error) {
	order := make([]string, 0, len(balances))
	byAddr := make(map[string]attribution, len(balances))

	for _, b := range balances {
		addr, err := tx.FindAddress(b.Address)
		if err != nil {
			return nil, err
		}
		if addr == nil {
			continue
		}
		if _, ok := byAddr[b.Address]; !ok {
			order = append(order, b.Address)
		}
		byAddr[b.Address] = attribution{Address: b.Address, UserID: addr.UserID, Balance: b.Balance}
	}

	result := make([]attribution, 0, len(order))
	for _, addr := range order {
		result = append(result, byAddr[addr])
	}
	return result, nil
}
