package walletdb

import (
	"context"

	"github.com/shopspring/decimal"
)

// Gateway is the narrow persistence interface used by the ingestion state
// machine and the status updater. It is the only writer to the five
// wallet tables; every write goes through a single WithTxn call so tests can
// substitute an in-memory or sqlite-backed implementation.
type Gateway interface {
	// WithTxn runs fn inside a single database transaction with at least
	// READ-COMMITTED isolation. If fn returns an error the transaction is
	// rolled back and the error is returned unchanged.
	WithTxn(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of operations available inside a single WithTxn call.
type Tx interface {
	// LockTxidRow takes a per-txid lock that serializes concurrent NOTIFYs
	// for the same transaction. It must be the first statement executed
	// inside WithTxn's fn for any NOTIFY handling, and it must serialize
	// correctly even before any row for txid exists yet.
	LockTxidRow(txid string) error

	// UpsertTxRow ensures a type-1 WalletTransaction row exists for txid,
	// inserting one with the given confirms if absent, or raising confirms
	// to max(existing, confirms) otherwise. It returns the row as it stands
	// after the upsert.
	UpsertTxRow(txid string, confirms int64) (*WalletTransaction, error)

	// FinalizeTxRow updates the type-1 row's confirms once a NOTIFY has been
	// fully applied, and sets complete and processed when complete is true.
	// Neither flag is ever cleared.
	FinalizeTxRow(txid string, confirms int64, complete bool) error

	// FindJob returns the WalletJob for job (the txid), or nil if none
	// exists yet.
	FindJob(job string) (*WalletJob, error)

	// InsertJob creates a WalletJob in JobObserved state.
	InsertJob(job, coin string, data []byte) error

	// PromoteJob transitions a WalletJob from JobObserved to JobPromoted,
	// recording the attributed user and result string.
	PromoteJob(job, userID, result string) error

	// FindAddress looks up the site user, if any, that owns address.
	FindAddress(address string) (*WalletAddress, error)

	// InsertCreditRow inserts a type-3 WalletTransaction row for
	// (txid, userID) with the given amount. It returns DuplicateCreditError
	// if such a row already exists.
	InsertCreditRow(txid, userID string, amount decimal.Decimal) error

	// GetOrInitBalance returns userID's current balance, creating a
	// zero-valued row first if none exists.
	GetOrInitBalance(userID string) (decimal.Decimal, error)

	// AddToBalance adds amount to userID's balance. The row must already
	// exist (callers use GetOrInitBalance first).
	AddToBalance(userID string, amount decimal.Decimal) error

	// UpsertStatus replaces the WalletStatus row for coin with the given
	// snapshot fields.
	UpsertStatus(coin string, online, synced, crawling bool, blockHeight int64,
		blockHash string, blockTime int64) error
}
