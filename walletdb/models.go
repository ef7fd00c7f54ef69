package walletdb

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxType distinguishes a raw network observation row from a per-user credit
// ledger row on the same WalletTransaction table.
type TxType int

const (
	// TxObservation is the type-1 row: one per txid, tracking confirms and
	// completion independent of any user attribution.
	TxObservation TxType = 1
	// TxCredit is the type-3 row: one per (txid, userId), the user-visible
	// ledger entry produced once attribution succeeds.
	TxCredit TxType = 3
)

// JobState tracks a WalletJob through the credit workflow. The only legal
// transition is JobObserved -> JobPromoted.
type JobState int

const (
	JobObserved JobState = 0
	JobPromoted JobState = 3
)

// WalletTransaction is the `user_wallet_tx` table. A type-1 row is unique per
// txid; a type-3 row is unique per (txid, userId).
type WalletTransaction struct {
	ID        uint             `gorm:"primaryKey"`
	Txid      string           `gorm:"column:txid;index:idx_user_wallet_tx_natural,unique"`
	TxType    int              `gorm:"column:tx_type;index:idx_user_wallet_tx_natural,unique"`
	UserID    *string          `gorm:"column:user_id;index:idx_user_wallet_tx_natural,unique"`
	Blockhash string           `gorm:"column:blockhash"`
	CoinType  string           `gorm:"column:coin_type"`
	Confirms  int64            `gorm:"column:confirms"`
	Complete  bool             `gorm:"column:complete"`
	Processed bool             `gorm:"column:processed"`
	Amount    *decimal.Decimal `gorm:"column:amount;type:numeric"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (WalletTransaction) TableName() string { return "user_wallet_tx" }

// WalletJob is the `user_wallet_job` table, keyed by `job` (the txid).
type WalletJob struct {
	ID        uint   `gorm:"primaryKey"`
	Job       string `gorm:"column:job;uniqueIndex"`
	State     int    `gorm:"column:state"`
	Type      string `gorm:"column:type"`
	Data      []byte `gorm:"column:data"`
	UserID    string `gorm:"column:user_id"`
	Result    string `gorm:"column:result"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (WalletJob) TableName() string { return "user_wallet_job" }

// WalletAddress is the `user_wallet_address` table, read-only in the core:
// it is populated by the out-of-scope new-address command flow.
type WalletAddress struct {
	ID      uint   `gorm:"primaryKey"`
	Address string `gorm:"column:address;uniqueIndex"`
	UserID  string `gorm:"column:user_id"`
}

func (WalletAddress) TableName() string { return "user_wallet_address" }

// WalletBalance is the `user_wallet_balance` table, one row per userId. It
// is mutated only additively, by the ingestion pipeline.
type WalletBalance struct {
	ID      uint            `gorm:"primaryKey"`
	UserID  string          `gorm:"column:user_id;uniqueIndex"`
	Balance decimal.Decimal `gorm:"column:balance;type:numeric"`
}

func (WalletBalance) TableName() string { return "user_wallet_balance" }

// WalletStatus is the `user_wallet_status` table, one row per coin symbol.
type WalletStatus struct {
	ID          uint   `gorm:"primaryKey"`
	Type        string `gorm:"column:type;uniqueIndex"`
	Online      bool   `gorm:"column:online"`
	Synced      bool   `gorm:"column:synced"`
	Crawling    bool   `gorm:"column:crawling"`
	BlockHeight int64  `gorm:"column:blockheight"`
	BlockHash   string `gorm:"column:blockhash"`
	BlockTime   int64  `gorm:"column:blocktime"`
	UpdatedAt   time.Time
}

func (WalletStatus) TableName() string { return "user_wallet_status" }
