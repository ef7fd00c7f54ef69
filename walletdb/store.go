package walletdb

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/decred/walletbroker/errs"
)

// Store is the Postgres/GORM-backed Gateway implementation. It owns the
// *gorm.DB handle; callers never see it directly outside of WithTxn, so a
// test can substitute the whole gateway without a process-wide connection
// getter to untangle.
type Store struct {
	db *gorm.DB
}

// Open connects to a Postgres database at dsn and runs AutoMigrate for the
// five wallet tables. Schema migration beyond that is explicitly out of
// scope; operators are expected to manage indexes and constraints beyond
// what AutoMigrate creates via their own migration tooling.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errs.NewDBError("open", err)
	}

	if err := db.AutoMigrate(
		&WalletTransaction{},
		&WalletJob{},
		&WalletAddress{},
		&WalletBalance{},
		&WalletStatus{},
	); err != nil {
		return nil, errs.NewDBError("automigrate", err)
	}

	log.Infof("Wallet database ready")
	return &Store{db: db}, nil
}

// NewStore wraps an already-opened *gorm.DB, e.g. one pointed at a sqlite
// file in tests.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTxn implements Gateway.
func (s *Store) WithTxn(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&gormTx{db: gtx})
	})
}

// gormTx implements Tx against a single *gorm.DB transaction handle.
type gormTx struct {
	db *gorm.DB
}

// LockTxidRow takes a Postgres transaction-scoped advisory lock keyed by
// txid. An advisory lock, rather than a row lock, is used deliberately: the
// very first NOTIFY for a txid has no row yet to lock, and two concurrent
// first-sightings must still serialize against each other.
func (t *gormTx) LockTxidRow(txid string) error {
	if err := t.db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", txid).Error; err != nil {
		return errs.NewDBError("lock txid row", err)
	}
	return nil
}

func (t *gormTx) UpsertTxRow(txid string, confirms int64) (*WalletTransaction, error) {
	var row WalletTransaction
	err := t.db.Where("txid = ? AND tx_type = ?", txid, TxObservation).
		First(&row).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = WalletTransaction{
			Txid:      txid,
			TxType:    int(TxObservation),
			Confirms:  confirms,
			Complete:  false,
			Processed: false,
			Blockhash: "",
			CoinType:  "",
		}
		if err := t.db.Create(&row).Error; err != nil {
			return nil, errs.NewDBError("insert tx row", err)
		}
		return &row, nil
	case err != nil:
		return nil, errs.NewDBError("find tx row", err)
	}

	if confirms > row.Confirms {
		row.Confirms = confirms
		if err := t.db.Model(&row).Update("confirms", confirms).Error; err != nil {
			return nil, errs.NewDBError("update tx row confirms", err)
		}
	}
	return &row, nil
}

func (t *gormTx) FinalizeTxRow(txid string, confirms int64, complete bool) error {
	updates := map[string]interface{}{
		"confirms": confirms,
	}
	// complete and processed must never flip from true to false: only set
	// them, never clear.
	if complete {
		updates["complete"] = true
		updates["processed"] = true
	}
	err := t.db.Model(&WalletTransaction{}).
		Where("txid = ? AND tx_type = ?", txid, TxObservation).
		Updates(updates).Error
	if err != nil {
		return errs.NewDBError("finalize tx row", err)
	}
	return nil
}

func (t *gormTx) FindJob(job string) (*WalletJob, error) {
	var row WalletJob
	err := t.db.Where("job = ?", job).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.NewDBError("find job", err)
	}
	return &row, nil
}

func (t *gormTx) InsertJob(job, coin string, data []byte) error {
	row := WalletJob{
		Job:   job,
		State: int(JobObserved),
		Type:  coin,
		Data:  data,
	}
	if err := t.db.Create(&row).Error; err != nil {
		return errs.NewDBError("insert job", err)
	}
	return nil
}

func (t *gormTx) PromoteJob(job, userID, result string) error {
	err := t.db.Model(&WalletJob{}).
		Where("job = ? AND state = ?", job, int(JobObserved)).
		Updates(map[string]interface{}{
			"state":   int(JobPromoted),
			"user_id": userID,
			"result":  result,
		}).Error
	if err != nil {
		return errs.NewDBError("promote job", err)
	}
	return nil
}

func (t *gormTx) FindAddress(address string) (*WalletAddress, error) {
	var row WalletAddress
	err := t.db.Where("address = ?", address).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.NewDBError("find address", err)
	}
	return &row, nil
}

func (t *gormTx) InsertCreditRow(txid, userID string, amount decimal.Decimal) error {
	row := WalletTransaction{
		Txid:      txid,
		TxType:    int(TxCredit),
		UserID:    &userID,
		Amount:    &amount,
		Complete:  true,
		Processed: true,
	}
	err := t.db.Create(&row).Error
	if err != nil {
		if isUniqueViolation(err) {
			return &errs.DuplicateCreditError{Txid: txid, UserID: userID}
		}
		return errs.NewDBError("insert credit row", err)
	}
	return nil
}

func (t *gormTx) GetOrInitBalance(userID string) (decimal.Decimal, error) {
	var row WalletBalance
	err := t.db.Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = WalletBalance{UserID: userID, Balance: decimal.Zero}
		if err := t.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&row).Error; err != nil {
			return decimal.Zero, errs.NewDBError("init balance", err)
		}
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, errs.NewDBError("get balance", err)
	}
	return row.Balance, nil
}

func (t *gormTx) AddToBalance(userID string, amount decimal.Decimal) error {
	err := t.db.Model(&WalletBalance{}).
		Where("user_id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", amount)).Error
	if err != nil {
		return errs.NewDBError("add to balance", err)
	}
	return nil
}

func (t *gormTx) UpsertStatus(coin string, online, synced, crawling bool, blockHeight int64,
	blockHash string, blockTime int64) error {

	row := WalletStatus{
		Type:        coin,
		Online:      online,
		Synced:      synced,
		Crawling:    crawling,
		BlockHeight: blockHeight,
		BlockHash:   blockHash,
		BlockTime:   blockTime,
		UpdatedAt:   time.Now(),
	}
	err := t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{"online", "synced", "crawling", "blockheight", "blockhash", "blocktime", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return errs.NewDBError("upsert status", err)
	}
	return nil
}

// isUniqueViolation reports whether err looks like a Postgres unique
// constraint violation (SQLSTATE 23505). Both gorm and the pgx driver it
// delegates to preserve the original error in their chain, so a simple
// substring check on the wrapped error's message is the most portable way
// to detect it across gorm versions without importing the pgx error types
// directly.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
