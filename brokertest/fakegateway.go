// Package brokertest provides an in-memory persistence gateway and a
// two-endpoint Intercom2 harness for exercising the broker end to end
// without a real database or a live wallet peer.
package brokertest

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/decred/walletbroker/errs"
	"github.com/decred/walletbroker/walletdb"
)

// FakeGateway is an in-memory walletdb.Gateway. It is safe for concurrent
// use: every map access is guarded by mu, and LockTxidRow serializes WithTxn
// calls for the same txid the way the real per-txid lock does.
type FakeGateway struct {
	mu sync.Mutex

	txidLocks map[string]*sync.Mutex

	txRows     map[string]*walletdb.WalletTransaction // keyed by txid, type-1 only
	creditRows map[string]*walletdb.WalletTransaction // keyed by txid+"|"+userID
	jobs       map[string]*walletdb.WalletJob
	addresses  map[string]*walletdb.WalletAddress
	balances   map[string]decimal.Decimal
	statuses   map[string]*walletdb.WalletStatus
}

// NewFakeGateway creates an empty FakeGateway.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		txidLocks:  make(map[string]*sync.Mutex),
		txRows:     make(map[string]*walletdb.WalletTransaction),
		creditRows: make(map[string]*walletdb.WalletTransaction),
		jobs:       make(map[string]*walletdb.WalletJob),
		addresses:  make(map[string]*walletdb.WalletAddress),
		balances:   make(map[string]decimal.Decimal),
		statuses:   make(map[string]*walletdb.WalletStatus),
	}
}

// SeedAddress registers address as owned by userID, as if the out-of-scope
// new-address command flow had already populated it.
func (g *FakeGateway) SeedAddress(address, userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addresses[address] = &walletdb.WalletAddress{Address: address, UserID: userID}
}

// Balance returns userID's current balance, for test assertions.
func (g *FakeGateway) Balance(userID string) decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[userID]
}

// TxRow returns the type-1 row for txid, or nil.
func (g *FakeGateway) TxRow(txid string) *walletdb.WalletTransaction {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.txRows[txid]
}

// Job returns the job row for txid, or nil.
func (g *FakeGateway) Job(txid string) *walletdb.WalletJob {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.jobs[txid]
}

// CreditRowCount returns how many type-3 rows exist for txid, for test
// assertions that a credit is produced at most once.
func (g *FakeGateway) CreditRowCount(txid string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, row := range g.creditRows {
		if row.Txid == txid {
			n++
		}
	}
	return n
}

// WithTxn implements walletdb.Gateway. The fake has no real transactional
// rollback: a returned error simply means earlier mutations in this call
// are not undone, which is sufficient for tests that only care about the
// end state of a single apply call failing cleanly with DuplicateCreditError.
func (g *FakeGateway) WithTxn(ctx context.Context, fn func(tx walletdb.Tx) error) error {
	tx := &fakeTx{g: g}
	defer tx.unlockAll()
	return fn(tx)
}

// fakeTx holds the locks it acquires for the lifetime of a single WithTxn
// call, releasing them when the call returns, mirroring a Postgres
// transaction-scoped advisory lock.
type fakeTx struct {
	g     *FakeGateway
	locks []*sync.Mutex
}

func (t *fakeTx) lockFor(txid string) *sync.Mutex {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	l, ok := t.g.txidLocks[txid]
	if !ok {
		l = &sync.Mutex{}
		t.g.txidLocks[txid] = l
	}
	return l
}

func (t *fakeTx) LockTxidRow(txid string) error {
	l := t.lockFor(txid)
	l.Lock()
	t.locks = append(t.locks, l)
	return nil
}

func (t *fakeTx) unlockAll() {
	for _, l := range t.locks {
		l.Unlock()
	}
}

func (t *fakeTx) UpsertTxRow(txid string, confirms int64) (*walletdb.WalletTransaction, error) {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()

	row, ok := t.g.txRows[txid]
	if !ok {
		row = &walletdb.WalletTransaction{
			Txid:     txid,
			TxType:   int(walletdb.TxObservation),
			Confirms: confirms,
		}
		t.g.txRows[txid] = row
		return row, nil
	}
	if confirms > row.Confirms {
		row.Confirms = confirms
	}
	return row, nil
}

func (t *fakeTx) FinalizeTxRow(txid string, confirms int64, complete bool) error {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()

	row, ok := t.g.txRows[txid]
	if !ok {
		return errs.NewDBError("finalize tx row", errUnknownTxid(txid))
	}
	row.Confirms = confirms
	if complete {
		row.Complete = true
		row.Processed = true
	}
	return nil
}

func (t *fakeTx) FindJob(job string) (*walletdb.WalletJob, error) {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	return t.g.jobs[job], nil
}

func (t *fakeTx) InsertJob(job, coin string, data []byte) error {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	t.g.jobs[job] = &walletdb.WalletJob{
		Job:   job,
		State: int(walletdb.JobObserved),
		Type:  coin,
		Data:  data,
	}
	return nil
}

func (t *fakeTx) PromoteJob(job, userID, result string) error {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	row, ok := t.g.jobs[job]
	if !ok {
		return errs.NewDBError("promote job", errUnknownTxid(job))
	}
	row.State = int(walletdb.JobPromoted)
	row.UserID = userID
	row.Result = result
	return nil
}

func (t *fakeTx) FindAddress(address string) (*walletdb.WalletAddress, error) {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	return t.g.addresses[address], nil
}

func (t *fakeTx) InsertCreditRow(txid, userID string, amount decimal.Decimal) error {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()

	key := txid + "|" + userID
	if _, ok := t.g.creditRows[key]; ok {
		return &errs.DuplicateCreditError{Txid: txid, UserID: userID}
	}
	t.g.creditRows[key] = &walletdb.WalletTransaction{
		Txid:      txid,
		TxType:    int(walletdb.TxCredit),
		UserID:    &userID,
		Amount:    &amount,
		Complete:  true,
		Processed: true,
	}
	return nil
}

func (t *fakeTx) GetOrInitBalance(userID string) (decimal.Decimal, error) {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	bal, ok := t.g.balances[userID]
	if !ok {
		t.g.balances[userID] = decimal.Zero
		return decimal.Zero, nil
	}
	return bal, nil
}

func (t *fakeTx) AddToBalance(userID string, amount decimal.Decimal) error {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	t.g.balances[userID] = t.g.balances[userID].Add(amount)
	return nil
}

func (t *fakeTx) UpsertStatus(coin string, online, synced, crawling bool, blockHeight int64,
	blockHash string, blockTime int64) error {

	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	t.g.statuses[coin] = &walletdb.WalletStatus{
		Type:        coin,
		Online:      online,
		Synced:      synced,
		Crawling:    crawling,
		BlockHeight: blockHeight,
		BlockHash:   blockHash,
		BlockTime:   blockTime,
	}
	return nil
}

// Status returns the status row for coin, for test assertions.
func (g *FakeGateway) Status(coin string) *walletdb.WalletStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statuses[coin]
}

type errUnknownTxid string

func (e errUnknownTxid) Error() string { return "unknown txid: " + string(e) }
