package ingest_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/decred/walletbroker/brokertest"
	"github.com/decred/walletbroker/ingest"
	"github.com/decred/walletbroker/walletdb"
)

const precision = 8
const confirmThreshold = 3

func flatPrecision(coin string) int { return precision }

func notify(t testing.TB, h *ingest.Handler, txid, coin string, confirmations int64, balances map[string]string) []byte {
	t.Helper()

	type balanceEntry struct {
		Address string `json:"address"`
		Balance string `json:"balance"`
	}
	payload := struct {
		Txid          string         `json:"txid"`
		Coin          string         `json:"coin"`
		Confirmations int64          `json:"confirmations"`
		Balances      []balanceEntry `json:"balances"`
	}{Txid: txid, Coin: coin, Confirmations: confirmations}

	for addr, bal := range balances {
		payload.Balances = append(payload.Balances, balanceEntry{Address: addr, Balance: bal})
	}

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	var reply []byte
	h.Handle(7, raw, func(p []byte) { reply = p })
	return reply
}

// Scenario 1: first sighting, unconfirmed.
func TestNotifyFirstSightingUnconfirmed(t *testing.T) {
	gw := brokertest.NewFakeGateway()
	h := ingest.New(gw, confirmThreshold, flatPrecision, nil)

	notify(t, h, "T1", "X", 0, map[string]string{"A1": "150000000"})

	row := gw.TxRow("T1")
	require.NotNil(t, row)
	require.Zero(t, row.Confirms)
	require.False(t, row.Complete)
	require.False(t, row.Processed)

	job := gw.Job("T1")
	require.NotNil(t, job)
	require.Equal(t, int(walletdb.JobObserved), job.State)

	require.Zero(t, gw.CreditRowCount("T1"))
}

// Scenario 2: threshold crossed, address known.
func TestNotifyThresholdCrossedAddressKnown(t *testing.T) {
	gw := brokertest.NewFakeGateway()
	gw.SeedAddress("A1", "U1")
	h := ingest.New(gw, confirmThreshold, flatPrecision, nil)

	notify(t, h, "T1", "X", 3, map[string]string{"A1": "150000000"})

	row := gw.TxRow("T1")
	require.NotNil(t, row)
	require.True(t, row.Complete)
	require.True(t, row.Processed)
	require.EqualValues(t, 3, row.Confirms)

	job := gw.Job("T1")
	require.NotNil(t, job)
	require.Equal(t, int(walletdb.JobPromoted), job.State)
	require.Equal(t, "U1", job.UserID)
	require.Equal(t, "okay", job.Result)

	require.Equal(t, 1, gw.CreditRowCount("T1"))

	want, err := decimal.NewFromString("1.5")
	require.NoError(t, err)
	require.True(t, gw.Balance("U1").Equal(want), "balance = %s, want %s", gw.Balance("U1"), want)
}

// Scenario 3: threshold crossed, address unknown.
func TestNotifyThresholdCrossedAddressUnknown(t *testing.T) {
	gw := brokertest.NewFakeGateway()
	h := ingest.New(gw, confirmThreshold, flatPrecision, nil)

	notify(t, h, "T1", "X", 3, map[string]string{"A1": "150000000"})

	row := gw.TxRow("T1")
	require.NotNil(t, row)
	require.True(t, row.Complete)

	job := gw.Job("T1")
	require.NotNil(t, job)
	require.Equal(t, int(walletdb.JobObserved), job.State, "job should not be promoted")

	require.Zero(t, gw.CreditRowCount("T1"))
}

// Scenario 4: replay after completion.
func TestNotifyReplayAfterCompletion(t *testing.T) {
	gw := brokertest.NewFakeGateway()
	gw.SeedAddress("A1", "U1")
	h := ingest.New(gw, confirmThreshold, flatPrecision, nil)

	notify(t, h, "T1", "X", 3, map[string]string{"A1": "150000000"})
	reply := notify(t, h, "T1", "X", 3, map[string]string{"A1": "150000000"})

	require.Equal(t, "Received NOTIFY", string(reply),
		"a replay after completion must still reply normally so the wallet doesn't retransmit")
	require.Equal(t, 1, gw.CreditRowCount("T1"))

	want, err := decimal.NewFromString("1.5")
	require.NoError(t, err)
	require.True(t, gw.Balance("U1").Equal(want), "balance changed on replay: %s, want %s", gw.Balance("U1"), want)
}

// Scenario 5: out-of-order confirmations.
func TestNotifyOutOfOrderConfirmations(t *testing.T) {
	gw := brokertest.NewFakeGateway()
	h := ingest.New(gw, confirmThreshold, flatPrecision, nil)

	notify(t, h, "T1", "X", 5, nil)
	notify(t, h, "T1", "X", 2, nil)

	row := gw.TxRow("T1")
	require.EqualValues(t, 5, row.Confirms, "confirms must be non-decreasing")
	require.True(t, row.Complete)
}

// DECIMAL_PRECISION is a per-coin constant: two coins reporting the same
// smallest-unit integer string must scale to different decimal amounts when
// their configured precisions differ.
func TestNotifyPerCoinPrecision(t *testing.T) {
	gw := brokertest.NewFakeGateway()
	gw.SeedAddress("A1", "U1")
	gw.SeedAddress("A2", "U2")

	precisionFor := func(coin string) int {
		switch coin {
		case "ETH":
			return 18
		default:
			return 8
		}
	}
	h := ingest.New(gw, confirmThreshold, precisionFor, nil)

	notify(t, h, "T1", "BTC", 3, map[string]string{"A1": "150000000"})
	notify(t, h, "T2", "ETH", 3, map[string]string{"A2": "150000000"})

	wantBTC, err := decimal.NewFromString("1.5")
	require.NoError(t, err)
	require.True(t, gw.Balance("U1").Equal(wantBTC), "BTC balance = %s, want %s", gw.Balance("U1"), wantBTC)

	wantETH, err := decimal.NewFromString("0.00000000015")
	require.NoError(t, err)
	require.True(t, gw.Balance("U2").Equal(wantETH), "ETH balance = %s, want %s", gw.Balance("U2"), wantETH)
}

// Round-trip property: replaying a NOTIFY N times matches delivering it once.
func TestNotifyRoundTripIdempotent(t *testing.T) {
	gw := brokertest.NewFakeGateway()
	gw.SeedAddress("A1", "U1")
	h := ingest.New(gw, confirmThreshold, flatPrecision, nil)

	for i := 0; i < 5; i++ {
		notify(t, h, "T1", "X", 3, map[string]string{"A1": "150000000"})
	}

	require.Equal(t, 1, gw.CreditRowCount("T1"))

	want, err := decimal.NewFromString("1.5")
	require.NoError(t, err)
	require.True(t, gw.Balance("U1").Equal(want), "balance = %s after repeated delivery, want %s", gw.Balance("U1"), want)
}
