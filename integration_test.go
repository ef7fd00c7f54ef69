package walletbroker_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/decred/walletbroker/broker"
	"github.com/decred/walletbroker/brokertest"
	"github.com/decred/walletbroker/ingest"
	"github.com/decred/walletbroker/status"
)

// TestEndToEndNotifyAndCommand wires two in-process Intercom2 peers — a
// site peer running the full broker façade/ingestion/status stack, and a
// stub wallet peer — and exercises both directions: a NOTIFY delivered
// wallet->site crediting a user, and a START command issued site->wallet.
func TestEndToEndNotifyAndCommand(t *testing.T) {
	const siteID, walletID = 1, 2

	site := brokertest.NewPeer(t, siteID)
	wallet := brokertest.NewPeer(t, walletID)

	gw := brokertest.NewFakeGateway()
	gw.SeedAddress("A1", "U1")

	ingestHandler := ingest.New(gw, 3, func(string) int { return 8 }, nil)
	statusHandler := status.New(gw, nil)
	facade := broker.New(site.Sess, site.Disp, walletID, ingestHandler, statusHandler)

	wallet.Disp.Register(broker.MsgStart, func(senderID uint32, payload []byte, reply func([]byte)) {
		reply([]byte(`{"isError":false,"message":"started"}`))
	})

	site.Start(t)
	wallet.Start(t)
	defer site.Stop()
	defer wallet.Stop()

	site.ConnectTo(t, wallet)
	wallet.ConnectTo(t, site)

	notifyPayload, err := json.Marshal(map[string]interface{}{
		"txid":          "T1",
		"coin":          "X",
		"confirmations": 3,
		"balances": []map[string]string{
			{"address": "A1", "balance": "150000000"},
		},
	})
	require.NoError(t, err)

	reply := wallet.Send(t, siteID, broker.MsgNotify, notifyPayload, 5*time.Second)
	require.Equal(t, "Received NOTIFY", string(reply))

	want, err := decimal.NewFromString("1.5")
	require.NoError(t, err)
	require.True(t, gw.Balance("U1").Equal(want), "balance after NOTIFY = %s, want %s", gw.Balance("U1"), want)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	startReply, err := facade.Start(ctx)
	require.NoError(t, err)
	require.False(t, startReply.Failed(), "expected Start to succeed")
	require.Equal(t, "started", startReply.String())
}
