package status_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/decred/walletbroker/brokertest"
	"github.com/decred/walletbroker/status"
)

func TestHeartbeatUpsertKeepsLatest(t *testing.T) {
	gw := brokertest.NewFakeGateway()
	h := status.New(gw, nil)

	send := func(online bool, blockHeight int64, hash string) []byte {
		payload, err := json.Marshal(map[string]interface{}{
			"coin":          "X",
			"online":        online,
			"synced":        true,
			"crawling":      false,
			"blockheight":   blockHeight,
			"bestBlockHash": hash,
			"blocktime":     1700000000,
		})
		require.NoError(t, err)

		var reply []byte
		h.Handle(7, payload, func(p []byte) { reply = p })
		return reply
	}

	reply := send(true, 900, "H1")
	require.Equal(t, "Received HEARTBEAT", string(reply))

	send(true, 950, "H2")

	row := gw.Status("X")
	require.NotNil(t, row, "expected a status row for coin X")
	require.EqualValues(t, 950, row.BlockHeight)
	require.Equal(t, "H2", row.BlockHash)
}
