// Package broker implements the broker façade: the public command surface
// issued to the wallet peer (START, STOP, ..., SEND_FUNDS, REPLAY, CRAWL)
// and the wiring that registers the NOTIFY and HEARTBEAT inbound handlers
// with the Dispatcher.
package broker

import (
	"context"
	"encoding/json"

	"github.com/decred/walletbroker/dispatch"
	"github.com/decred/walletbroker/session"
)

// IngestHandler processes inbound NOTIFY frames. It is satisfied by
// *ingest.Handler; the interface lives here to avoid broker importing
// ingest's concrete type where only its Dispatch shape is needed.
type IngestHandler interface {
	Handle(senderID uint32, payload []byte, reply func([]byte))
}

// StatusHandler processes inbound HEARTBEAT frames. It is satisfied by
// *status.Handler.
type StatusHandler interface {
	Handle(senderID uint32, payload []byte, reply func([]byte))
}

// TransactionRequest is the payload for SEND_FUNDS.
type TransactionRequest struct {
	FromUserID string `json:"fromUserId"`
	ToAddress  string `json:"toAddress"`
	Amount     string `json:"amount"`
}

// Broker is the public façade over a single configured wallet endpoint. It
// owns no persistent state itself; NOTIFY/HEARTBEAT handling is delegated
// to the registered IngestHandler/StatusHandler and all command replies are
// decoded per the uniform reply-parsing rule.
type Broker struct {
	sess   *session.Session
	wallet uint32
}

// New creates a Broker bound to walletEndpoint (the remote Intercom2 id of
// the wallet peer) and registers ingest and status as the NOTIFY and
// HEARTBEAT handlers on disp.
func New(sess *session.Session, disp *dispatch.Dispatcher, walletEndpoint uint32,
	ingest IngestHandler, status StatusHandler) *Broker {

	disp.Register(MsgNotify, ingest.Handle)
	disp.Register(MsgHeartbeat, status.Handle)

	return &Broker{sess: sess, wallet: walletEndpoint}
}

// call sends messageID/payload to the wallet endpoint and waits for the
// correlated reply, decoding it per the reply-parsing rule.
func (b *Broker) call(ctx context.Context, messageID uint16, payload []byte) (*Reply, error) {
	type result struct {
		reply *Reply
		err   error
	}
	ch := make(chan result, 1)

	err := b.sess.Send(ctx, b.wallet, messageID, payload, func(payload []byte, err error) {
		if err != nil {
			ch <- result{nil, err}
			return
		}
		ch <- result{parseReply(payload), nil}
	})
	if err != nil {
		return nil, err
	}

	select {
	case res := <-ch:
		return res.reply, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Broker) Start(ctx context.Context) (*Reply, error) {
	return b.call(ctx, MsgStart, nil)
}

func (b *Broker) Stop(ctx context.Context) (*Reply, error) {
	return b.call(ctx, MsgStop, nil)
}

func (b *Broker) Restart(ctx context.Context) (*Reply, error) {
	return b.call(ctx, MsgRestart, nil)
}

func (b *Broker) Reindex(ctx context.Context) (*Reply, error) {
	return b.call(ctx, MsgReindex, nil)
}

func (b *Broker) Resync(ctx context.Context) (*Reply, error) {
	return b.call(ctx, MsgResync, nil)
}

func (b *Broker) Rescan(ctx context.Context) (*Reply, error) {
	return b.call(ctx, MsgRescan, nil)
}

func (b *Broker) Info(ctx context.Context) (*Reply, error) {
	return b.call(ctx, MsgInfo, nil)
}

func (b *Broker) BestBlockHash(ctx context.Context) (*Reply, error) {
	return b.call(ctx, MsgBestBlockHash, nil)
}

// NewAddress requests a fresh receive address for accountID. The reply's
// message is the new address.
func (b *Broker) NewAddress(ctx context.Context, accountID string) (*Reply, error) {
	return b.call(ctx, MsgNewAddress, []byte(accountID))
}

// Addresses requests the list of addresses owned by accountID. The reply's
// message is a JSON list.
func (b *Broker) Addresses(ctx context.Context, accountID string) (*Reply, error) {
	return b.call(ctx, MsgAddresses, []byte(accountID))
}

func (b *Broker) AddressBalance(ctx context.Context, address string) (*Reply, error) {
	return b.call(ctx, MsgAddressBalance, []byte(address))
}

func (b *Broker) IDBalance(ctx context.Context, accountID string) (*Reply, error) {
	return b.call(ctx, MsgIDBalance, []byte(accountID))
}

// SendFunds requests an outbound transfer. req is serialized as JSON; the
// wire contract only requires that the wallet peer can decode whatever
// shape the broker sends, and JSON matches how every other payload on this
// transport is encoded.
func (b *Broker) SendFunds(ctx context.Context, req *TransactionRequest) (*Reply, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return b.call(ctx, MsgSendFunds, payload)
}

func (b *Broker) Replay(ctx context.Context, txid string) (*Reply, error) {
	return b.call(ctx, MsgReplay, []byte(txid))
}

// Crawl requests a rescan starting at blockhashOrHeight, which may be
// either a block hash or a decimal height encoded as a string.
func (b *Broker) Crawl(ctx context.Context, blockhashOrHeight string) (*Reply, error) {
	return b.call(ctx, MsgCrawl, []byte(blockhashOrHeight))
}
