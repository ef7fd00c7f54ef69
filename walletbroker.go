// Package walletbroker wires the transport, session, dispatcher, ingestion,
// status, and persistence layers into a single running broker.
package walletbroker

import (
	"fmt"

	"github.com/decred/walletbroker/broker"
	"github.com/decred/walletbroker/config"
	"github.com/decred/walletbroker/dispatch"
	"github.com/decred/walletbroker/ingest"
	"github.com/decred/walletbroker/intercom2"
	"github.com/decred/walletbroker/metrics"
	"github.com/decred/walletbroker/session"
	"github.com/decred/walletbroker/status"
	"github.com/decred/walletbroker/walletdb"
	"github.com/prometheus/client_golang/prometheus"
)

// Broker is the assembled, running broker: one Intercom2 endpoint talking
// to a single configured wallet peer, backed by a persistence gateway.
type Broker struct {
	cfg *config.Config

	Store   *walletdb.Store
	Session *session.Session
	Facade  *broker.Broker
	Metrics *metrics.Registry
}

// New wires a Broker from cfg. It opens the persistence gateway, builds the
// Intercom2 transport and session, registers the NOTIFY/HEARTBEAT handlers
// with the dispatcher, and configures the single outbound endpoint to the
// wallet peer. It does not start listening; call Start for that.
func New(cfg *config.Config) (*Broker, error) {
	store, err := walletdb.Open(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("opening persistence gateway: %w", err)
	}

	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)

	transport, err := intercom2.New(&intercom2.Config{
		OwnID:        cfg.IntercomID,
		ListenPort:   cfg.IntercomPort,
		Mode:         intercom2.Mode(cfg.IntercomMode),
		MaxFrameSize: cfg.MaxFrame,
		Certs: intercom2.CertPaths{
			CADir:    cfg.CertDir,
			SiteName: cfg.IntercomSiteName,
		},
		Passphrase: cfg.IntercomPassphrase,
	})
	if err != nil {
		return nil, fmt.Errorf("building Intercom2 transport: %w", err)
	}

	disp := dispatch.New(cfg.DispatchRatePerSecond, cfg.DispatchBurst)

	sess := session.New(session.Config{
		OwnID:                cfg.IntercomID,
		Transport:            transport,
		Handler:              disp,
		RequestTimeout:       cfg.RequestTimeout,
		HandlerShutdownGrace: cfg.HandlerShutdownGrace,
		HandlerWorkers:       cfg.DispatchWorkers,
		Metrics:              reg,
	})

	ingestHandler := ingest.New(store, cfg.ConfirmThreshold, cfg.PrecisionFor, reg)
	statusHandler := status.New(store, reg)

	facade := broker.New(sess, disp, cfg.SiteIntercomID, ingestHandler, statusHandler)

	if err := sess.AddEndpoint(cfg.SiteIntercomID, cfg.SiteIntercomHost, cfg.SiteIntercomPort); err != nil {
		return nil, fmt.Errorf("configuring wallet endpoint: %w", err)
	}

	return &Broker{
		cfg:     cfg,
		Store:   store,
		Session: sess,
		Facade:  facade,
		Metrics: reg,
	}, nil
}

// Start opens the local Intercom2 listener and begins processing inbound
// traffic.
func (b *Broker) Start() error {
	brokLog.Infof("starting broker, own id %d, wallet endpoint %d at %s:%d",
		b.cfg.IntercomID, b.cfg.SiteIntercomID, b.cfg.SiteIntercomHost, b.cfg.SiteIntercomPort)
	return b.Session.Start()
}

// Stop shuts the broker down: closes all endpoints, cancelling pending
// outbound requests, and waits for in-flight inbound handlers to finish.
func (b *Broker) Stop() {
	brokLog.Infof("stopping broker")
	b.Session.Stop()
}
