package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sisu-network/dwallet/addressbook"
	"github.com/sisu-network/dwallet/client"
	"github.com/sisu-network/dwallet/config"
	"github.com/sisu-network/dwallet/connection"
	"github.com/sisu-network/dwallet/core"
	"github.com/sisu-network/dwallet/lcd"
	"github.com/sisu-network/dwallet/metrics"
	"github.com/sisu-network/dwallet/network"
	"github.com/sisu-network/dwallet/server"
	"github.com/sisu-network/dwallet/signer"
	"github.com/sisu-network/dwallet/types"
	"github.com/sisu-network/lib/log"
)

func initialize() *config.Wallet {
	err := godotenv.Load()
	if err != nil {
		log.Warn("Cannot load .env file, err = ", err)
	}

	cfg, err := config.Load(os.Getenv("DWALLET_CONFIG"))
	if err != nil {
		panic(err)
	}

	err = metrics.Register(prometheus.DefaultRegisterer)
	if err != nil {
		panic(err)
	}

	return cfg
}

// eventLog holds the feed subscriptions the daemon logs. It subscribes when created so no
// event sent after that is missed.
type eventLog struct {
	events chan types.ConnectionEvent
	txs    chan types.TxEvent
	subs   []event.Subscription
}

func watchEvents(m *connection.Manager) *eventLog {
	l := &eventLog{
		events: make(chan types.ConnectionEvent, 16),
		txs:    make(chan types.TxEvent, 64),
	}
	l.subs = append(l.subs, m.SubscribeConnectionEvents(l.events), m.SubscribeTxEvents(l.txs))

	return l
}

func (l *eventLog) run(cctx *types.ConnectionContext) {
	defer func() {
		for _, sub := range l.subs {
			sub.Unsubscribe()
		}
	}()

	for {
		select {
		case ev := <-l.events:
			if ev.Err != nil {
				log.Warnf("Connection event %s, node = %s, err = %v", ev.Kind, ev.Node, ev.Err)
			} else {
				log.Infof("Connection event %s, node = %s", ev.Kind, ev.Node)
			}

		case tx := <-l.txs:
			log.Infof("Tx %s at height %d for %s, code = %d", tx.Hash, tx.Height, tx.Address, tx.Code)

		case <-cctx.Done():
			return
		}
	}
}

func main() {
	cfg := initialize()

	cctx := types.NewConnectionContext(context.Background())
	book, err := addressbook.NewAddressBook(cfg, network.NewHttp(), cctx)
	if err != nil {
		panic(err)
	}

	manager := connection.NewManager(cfg, cctx, book, client.Dial)
	submitter := core.NewSubmitter(cfg, manager, lcd.NewClient(cfg.LcdUrl), signer.NewRemoteSigner(cfg.SignerUrl))

	events := watchEvents(manager)
	go events.run(cctx)
	manager.Connect()

	handler, err := server.NewRpcServer(server.NewApi(manager, submitter, book))
	if err != nil {
		panic(err)
	}
	s := server.NewServer(handler, prometheus.DefaultGatherer, cfg.ServerPort)
	go s.Run()

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	<-c

	log.Info("Shutting down")
	cctx.StopConnecting()
	manager.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		log.Error("Cannot shut down server, err = ", err)
	}
}
