package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/golang/groupcache/lru"
	"github.com/sisu-network/dwallet/addressbook"
	"github.com/sisu-network/dwallet/client"
	"github.com/sisu-network/dwallet/config"
	"github.com/sisu-network/dwallet/metrics"
	"github.com/sisu-network/dwallet/types"
	"github.com/sisu-network/dwallet/utils"
	"github.com/sisu-network/lib/log"
	"go.uber.org/atomic"
)

const (
	NewBlockHeaderQuery = "tm.event='NewBlockHeader'"
	TxTrackCacheSize    = 1_000
)

// NodeSource resolves the node to dial and records what the manager learns about it.
type NodeSource interface {
	PickNode(ctx context.Context) (string, error)
	FlagNodeOffline(host string)
	FlagNodeIncompatible(host string)
	ResetNodes()
}

// Manager owns the single live RPC connection of the process. It subscribes to new block
// headers and to the transactions of watched addresses, polls the node health and reconnects
// whenever the connection drops. Reconnection stops for good once the ConnectionContext is
// stopped.
type Manager struct {
	cfg   *config.Wallet
	cctx  *types.ConnectionContext
	nodes NodeSource
	dial  client.Dialer

	lock          *sync.RWMutex
	rpc           client.RpcClient
	subscribedRpc client.RpcClient
	node          string
	lastHeader    types.Header
	headerUpdates uint64
	haltedTimer   *time.Timer
	addresses     map[string]bool

	connected  *atomic.Bool
	connecting *atomic.Bool
	nodeHalted *atomic.Bool
	attempts   *atomic.Int64

	txTrackCache *lru.Cache
	cacheLock    *sync.Mutex
	blockTimes   *blockTimeTracker

	connFeed   event.Feed
	headerFeed event.Feed
	txFeed     event.Feed
}

func NewManager(cfg *config.Wallet, cctx *types.ConnectionContext, nodes NodeSource, dial client.Dialer) *Manager {
	return &Manager{
		cfg:          cfg,
		cctx:         cctx,
		nodes:        nodes,
		dial:         dial,
		lock:         &sync.RWMutex{},
		addresses:    make(map[string]bool),
		connected:    atomic.NewBool(false),
		connecting:   atomic.NewBool(false),
		nodeHalted:   atomic.NewBool(false),
		attempts:     atomic.NewInt64(0),
		txTrackCache: lru.New(TxTrackCacheSize),
		cacheLock:    &sync.Mutex{},
		blockTimes:   newBlockTimeTracker(DefaultBlockTime),
	}
}

func (m *Manager) SubscribeConnectionEvents(ch chan<- types.ConnectionEvent) event.Subscription {
	return m.connFeed.Subscribe(ch)
}

// SubscribeHeaders delivers block headers in the order the node sent them.
func (m *Manager) SubscribeHeaders(ch chan<- types.Header) event.Subscription {
	return m.headerFeed.Subscribe(ch)
}

func (m *Manager) SubscribeTxEvents(ch chan<- types.TxEvent) event.Subscription {
	return m.txFeed.Subscribe(ch)
}

// Connected is true between a successful dial and the next detected failure. It may turn true
// before the subscriptions of the new connection are in place.
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

func (m *Manager) NodeHalted() bool {
	return m.nodeHalted.Load()
}

func (m *Manager) LastHeader() types.Header {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.lastHeader
}

func (m *Manager) ChainID() string {
	return m.LastHeader().ChainID
}

// BlockTime is the estimated interval between blocks, learned from header arrivals.
func (m *Manager) BlockTime() time.Duration {
	return time.Duration(m.blockTimes.blockTime()) * time.Millisecond
}

func (m *Manager) Node() string {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.node
}

// Connect starts a connection attempt in the background. It does nothing when the connection
// context is stopped or when an attempt is already running.
func (m *Manager) Connect() {
	if m.cctx.Stopped() {
		return
	}

	if !m.connecting.CAS(false, true) {
		return
	}

	m.connected.Store(false)
	metrics.Connected.Set(0)

	go m.connectLoop()
}

func (m *Manager) connectLoop() {
	for {
		if m.cctx.Stopped() {
			m.connecting.Store(false)
			return
		}

		if m.attempts.Inc() > 1 {
			metrics.Reconnects.Inc()
		}

		rpc, node, err := m.tryConnect()
		if err == nil {
			m.setRpc(rpc, node)
			m.connected.Store(true)
			metrics.Connected.Set(1)
			m.connecting.Store(false)

			log.Info("Connected to node ", node)
			m.rpcSubscribe()
			return
		}

		if !m.sleep(m.cfg.ReconnectDelayDuration()) {
			m.connecting.Store(false)
			return
		}
	}
}

func (m *Manager) tryConnect() (client.RpcClient, string, error) {
	ctx := m.cctx.Context()

	node, err := m.nodes.PickNode(ctx)
	if err != nil {
		log.Error("Cannot pick a node to connect to, err = ", err)
		if errors.Is(err, addressbook.ErrNoNodesAvailable) {
			m.connFeed.Send(types.ConnectionEvent{Kind: types.EventNoNodesAvailable, Err: err})
			m.nodes.ResetNodes()
		}

		return nil, "", err
	}

	dialCtx, cancel := context.WithTimeout(ctx, client.RpcTimeOut)
	defer cancel()

	rpc, err := m.dial(dialCtx, node)
	if err != nil {
		log.Errorf("Cannot connect to node %s, err = %v", node, err)
		m.nodes.FlagNodeOffline(utils.HostOf(node))
		return nil, "", err
	}

	return rpc, node, nil
}

func (m *Manager) setRpc(rpc client.RpcClient, node string) {
	m.lock.Lock()
	old := m.rpc
	m.rpc = rpc
	m.node = node
	m.lock.Unlock()
	m.blockTimes.reset()

	if old != nil && old != rpc {
		old.Close()
	}
}

func (m *Manager) isCurrent(rpc client.RpcClient) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.rpc == rpc
}

// rpcSubscribe wires every subscription of the current handle. Calling it again on the same
// handle does nothing.
func (m *Manager) rpcSubscribe() {
	if m.cctx.Stopped() {
		return
	}

	m.lock.Lock()
	rpc := m.rpc
	if rpc == nil || rpc == m.subscribedRpc {
		m.lock.Unlock()
		return
	}

	if !rpc.Connected() {
		m.lock.Unlock()
		log.Verbose("Rpc socket is not connected yet, retrying")
		if m.sleep(m.cfg.SubscribeRetryDelayDuration()) {
			m.Connect()
		}
		return
	}

	// Addresses watched from here on subscribe on rpc themselves.
	m.subscribedRpc = rpc
	addresses := m.watchedAddresses()
	node := m.node
	m.lock.Unlock()

	go m.watchConnectionErrors(rpc)

	ctx, cancel := context.WithTimeout(m.cctx.Context(), client.RpcTimeOut)
	defer cancel()

	status, err := rpc.Status(ctx)
	if err != nil {
		log.Errorf("Cannot get status of node %s, err = %v", node, err)
		m.reconnect(rpc, err)
		return
	}

	if m.cfg.ChainId != "" && status.NodeInfo.Network != m.cfg.ChainId {
		err := fmt.Errorf("node %s is on network %s, expected %s", node, status.NodeInfo.Network, m.cfg.ChainId)
		log.Error(err)
		m.nodes.FlagNodeIncompatible(utils.HostOf(node))
		m.connFeed.Send(types.ConnectionEvent{Kind: types.EventNodeIncompatible, Node: node, Err: err})
		m.reconnect(rpc, err)
		return
	}

	m.setHeader(types.Header{
		Height:  status.SyncInfo.LatestBlockHeight,
		ChainID: status.NodeInfo.Network,
	}, false)

	headers, err := rpc.Subscribe(ctx, NewBlockHeaderQuery)
	if err != nil {
		log.Errorf("Cannot subscribe to new headers on node %s, err = %v", node, err)
		m.reconnect(rpc, err)
		return
	}
	go m.processHeaders(headers)

	m.subscribeAddresses(ctx, rpc, addresses)

	m.connFeed.Send(types.ConnectionEvent{Kind: types.EventConnected, Node: node})

	m.checkNodeHalted(m.cfg.NodeHaltedTimeoutDuration())
	go m.pollRPCConnection(rpc, m.cfg.PollIntervalDuration())
}

// reconnect drops the given handle if it is still the current one and starts a new
// connection attempt.
func (m *Manager) reconnect(rpc client.RpcClient, err error) {
	if !m.isCurrent(rpc) || m.cctx.Stopped() {
		return
	}

	node := m.Node()
	log.Warnf("Lost connection to node %s, err = %v. Reconnecting", node, err)

	m.connected.Store(false)
	metrics.Connected.Set(0)
	m.connFeed.Send(types.ConnectionEvent{Kind: types.EventDisconnected, Node: node, Err: err})

	m.Connect()
}

func (m *Manager) watchConnectionErrors(rpc client.RpcClient) {
	select {
	case err, ok := <-rpc.Errors():
		if !ok || err == nil {
			err = client.ErrClosed
		}
		m.reconnect(rpc, err)

	case <-m.cctx.Done():
	}
}

func (m *Manager) processHeaders(headers <-chan *types.EventData) {
	for ev := range headers {
		value := &types.NewBlockHeaderEvent{}
		if err := json.Unmarshal(ev.Value, value); err != nil {
			log.Error("Cannot parse new block header event, err = ", err)
			continue
		}

		m.blockTimes.observe(time.Now())
		m.setHeader(value.Header, true)
		m.headerFeed.Send(value.Header)
	}
}

func (m *Manager) setHeader(header types.Header, fromEvent bool) {
	m.lock.Lock()
	m.lastHeader = header
	if fromEvent {
		m.headerUpdates++
	}
	m.lock.Unlock()

	if fromEvent {
		m.nodeHalted.Store(false)
	}
	metrics.BlockHeight.Set(float64(header.Height))
}

// checkNodeHalted arms a one shot timer. If no header arrived when it fires, the node is
// considered halted.
func (m *Manager) checkNodeHalted(timeout time.Duration) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.haltedTimer != nil {
		m.haltedTimer.Stop()
	}

	armedAt := m.headerUpdates
	var timer *time.Timer
	timer = time.AfterFunc(timeout, func() {
		m.lock.Lock()
		halted := m.headerUpdates == armedAt
		if m.haltedTimer == timer {
			m.haltedTimer = nil
		}
		node := m.node
		m.lock.Unlock()

		if !halted || m.cctx.Stopped() {
			return
		}

		log.Errorf("Node %s produced no block header in %s", node, timeout)
		m.nodeHalted.Store(true)
		metrics.NodeHalted.Inc()
		m.connFeed.Send(types.ConnectionEvent{Kind: types.EventNodeHalted, Node: node})
	})
	m.haltedTimer = timer
}

// pollRPCConnection probes the node health every interval for as long as rpc is the current
// handle. A failed probe starts a reconnection.
func (m *Manager) pollRPCConnection(rpc client.RpcClient, interval time.Duration) {
	for {
		if m.cctx.Stopped() || !m.isCurrent(rpc) {
			return
		}

		ctx, cancel := context.WithTimeout(m.cctx.Context(), interval)
		err := rpc.Health(ctx)
		cancel()

		if err != nil {
			if m.cctx.Stopped() {
				return
			}
			m.reconnect(rpc, err)
			return
		}

		if !m.sleep(interval) {
			return
		}
	}
}

func (m *Manager) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-m.cctx.Done():
		return false
	}
}

// Close stops the halted watchdog and closes the current handle. The caller stops the
// connection context first so that nothing reconnects.
func (m *Manager) Close() {
	m.lock.Lock()
	rpc := m.rpc
	if m.haltedTimer != nil {
		m.haltedTimer.Stop()
		m.haltedTimer = nil
	}
	m.lock.Unlock()

	m.connected.Store(false)
	metrics.Connected.Set(0)

	if rpc != nil {
		rpc.Close()
	}
}
