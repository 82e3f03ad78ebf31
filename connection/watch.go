package connection

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sisu-network/dwallet/client"
	"github.com/sisu-network/dwallet/types"
	"github.com/sisu-network/dwallet/utils"
	"github.com/sisu-network/lib/log"
)

func txQueries(address string) []string {
	return []string{
		fmt.Sprintf("tm.event='Tx' AND transfer.recipient='%s'", address),
		fmt.Sprintf("tm.event='Tx' AND message.sender='%s'", address),
	}
}

// WatchAddress tracks the transactions sent from or to the address. The subscriptions are
// made on the current connection right away and again after every reconnection.
func (m *Manager) WatchAddress(address string) error {
	m.lock.Lock()
	if m.addresses[address] {
		m.lock.Unlock()
		return nil
	}
	m.addresses[address] = true
	rpc := m.subscribedRpc
	current := rpc != nil && rpc == m.rpc
	m.lock.Unlock()

	if !current || !rpc.Connected() {
		return nil
	}

	ctx, cancel := context.WithTimeout(m.cctx.Context(), client.RpcTimeOut)
	defer cancel()

	return m.subscribeAddress(ctx, rpc, address)
}

// watchedAddresses must be called with the lock held.
func (m *Manager) watchedAddresses() []string {
	addresses := make([]string, 0, len(m.addresses))
	for address := range m.addresses {
		addresses = append(addresses, address)
	}

	return addresses
}

func (m *Manager) subscribeAddresses(ctx context.Context, rpc client.RpcClient, addresses []string) {
	for _, address := range addresses {
		if err := m.subscribeAddress(ctx, rpc, address); err != nil {
			log.Errorf("Cannot subscribe to txs of %s, err = %v", address, err)
		}
	}
}

func (m *Manager) subscribeAddress(ctx context.Context, rpc client.RpcClient, address string) error {
	for _, query := range txQueries(address) {
		ch, err := rpc.Subscribe(ctx, query)
		if err != nil {
			return err
		}

		go m.processTxs(address, ch)
	}

	return nil
}

func (m *Manager) processTxs(address string, ch <-chan *types.EventData) {
	for ev := range ch {
		value := &types.TxEventValue{}
		if err := json.Unmarshal(ev.Value, value); err != nil {
			log.Error("Cannot parse tx event, err = ", err)
			continue
		}

		hash := utils.TxHash(value.TxResult.Tx)
		if m.seen(address + "/" + hash) {
			continue
		}

		log.Verbosef("Tx %s at height %d touches %s", hash, value.TxResult.Height, address)
		m.txFeed.Send(types.TxEvent{
			Hash:    hash,
			Height:  value.TxResult.Height,
			Address: address,
			Code:    value.TxResult.Result.Code,
			Log:     value.TxResult.Result.Log,
		})
	}
}

// seen records the key and reports whether it was already there. A self transfer matches both
// the sender and the recipient query.
func (m *Manager) seen(key string) bool {
	m.cacheLock.Lock()
	defer m.cacheLock.Unlock()

	if _, ok := m.txTrackCache.Get(key); ok {
		return true
	}
	m.txTrackCache.Add(key, true)

	return false
}
