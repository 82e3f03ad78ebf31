package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sisu-network/dwallet/config"
	"github.com/sisu-network/dwallet/lcd"
	"github.com/sisu-network/dwallet/metrics"
	"github.com/sisu-network/dwallet/types"
	"github.com/sisu-network/dwallet/utils"
	"github.com/sisu-network/lib/log"
	"golang.org/x/sync/semaphore"
)

// Signer signs a generated transaction for the wallet. Key material stays with the signer.
type Signer interface {
	Sign(ctx context.Context, tx *types.StdTx, wallet *types.Wallet, meta *types.SignMeta) (*types.Signature, error)
}

// ConnectionStatus is the part of the connection manager the submitter needs.
type ConnectionStatus interface {
	Connected() bool
	ChainID() string
}

// TxQueue serializes the transactions of one account. sem is held while a transaction is in
// flight, nonce only moves forward after a successful broadcast.
type TxQueue struct {
	sem *semaphore.Weighted

	lock          *sync.RWMutex
	nonce         string
	accountNumber string
}

func newTxQueue() *TxQueue {
	return &TxQueue{
		sem:  semaphore.NewWeighted(1),
		lock: &sync.RWMutex{},
	}
}

func (q *TxQueue) Nonce() string {
	q.lock.RLock()
	defer q.lock.RUnlock()

	return q.nonce
}

func (q *TxQueue) accountMeta() (string, string) {
	q.lock.RLock()
	defer q.lock.RUnlock()

	return q.nonce, q.accountNumber
}

// heal moves the local nonce up to the chain sequence. The local nonce is kept when it is
// ahead, e.g. right after a broadcast the node has not indexed yet.
func (q *TxQueue) heal(account *types.Account) error {
	q.lock.Lock()
	defer q.lock.Unlock()

	nonce, err := utils.MaxNonce(q.nonce, account.Sequence)
	if err != nil {
		return err
	}

	q.nonce = nonce
	if account.AccountNumber != "" {
		q.accountNumber = account.AccountNumber
	}

	return nil
}

func (q *TxQueue) setNonce(nonce string) {
	q.lock.Lock()
	defer q.lock.Unlock()

	q.nonce = nonce
}

type Submitter struct {
	cfg    *config.Wallet
	conn   ConnectionStatus
	lcd    lcd.Client
	signer Signer

	lock   *sync.Mutex
	queues map[string]*TxQueue
}

func NewSubmitter(cfg *config.Wallet, conn ConnectionStatus, lcdClient lcd.Client, signer Signer) *Submitter {
	return &Submitter{
		cfg:    cfg,
		conn:   conn,
		lcd:    lcdClient,
		signer: signer,
		lock:   &sync.Mutex{},
		queues: make(map[string]*TxQueue),
	}
}

func (s *Submitter) queue(address string) *TxQueue {
	s.lock.Lock()
	defer s.lock.Unlock()

	q, ok := s.queues[address]
	if !ok {
		q = newTxQueue()
		s.queues[address] = q
	}

	return q
}

// SignIn opens the session of the wallet and seeds its nonce from the chain.
func (s *Submitter) SignIn(ctx context.Context, wallet *types.Wallet) (*types.Account, error) {
	account, err := s.lcd.Account(ctx, wallet.Address)
	if err != nil {
		return nil, fmt.Errorf("cannot query account %s: %w", wallet.Address, err)
	}

	if err := s.queue(wallet.Address).heal(account); err != nil {
		return nil, err
	}
	log.Infof("Signed in %s, nonce = %s", wallet.Address, s.Nonce(wallet.Address))

	return account, nil
}

// Nonce is the sequence the next transaction of address will use, as known locally.
func (s *Submitter) Nonce(address string) string {
	return s.queue(address).Nonce()
}

// QueueTx waits for the previous transaction of the same wallet to finish and sends this one.
// Callers are served in arrival order. Cancelling ctx while waiting gives up the place in the
// queue.
func (s *Submitter) QueueTx(ctx context.Context, wallet *types.Wallet, args *types.SendTxArgs) (*types.TxResult, error) {
	q := s.queue(wallet.Address)
	if err := q.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer q.sem.Release(1)

	result, err := s.sendTx(ctx, q, wallet, args)
	if err != nil {
		log.Errorf("Failed to send tx from %s, err = %v", wallet.Address, err)
		metrics.Transactions.WithLabelValues("failure").Inc()
		return nil, err
	}

	log.Verbosef("Tx from %s with sequence %s is included, hashes = %v", wallet.Address, result.Sequence, result.Hashes)
	metrics.Transactions.WithLabelValues("success").Inc()

	return result, nil
}

func (s *Submitter) sendTx(ctx context.Context, q *TxQueue, wallet *types.Wallet, args *types.SendTxArgs) (*types.TxResult, error) {
	if !s.conn.Connected() {
		return nil, ErrNotConnected
	}

	account, err := s.lcd.Account(ctx, wallet.Address)
	if err != nil {
		return nil, fmt.Errorf("cannot query account %s: %w", wallet.Address, err)
	}
	if err := q.heal(account); err != nil {
		return nil, err
	}
	nonce, accountNumber := q.accountMeta()

	gas := args.Gas
	if gas == "" {
		gas = s.cfg.Gas
	}
	chainID := s.conn.ChainID()

	body := make(map[string]interface{}, len(args.Body)+1)
	for k, v := range args.Body {
		body[k] = v
	}
	body["base_req"] = types.BaseReq{
		From:          wallet.Address,
		Name:          wallet.Name,
		Sequence:      nonce,
		AccountNumber: accountNumber,
		ChainID:       chainID,
		Gas:           gas,
		Memo:          args.Memo,
		GenerateOnly:  true,
	}

	tx, err := s.lcd.GenerateTx(ctx, args.Path, body)
	if err != nil {
		return nil, toTxError(err)
	}

	signature, err := s.signer.Sign(ctx, tx, wallet, &types.SignMeta{
		Sequence:      nonce,
		AccountNumber: accountNumber,
		ChainID:       chainID,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot sign tx: %w", err)
	}
	tx.Signatures = []types.Signature{*signature}

	raw, err := s.lcd.BroadcastTx(ctx, &types.BroadcastBody{Tx: tx, Return: lcd.BroadcastModeBlock})
	if err != nil {
		return nil, toTxError(err)
	}

	results, err := parseBroadcastResults(raw)
	if err != nil {
		return nil, err
	}
	if err := checkBroadcastResults(results); err != nil {
		return nil, err
	}

	next, err := utils.IncrementNonce(nonce)
	if err != nil {
		return nil, err
	}
	q.setNonce(next)

	result := &types.TxResult{
		Hashes:   make([]string, 0, len(results)),
		Sequence: nonce,
	}
	for _, r := range results {
		if r.Hash != "" {
			result.Hashes = append(result.Hashes, r.Hash)
		}
		result.Height = r.Height
	}

	return result, nil
}

func toTxError(err error) error {
	var respErr *lcd.ResponseError
	if errors.As(err, &respErr) {
		return NewTxError(0, respErr.Body)
	}

	return err
}

// parseBroadcastResults accepts a single result or an array of them.
func parseBroadcastResults(raw json.RawMessage) ([]*types.BroadcastResult, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, &TxError{Message: errSendingTransaction}
	}

	if raw[0] == '[' {
		results := make([]*types.BroadcastResult, 0)
		if err := json.Unmarshal(raw, &results); err != nil {
			return nil, fmt.Errorf("cannot parse broadcast result: %w", err)
		}
		return results, nil
	}

	result := &types.BroadcastResult{}
	if err := json.Unmarshal(raw, result); err != nil {
		return nil, fmt.Errorf("cannot parse broadcast result: %w", err)
	}

	return []*types.BroadcastResult{result}, nil
}

func checkBroadcastResults(results []*types.BroadcastResult) error {
	if len(results) == 0 {
		return &TxError{Message: errSendingTransaction}
	}

	for _, r := range results {
		if r.CheckTx.Code != 0 {
			return NewTxError(r.CheckTx.Code, r.CheckTx.Log)
		}
		if r.DeliverTx.Code != 0 {
			return NewTxError(r.DeliverTx.Code, r.DeliverTx.Log)
		}
	}

	return nil
}
