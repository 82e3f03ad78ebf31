package server

import (
	"context"
	"time"

	"github.com/sisu-network/dwallet/types"
	"github.com/sisu-network/lib/log"
)

type ConnectionManager interface {
	Connected() bool
	NodeHalted() bool
	LastHeader() types.Header
	BlockTime() time.Duration
	Node() string
	WatchAddress(address string) error
}

type TxSubmitter interface {
	SignIn(ctx context.Context, wallet *types.Wallet) (*types.Account, error)
	QueueTx(ctx context.Context, wallet *types.Wallet, args *types.SendTxArgs) (*types.TxResult, error)
	Nonce(address string) string
}

type NodePicker interface {
	PickNode(ctx context.Context) (string, error)
	Peers() []types.Peer
}

type ConnectionStatus struct {
	Connected  bool   `json:"connected"`
	Node       string `json:"node"`
	NodeHalted bool   `json:"node_halted"`
	Height     int64  `json:"height"`
	ChainID    string `json:"chain_id"`
	// BlockTime is in milliseconds.
	BlockTime int64 `json:"block_time"`
}

// ApiHandler is served under the "wallet" namespace, e.g. wallet_queueTx.
type ApiHandler struct {
	conn      ConnectionManager
	submitter TxSubmitter
	nodes     NodePicker
}

func NewApi(conn ConnectionManager, submitter TxSubmitter, nodes NodePicker) *ApiHandler {
	return &ApiHandler{
		conn:      conn,
		submitter: submitter,
		nodes:     nodes,
	}
}

// Empty function for checking health only.
func (api *ApiHandler) CheckHealth() {
}

func (api *ApiHandler) ConnectionStatus() *ConnectionStatus {
	header := api.conn.LastHeader()
	return &ConnectionStatus{
		Connected:  api.conn.Connected(),
		Node:       api.conn.Node(),
		NodeHalted: api.conn.NodeHalted(),
		Height:     header.Height,
		ChainID:    header.ChainID,
		BlockTime:  api.conn.BlockTime().Milliseconds(),
	}
}

// SignIn opens a session for the wallet and starts watching its transactions.
func (api *ApiHandler) SignIn(ctx context.Context, wallet types.Wallet) (*types.Account, error) {
	account, err := api.submitter.SignIn(ctx, &wallet)
	if err != nil {
		return nil, err
	}

	if err := api.conn.WatchAddress(wallet.Address); err != nil {
		log.Warnf("Cannot watch txs of %s, err = %v", wallet.Address, err)
	}

	return account, nil
}

func (api *ApiHandler) QueueTx(ctx context.Context, wallet types.Wallet, args types.SendTxArgs) (*types.TxResult, error) {
	return api.submitter.QueueTx(ctx, &wallet, &args)
}

func (api *ApiHandler) Nonce(address string) string {
	return api.submitter.Nonce(address)
}

func (api *ApiHandler) PickNode(ctx context.Context) (string, error) {
	return api.nodes.PickNode(ctx)
}

func (api *ApiHandler) Peers() []types.Peer {
	return api.nodes.Peers()
}
