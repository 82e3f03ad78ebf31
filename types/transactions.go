package types

import "encoding/json"

// Wallet identifies the signed-in account a transaction is sent from. Key material never
// lives here, the signer resolves it from the address/name.
type Wallet struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// SendTxArgs describes a message to build through the LCD. Path is the LCD endpoint that
// generates the unsigned transaction (e.g. /bank/accounts/{to}/transfers) and Body holds the
// message specific fields. BaseReq is filled in by the submitter.
type SendTxArgs struct {
	Path string                 `json:"path"`
	Body map[string]interface{} `json:"body"`
	Gas  string                 `json:"gas,omitempty"`
	Memo string                 `json:"memo,omitempty"`
}

// BaseReq is the request metadata the LCD needs to generate a transaction.
type BaseReq struct {
	From          string `json:"from"`
	Name          string `json:"name,omitempty"`
	Sequence      string `json:"sequence"`
	AccountNumber string `json:"account_number"`
	ChainID       string `json:"chain_id"`
	Gas           string `json:"gas,omitempty"`
	Memo          string `json:"memo,omitempty"`
	GenerateOnly  bool   `json:"generate_only"`
}

// SignMeta is what the signer needs besides the transaction itself.
type SignMeta struct {
	Sequence      string `json:"sequence"`
	AccountNumber string `json:"account_number"`
	ChainID       string `json:"chain_id"`
}

type Account struct {
	Address       string `json:"address"`
	Coins         []Coin `json:"coins"`
	AccountNumber string `json:"account_number"`
	Sequence      string `json:"sequence"`
}

type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// StdTx is the unsigned transaction returned by the LCD when generate_only is set.
type StdTx struct {
	Msg        []json.RawMessage `json:"msg"`
	Fee        json.RawMessage   `json:"fee"`
	Signatures []Signature       `json:"signatures"`
	Memo       string            `json:"memo"`
}

type Signature struct {
	Signature     string          `json:"signature"`
	PubKey        json.RawMessage `json:"pub_key"`
	AccountNumber string          `json:"account_number,omitempty"`
	Sequence      string          `json:"sequence,omitempty"`
}

// BroadcastBody is posted to the LCD /txs endpoint.
type BroadcastBody struct {
	Tx     *StdTx `json:"tx"`
	Return string `json:"return"`
}

// BroadcastResult is one element of a broadcast response. A response is either a single
// result or an array of them for multi-message transactions.
type BroadcastResult struct {
	CheckTx   TxCode `json:"check_tx"`
	DeliverTx TxCode `json:"deliver_tx"`
	Hash      string `json:"hash"`
	Height    string `json:"height"`
}

type TxCode struct {
	Code uint32 `json:"code"`
	Log  string `json:"log"`
}

// TxResult is returned to the caller of a successful submission.
type TxResult struct {
	Hashes   []string `json:"hashes"`
	Height   string   `json:"height"`
	Sequence string   `json:"sequence"`
}
