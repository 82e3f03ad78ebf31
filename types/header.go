package types

// Header is the subset of a block header the wallet keeps track of.
type Header struct {
	Height  int64  `json:"height,string"`
	ChainID string `json:"chain_id"`
}

// Status is the result of the Tendermint `status` RPC call.
type Status struct {
	NodeInfo struct {
		Network string `json:"network"`
	} `json:"node_info"`
	SyncInfo struct {
		LatestBlockHeight int64 `json:"latest_block_height,string"`
		CatchingUp        bool  `json:"catching_up"`
	} `json:"sync_info"`
}

// EventData is one event delivered on a websocket subscription.
type EventData struct {
	Query string
	Type  string
	Value []byte
}

// NewBlockHeaderEvent is the value of a `tendermint/event/NewBlockHeader` event.
type NewBlockHeaderEvent struct {
	Header Header `json:"header"`
}

// TxEventValue is the value of a `tendermint/event/Tx` event.
type TxEventValue struct {
	TxResult struct {
		Height int64  `json:"height,string"`
		Tx     []byte `json:"tx"`
		Result struct {
			Code uint32 `json:"code"`
			Log  string `json:"log"`
		} `json:"result"`
	} `json:"TxResult"`
}
