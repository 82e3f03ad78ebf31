package lcd

import (
	"context"
	"encoding/json"

	"github.com/sisu-network/dwallet/types"
)

type MockClient struct {
	AccountFunc     func(ctx context.Context, address string) (*types.Account, error)
	GenerateTxFunc  func(ctx context.Context, path string, body interface{}) (*types.StdTx, error)
	BroadcastTxFunc func(ctx context.Context, body *types.BroadcastBody) (json.RawMessage, error)
}

func (m *MockClient) Account(ctx context.Context, address string) (*types.Account, error) {
	if m.AccountFunc != nil {
		return m.AccountFunc(ctx, address)
	}

	return &types.Account{Address: address}, nil
}

func (m *MockClient) GenerateTx(ctx context.Context, path string, body interface{}) (*types.StdTx, error) {
	if m.GenerateTxFunc != nil {
		return m.GenerateTxFunc(ctx, path, body)
	}

	return &types.StdTx{}, nil
}

func (m *MockClient) BroadcastTx(ctx context.Context, body *types.BroadcastBody) (json.RawMessage, error) {
	if m.BroadcastTxFunc != nil {
		return m.BroadcastTxFunc(ctx, body)
	}

	return json.RawMessage(`{"check_tx":{"code":0},"deliver_tx":{"code":0}}`), nil
}
