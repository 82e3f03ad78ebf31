package core

import (
	"context"

	"github.com/sisu-network/dwallet/types"
)

type MockSigner struct {
	SignFunc func(ctx context.Context, tx *types.StdTx, wallet *types.Wallet, meta *types.SignMeta) (*types.Signature, error)
}

func (m *MockSigner) Sign(ctx context.Context, tx *types.StdTx, wallet *types.Wallet, meta *types.SignMeta) (*types.Signature, error) {
	if m.SignFunc != nil {
		return m.SignFunc(ctx, tx, wallet, meta)
	}

	return &types.Signature{Signature: "c2ln"}, nil
}

type MockConnectionStatus struct {
	ConnectedFunc func() bool
	ChainIDFunc   func() string
}

func (m *MockConnectionStatus) Connected() bool {
	if m.ConnectedFunc != nil {
		return m.ConnectedFunc()
	}

	return true
}

func (m *MockConnectionStatus) ChainID() string {
	if m.ChainIDFunc != nil {
		return m.ChainIDFunc()
	}

	return "test-chain"
}
