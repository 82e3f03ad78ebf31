package client

import (
	"context"

	"github.com/sisu-network/dwallet/types"
)

type MockRpcClient struct {
	StatusFunc    func(ctx context.Context) (*types.Status, error)
	HealthFunc    func(ctx context.Context) error
	SubscribeFunc func(ctx context.Context, query string) (<-chan *types.EventData, error)
	ConnectedFunc func() bool
	CloseFunc     func()

	ErrCh chan error
}

func (m *MockRpcClient) Status(ctx context.Context) (*types.Status, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx)
	}

	return &types.Status{}, nil
}

func (m *MockRpcClient) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}

	return nil
}

func (m *MockRpcClient) Subscribe(ctx context.Context, query string) (<-chan *types.EventData, error) {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(ctx, query)
	}

	return make(chan *types.EventData), nil
}

func (m *MockRpcClient) Connected() bool {
	if m.ConnectedFunc != nil {
		return m.ConnectedFunc()
	}

	return true
}

func (m *MockRpcClient) Errors() <-chan error {
	return m.ErrCh
}

func (m *MockRpcClient) Close() {
	if m.CloseFunc != nil {
		m.CloseFunc()
	}
}
