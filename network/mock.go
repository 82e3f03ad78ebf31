package network

import "context"

type MockHttp struct {
	GetFunc func(ctx context.Context, url string) ([]byte, error)
}

func (m *MockHttp) Get(ctx context.Context, url string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, url)
	}

	return nil, nil
}
