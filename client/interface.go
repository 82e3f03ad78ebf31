package client

import (
	"context"

	"github.com/sisu-network/dwallet/types"
)

// RpcClient is a live connection to the RPC endpoint of one node. A client is never reused
// after its websocket closed, the connection manager dials a new one.
type RpcClient interface {
	Status(ctx context.Context) (*types.Status, error)
	Health(ctx context.Context) error

	// Subscribe registers a Tendermint event query. Events are delivered in the order the node
	// sends them. The channel is closed when the websocket closes.
	Subscribe(ctx context.Context, query string) (<-chan *types.EventData, error)

	// Connected reports whether the websocket is open.
	Connected() bool

	// Errors receives the error that closed the websocket, at most once.
	Errors() <-chan error

	Close()
}

// Dialer opens an RpcClient to a node address (host:port or url).
type Dialer func(ctx context.Context, addr string) (RpcClient, error)
