package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sisu-network/dwallet/types"
	"github.com/sisu-network/dwallet/utils"
	"github.com/sisu-network/lib/log"
	"github.com/ybbus/jsonrpc/v3"
	"go.uber.org/atomic"
)

const (
	RpcTimeOut          = 10 * time.Second
	subscriptionBufSize = 100
)

var (
	ErrNotConnected = errors.New("rpc websocket is not connected")
	ErrClosed       = errors.New("rpc client is closed")
)

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (e *RPCError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("RPC error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

type wsRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type wsResponse struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

type eventResult struct {
	Query string `json:"query"`
	Data  *struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"data"`
}

type subscription struct {
	query string
	ch    chan *types.EventData
	ack   chan error
}

// tendermintClient talks JSON-RPC over http for plain calls and keeps a websocket open for
// event subscriptions.
type tendermintClient struct {
	addr string
	http jsonrpc.RPCClient
	conn *websocket.Conn

	connected *atomic.Bool
	writeLock *sync.Mutex
	lock      *sync.RWMutex
	subs      map[string]*subscription

	errCh     chan error
	done      chan struct{}
	closeOnce *sync.Once
}

// Dial opens the websocket of the node at addr. Plain calls go over http to the same node.
func Dial(ctx context.Context, addr string) (RpcClient, error) {
	httpUrl, wsUrl := utils.RpcUrls(addr)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsUrl, nil)
	if err != nil {
		return nil, err
	}

	c := &tendermintClient{
		addr: addr,
		http: jsonrpc.NewClientWithOpts(httpUrl, &jsonrpc.RPCClientOpts{
			HTTPClient:         &http.Client{Timeout: RpcTimeOut},
			AllowUnknownFields: true,
		}),
		conn:      conn,
		connected: atomic.NewBool(true),
		writeLock: &sync.Mutex{},
		lock:      &sync.RWMutex{},
		subs:      make(map[string]*subscription),
		errCh:     make(chan error, 1),
		done:      make(chan struct{}),
		closeOnce: &sync.Once{},
	}

	go c.readLoop()

	return c, nil
}

func (c *tendermintClient) Status(ctx context.Context) (*types.Status, error) {
	status := &types.Status{}
	if err := c.http.CallFor(ctx, status, "status"); err != nil {
		return nil, err
	}

	return status, nil
}

func (c *tendermintClient) Health(ctx context.Context) error {
	res, err := c.http.Call(ctx, "health")
	if err != nil {
		return err
	}

	if res.Error != nil {
		return res.Error
	}

	return nil
}

func (c *tendermintClient) Connected() bool {
	return c.connected.Load()
}

func (c *tendermintClient) Errors() <-chan error {
	return c.errCh
}

func (c *tendermintClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.conn.Close()
}

func (c *tendermintClient) Subscribe(ctx context.Context, query string) (<-chan *types.EventData, error) {
	if !c.Connected() {
		return nil, ErrNotConnected
	}

	id := uuid.NewString()
	sub := &subscription{
		query: query,
		ch:    make(chan *types.EventData, subscriptionBufSize),
		ack:   make(chan error, 1),
	}

	c.lock.Lock()
	c.subs[id] = sub
	c.lock.Unlock()

	req := &wsRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "subscribe",
		Params:  map[string]string{"query": query},
	}

	c.writeLock.Lock()
	err := c.conn.WriteJSON(req)
	c.writeLock.Unlock()
	if err != nil {
		c.removeSub(id)
		return nil, err
	}

	select {
	case err := <-sub.ack:
		if err != nil {
			c.removeSub(id)
			return nil, err
		}
	case <-ctx.Done():
		c.removeSub(id)
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}

	log.Verbosef("Subscribed to %s on %s", query, c.addr)
	return sub.ch, nil
}

func (c *tendermintClient) removeSub(id string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	delete(c.subs, id)
}

func (c *tendermintClient) readLoop() {
	for {
		_, bz, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}

		msg := &wsResponse{}
		if err := json.Unmarshal(bz, msg); err != nil {
			log.Error("Cannot parse websocket message, err = ", err)
			continue
		}

		c.dispatch(msg)
	}
}

func (c *tendermintClient) dispatch(msg *wsResponse) {
	var id string
	if err := json.Unmarshal(msg.ID, &id); err != nil {
		// Not one of our string ids.
		return
	}
	id = strings.TrimSuffix(id, "#event")

	c.lock.RLock()
	sub := c.subs[id]
	c.lock.RUnlock()
	if sub == nil {
		return
	}

	if msg.Error != nil {
		select {
		case sub.ack <- msg.Error:
		default:
			log.Error("Subscription error for query ", sub.query, ", err = ", msg.Error)
		}
		return
	}

	result := &eventResult{}
	if err := json.Unmarshal(msg.Result, result); err != nil {
		log.Error("Cannot parse event for query ", sub.query, ", err = ", err)
		return
	}

	if result.Data == nil {
		// Empty result acknowledges the subscribe request.
		select {
		case sub.ack <- nil:
		default:
		}
		return
	}

	event := &types.EventData{
		Query: result.Query,
		Type:  result.Data.Type,
		Value: result.Data.Value,
	}

	select {
	case sub.ch <- event:
	case <-c.done:
	}
}

func (c *tendermintClient) shutdown(err error) {
	c.connected.Store(false)
	c.closeOnce.Do(func() {
		close(c.done)
	})

	c.lock.Lock()
	for id, sub := range c.subs {
		close(sub.ch)
		delete(c.subs, id)
	}
	c.lock.Unlock()

	select {
	case c.errCh <- err:
	default:
	}
}
