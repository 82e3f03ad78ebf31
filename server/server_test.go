package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sisu-network/dwallet/types"
	"github.com/stretchr/testify/require"
)

type mockConn struct {
	watched []string
}

func (m *mockConn) Connected() bool  { return true }
func (m *mockConn) NodeHalted() bool { return false }
func (m *mockConn) Node() string     { return "10.0.0.1:26657" }

func (m *mockConn) BlockTime() time.Duration { return 6 * time.Second }

func (m *mockConn) LastHeader() types.Header {
	return types.Header{Height: 42, ChainID: "test-chain"}
}

func (m *mockConn) WatchAddress(address string) error {
	m.watched = append(m.watched, address)
	return nil
}

type mockSubmitter struct {
	queueErr error
}

func (m *mockSubmitter) SignIn(ctx context.Context, wallet *types.Wallet) (*types.Account, error) {
	return &types.Account{Address: wallet.Address, AccountNumber: "7", Sequence: "3"}, nil
}

func (m *mockSubmitter) QueueTx(ctx context.Context, wallet *types.Wallet, args *types.SendTxArgs) (*types.TxResult, error) {
	if m.queueErr != nil {
		return nil, m.queueErr
	}
	return &types.TxResult{Hashes: []string{"ABCD"}, Height: "43", Sequence: "3"}, nil
}

func (m *mockSubmitter) Nonce(address string) string { return "4" }

type mockNodes struct{}

func (m *mockNodes) PickNode(ctx context.Context) (string, error) { return "10.0.0.2:26657", nil }

func (m *mockNodes) Peers() []types.Peer {
	return []types.Peer{{Host: "10.0.0.2", State: types.PeerAvailable}}
}

func newTestServer(t *testing.T, conn *mockConn, submitter *mockSubmitter) (*httptest.Server, *rpc.Client) {
	handler, err := NewRpcServer(NewApi(conn, submitter, &mockNodes{}))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_requests_total"})
	require.NoError(t, reg.Register(counter))
	counter.Inc()

	httpServer := httptest.NewServer(NewServer(handler, reg, 0).Handler())
	t.Cleanup(httpServer.Close)

	client, err := rpc.DialHTTP(httpServer.URL)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return httpServer, client
}

func TestApi_ConnectionStatus(t *testing.T) {
	_, client := newTestServer(t, &mockConn{}, &mockSubmitter{})

	require.NoError(t, client.Call(nil, "wallet_checkHealth"))

	status := &ConnectionStatus{}
	require.NoError(t, client.Call(status, "wallet_connectionStatus"))
	require.Equal(t, &ConnectionStatus{
		Connected: true,
		Node:      "10.0.0.1:26657",
		Height:    42,
		ChainID:   "test-chain",
		BlockTime: 6000,
	}, status)

	var node string
	require.NoError(t, client.Call(&node, "wallet_pickNode"))
	require.Equal(t, "10.0.0.2:26657", node)

	var peers []types.Peer
	require.NoError(t, client.Call(&peers, "wallet_peers"))
	require.Equal(t, []types.Peer{{Host: "10.0.0.2", State: types.PeerAvailable}}, peers)
}

func TestApi_SignInAndQueueTx(t *testing.T) {
	conn := &mockConn{}
	submitter := &mockSubmitter{}
	_, client := newTestServer(t, conn, submitter)

	wallet := types.Wallet{Address: "cosmos1abc", Name: "main"}
	account := &types.Account{}
	require.NoError(t, client.Call(account, "wallet_signIn", wallet))
	require.Equal(t, "7", account.AccountNumber)
	require.Equal(t, []string{"cosmos1abc"}, conn.watched)

	result := &types.TxResult{}
	args := types.SendTxArgs{Path: "/bank/accounts/cosmos1to/transfers"}
	require.NoError(t, client.Call(result, "wallet_queueTx", wallet, args))
	require.Equal(t, []string{"ABCD"}, result.Hashes)

	var nonce string
	require.NoError(t, client.Call(&nonce, "wallet_nonce", "cosmos1abc"))
	require.Equal(t, "4", nonce)

	submitter.queueErr = errors.New("out of gas")
	err := client.Call(result, "wallet_queueTx", wallet, args)
	require.EqualError(t, err, "out of gas")
}

func TestServer_Metrics(t *testing.T) {
	httpServer, _ := newTestServer(t, &mockConn{}, &mockSubmitter{})

	resp, err := http.Get(httpServer.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "test_requests_total 1")
}
