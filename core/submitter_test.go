package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sisu-network/dwallet/config"
	"github.com/sisu-network/dwallet/lcd"
	"github.com/sisu-network/dwallet/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

const okResult = `{"check_tx":{"code":0,"log":""},"deliver_tx":{"code":0,"log":""},"hash":"ABCD","height":"12"}`

func testWallet() *types.Wallet {
	return &types.Wallet{Address: "cosmos1abc", Name: "main"}
}

func testArgs() *types.SendTxArgs {
	return &types.SendTxArgs{
		Path: "/bank/accounts/cosmos1to/transfers",
		Body: map[string]interface{}{
			"amount": []types.Coin{{Denom: "stake", Amount: "1"}},
		},
	}
}

func baseReqOf(t *testing.T, body interface{}) types.BaseReq {
	m, ok := body.(map[string]interface{})
	require.True(t, ok)
	baseReq, ok := m["base_req"].(types.BaseReq)
	require.True(t, ok)

	return baseReq
}

func mockLcd(sequence string, broadcast string) *lcd.MockClient {
	return &lcd.MockClient{
		AccountFunc: func(ctx context.Context, address string) (*types.Account, error) {
			return &types.Account{Address: address, AccountNumber: "7", Sequence: sequence}, nil
		},
		BroadcastTxFunc: func(ctx context.Context, body *types.BroadcastBody) (json.RawMessage, error) {
			return json.RawMessage(broadcast), nil
		},
	}
}

func newTestSubmitter(lcdClient lcd.Client) *Submitter {
	cfg := &config.Wallet{}
	cfg.SetDefaults()

	return NewSubmitter(cfg, &MockConnectionStatus{}, lcdClient, &MockSigner{})
}

func TestSubmitter_QueueTxSerialized(t *testing.T) {
	inFlight := atomic.NewInt32(0)
	maxInFlight := atomic.NewInt32(0)
	lock := &sync.Mutex{}
	sequences := make([]string, 0)

	lcdClient := mockLcd("0", okResult)
	lcdClient.GenerateTxFunc = func(ctx context.Context, path string, body interface{}) (*types.StdTx, error) {
		n := inFlight.Inc()
		defer inFlight.Dec()
		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CAS(cur, n) {
				break
			}
		}

		baseReq := body.(map[string]interface{})["base_req"].(types.BaseReq)
		lock.Lock()
		sequences = append(sequences, baseReq.Sequence)
		lock.Unlock()

		time.Sleep(10 * time.Millisecond)
		return &types.StdTx{}, nil
	}
	submitter := newTestSubmitter(lcdClient)

	wg := &sync.WaitGroup{}
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := submitter.QueueTx(context.Background(), testWallet(), testArgs())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), maxInFlight.Load())
	require.ElementsMatch(t, []string{"0", "1", "2", "3", "4"}, sequences)
	require.Equal(t, "5", submitter.Nonce("cosmos1abc"))
}

func TestSubmitter_NonceAdvancesPastChain(t *testing.T) {
	var baseReqs []types.BaseReq
	lcdClient := mockLcd("5", okResult)
	lcdClient.GenerateTxFunc = func(ctx context.Context, path string, body interface{}) (*types.StdTx, error) {
		baseReqs = append(baseReqs, baseReqOf(t, body))
		return &types.StdTx{}, nil
	}
	submitter := newTestSubmitter(lcdClient)

	res, err := submitter.QueueTx(context.Background(), testWallet(), testArgs())
	require.NoError(t, err)
	require.Equal(t, "5", res.Sequence)
	require.Equal(t, []string{"ABCD"}, res.Hashes)
	require.Equal(t, "12", res.Height)
	require.Equal(t, "6", submitter.Nonce("cosmos1abc"))

	// The chain still reports 5, the local nonce wins.
	res, err = submitter.QueueTx(context.Background(), testWallet(), testArgs())
	require.NoError(t, err)
	require.Equal(t, "6", res.Sequence)
	require.Equal(t, "7", submitter.Nonce("cosmos1abc"))

	require.Len(t, baseReqs, 2)
	require.Equal(t, types.BaseReq{
		From:          "cosmos1abc",
		Name:          "main",
		Sequence:      "5",
		AccountNumber: "7",
		ChainID:       "test-chain",
		Gas:           config.DefaultGas,
		GenerateOnly:  true,
	}, baseReqs[0])
}

func TestSubmitter_SignatureAttached(t *testing.T) {
	lcdClient := mockLcd("3", okResult)
	var broadcast *types.BroadcastBody
	lcdClient.BroadcastTxFunc = func(ctx context.Context, body *types.BroadcastBody) (json.RawMessage, error) {
		broadcast = body
		return json.RawMessage(okResult), nil
	}

	signer := &MockSigner{
		SignFunc: func(ctx context.Context, tx *types.StdTx, wallet *types.Wallet, meta *types.SignMeta) (*types.Signature, error) {
			require.Equal(t, &types.SignMeta{Sequence: "3", AccountNumber: "7", ChainID: "test-chain"}, meta)
			return &types.Signature{Signature: "c2lnbmF0dXJl"}, nil
		},
	}
	cfg := &config.Wallet{}
	cfg.SetDefaults()
	submitter := NewSubmitter(cfg, &MockConnectionStatus{}, lcdClient, signer)

	_, err := submitter.QueueTx(context.Background(), testWallet(), testArgs())
	require.NoError(t, err)
	require.Equal(t, lcd.BroadcastModeBlock, broadcast.Return)
	require.Equal(t, []types.Signature{{Signature: "c2lnbmF0dXJl"}}, broadcast.Tx.Signatures)
}

func TestSubmitter_FailureKeepsNonce(t *testing.T) {
	t.Run("deliver_tx", func(t *testing.T) {
		submitter := newTestSubmitter(mockLcd("5",
			`{"check_tx":{"code":0},"deliver_tx":{"code":4,"log":"{\"codespace\":\"sdk\",\"code\":4,\"message\":\"signature verification failed\"}"}}`))

		_, err := submitter.QueueTx(context.Background(), testWallet(), testArgs())
		require.Error(t, err)

		txErr, ok := err.(*TxError)
		require.True(t, ok)
		require.Equal(t, uint32(4), txErr.Code)
		require.Equal(t, "signature verification failed", txErr.Message)
		require.Equal(t, "5", submitter.Nonce("cosmos1abc"))
	})

	t.Run("empty_array", func(t *testing.T) {
		submitter := newTestSubmitter(mockLcd("5", `[]`))

		_, err := submitter.QueueTx(context.Background(), testWallet(), testArgs())
		require.EqualError(t, err, "Error sending transaction")
		require.Equal(t, "5", submitter.Nonce("cosmos1abc"))
	})

	t.Run("array_with_failure", func(t *testing.T) {
		submitter := newTestSubmitter(mockLcd("5",
			`[`+okResult+`,{"check_tx":{"code":11,"log":"out of gas"},"deliver_tx":{"code":0}}]`))

		_, err := submitter.QueueTx(context.Background(), testWallet(), testArgs())
		require.EqualError(t, err, "out of gas")
		require.Equal(t, "5", submitter.Nonce("cosmos1abc"))
	})

	t.Run("lcd_error", func(t *testing.T) {
		lcdClient := mockLcd("5", okResult)
		lcdClient.BroadcastTxFunc = func(ctx context.Context, body *types.BroadcastBody) (json.RawMessage, error) {
			return nil, &lcd.ResponseError{Status: 500, Body: `{"error":"account sequence mismatch, expected 6, got 5"}`}
		}
		submitter := newTestSubmitter(lcdClient)

		_, err := submitter.QueueTx(context.Background(), testWallet(), testArgs())
		require.EqualError(t, err, "account sequence mismatch, expected 6, got 5")
		require.Equal(t, "5", submitter.Nonce("cosmos1abc"))
	})
}

func TestSubmitter_ArrayResultSucceeds(t *testing.T) {
	submitter := newTestSubmitter(mockLcd("1", `[`+okResult+`,`+okResult+`]`))

	res, err := submitter.QueueTx(context.Background(), testWallet(), testArgs())
	require.NoError(t, err)
	require.Equal(t, []string{"ABCD", "ABCD"}, res.Hashes)
	require.Equal(t, "2", submitter.Nonce("cosmos1abc"))
}

func TestSubmitter_NotConnected(t *testing.T) {
	calls := atomic.NewInt32(0)
	lcdClient := &lcd.MockClient{
		AccountFunc: func(ctx context.Context, address string) (*types.Account, error) {
			calls.Inc()
			return &types.Account{}, nil
		},
	}
	conn := &MockConnectionStatus{ConnectedFunc: func() bool { return false }}
	cfg := &config.Wallet{}
	cfg.SetDefaults()
	submitter := NewSubmitter(cfg, conn, lcdClient, &MockSigner{})

	_, err := submitter.QueueTx(context.Background(), testWallet(), testArgs())
	require.ErrorIs(t, err, ErrNotConnected)
	require.Equal(t, int32(0), calls.Load())
}

func TestSubmitter_CancelWhileQueued(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	lcdClient := mockLcd("0", okResult)
	lcdClient.GenerateTxFunc = func(ctx context.Context, path string, body interface{}) (*types.StdTx, error) {
		close(started)
		<-release
		return &types.StdTx{}, nil
	}
	submitter := newTestSubmitter(lcdClient)

	done := make(chan error, 1)
	go func() {
		_, err := submitter.QueueTx(context.Background(), testWallet(), testArgs())
		done <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := submitter.QueueTx(ctx, testWallet(), testArgs())
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	close(release)
	require.NoError(t, <-done)
	require.Equal(t, "1", submitter.Nonce("cosmos1abc"))
}

func TestSubmitter_SignIn(t *testing.T) {
	submitter := newTestSubmitter(mockLcd("9", okResult))

	account, err := submitter.SignIn(context.Background(), testWallet())
	require.NoError(t, err)
	require.Equal(t, "7", account.AccountNumber)
	require.Equal(t, "9", submitter.Nonce("cosmos1abc"))
}

func TestNormalizeErrorMessage(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"insufficient funds", "insufficient funds"},
		{`{"message":"signature verification failed"}`, "signature verification failed"},
		{`{"error":"invalid sequence"}`, "invalid sequence"},
		{`{"error":"{\"codespace\":\"sdk\",\"code\":4,\"message\":\"unauthorized\"}"}`, "unauthorized"},
		{`broadcast failed: {"message":"out of gas"}`, "out of gas"},
		{`[{"msg_index":0,"success":false,"log":"{\"message\":\"insufficient fee\"}"}]`, "insufficient fee"},
		{"", "Error sending transaction"},
		{`{"code":3}`, `{"code":3}`},
	}

	for _, tc := range tests {
		require.Equal(t, tc.expected, NormalizeErrorMessage(tc.raw), tc.raw)
	}
}
