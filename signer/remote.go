package signer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sisu-network/dwallet/types"
	"github.com/ybbus/jsonrpc/v3"
)

const SignTimeout = 30 * time.Second

// RemoteSigner asks an external keystore process to sign transactions. The keystore owns the
// keys, this process only ever sees signatures.
type RemoteSigner struct {
	client jsonrpc.RPCClient
}

func NewRemoteSigner(url string) *RemoteSigner {
	return &RemoteSigner{
		client: jsonrpc.NewClientWithOpts(url, &jsonrpc.RPCClientOpts{
			HTTPClient:         &http.Client{Timeout: SignTimeout},
			AllowUnknownFields: true,
		}),
	}
}

type signRequest struct {
	Tx     *types.StdTx    `json:"tx"`
	Wallet *types.Wallet   `json:"wallet"`
	Meta   *types.SignMeta `json:"meta"`
}

func (s *RemoteSigner) Sign(ctx context.Context, tx *types.StdTx, wallet *types.Wallet, meta *types.SignMeta) (*types.Signature, error) {
	signature := &types.Signature{}
	err := s.client.CallFor(ctx, signature, "keystore_sign", &signRequest{
		Tx:     tx,
		Wallet: wallet,
		Meta:   meta,
	})
	if err != nil {
		return nil, fmt.Errorf("keystore cannot sign for %s: %w", wallet.Address, err)
	}

	if signature.Signature == "" {
		return nil, fmt.Errorf("keystore returned an empty signature for %s", wallet.Address)
	}

	return signature, nil
}
