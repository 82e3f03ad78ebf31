package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHostOf(t *testing.T) {
	require.Equal(t, "1.2.3.4", HostOf("tcp://1.2.3.4:26656"))
	require.Equal(t, "1.2.3.4", HostOf("1.2.3.4:26656"))
	require.Equal(t, "node.example.com", HostOf("node.example.com"))
	require.Equal(t, "node.example.com", HostOf("https://node.example.com/"))
}

func TestRpcUrls(t *testing.T) {
	h, ws := RpcUrls("10.0.0.1:26657")
	require.Equal(t, "http://10.0.0.1:26657", h)
	require.Equal(t, "ws://10.0.0.1:26657/websocket", ws)

	h, ws = RpcUrls("https://rpc.example.com/")
	require.Equal(t, "https://rpc.example.com", h)
	require.Equal(t, "wss://rpc.example.com/websocket", ws)

	h, ws = RpcUrls("ws://10.0.0.1:26657/websocket")
	require.Equal(t, "http://10.0.0.1:26657", h)
	require.Equal(t, "ws://10.0.0.1:26657/websocket", ws)
}

func TestTxHash(t *testing.T) {
	require.Equal(t, "E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855", TxHash(nil))
}
