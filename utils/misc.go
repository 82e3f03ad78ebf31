package utils

import (
	"net"
	"strings"
)

// HostOf strips an optional scheme and port from a node address, "tcp://1.2.3.4:26656"
// becomes "1.2.3.4".
func HostOf(addr string) string {
	if i := strings.Index(addr, "://"); i >= 0 {
		addr = addr[i+3:]
	}
	addr = strings.TrimSuffix(addr, "/")

	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}

	return addr
}

// RpcUrls returns the http and websocket endpoints for a node address. Addresses without a
// scheme are plain http.
func RpcUrls(addr string) (string, string) {
	addr = strings.TrimSuffix(addr, "/")

	switch {
	case strings.HasPrefix(addr, "https://"):
		return addr, "wss://" + strings.TrimPrefix(addr, "https://") + "/websocket"
	case strings.HasPrefix(addr, "http://"):
		return addr, "ws://" + strings.TrimPrefix(addr, "http://") + "/websocket"
	case strings.HasPrefix(addr, "wss://"):
		return "https://" + strings.TrimSuffix(strings.TrimPrefix(addr, "wss://"), "/websocket"), addr
	case strings.HasPrefix(addr, "ws://"):
		return "http://" + strings.TrimSuffix(strings.TrimPrefix(addr, "ws://"), "/websocket"), addr
	}

	return "http://" + addr, "ws://" + addr + "/websocket"
}
