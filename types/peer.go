package types

type PeerState string

const (
	PeerAvailable    PeerState = "available"
	PeerDown         PeerState = "down"
	PeerIncompatible PeerState = "incompatible"
)

// Peer is a node address the wallet may connect to. The host is the identity of the peer.
type Peer struct {
	Host  string    `json:"host"`
	State PeerState `json:"state"`
}

// NetInfoResponse is the body returned by a node's /net_info endpoint.
type NetInfoResponse struct {
	Result struct {
		Peers []NetInfoPeer `json:"peers"`
	} `json:"result"`
}

type NetInfoPeer struct {
	NodeInfo struct {
		ListenAddr string `json:"listen_addr"`
	} `json:"node_info"`
}
