package types

type ConnectionEventKind int

const (
	EventConnected ConnectionEventKind = iota
	EventDisconnected
	EventNodeHalted
	EventNodeIncompatible
	EventNoNodesAvailable
)

func (k ConnectionEventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventNodeHalted:
		return "node-halted"
	case EventNodeIncompatible:
		return "node-incompatible"
	case EventNoNodesAvailable:
		return "no-nodes-available"
	}

	return "unknown"
}

// ConnectionEvent is published by the connection manager whenever the state of the node
// connection changes in a way the UI layer should know about.
type ConnectionEvent struct {
	Kind ConnectionEventKind
	Node string
	Err  error
}

// TxEvent is a transaction touching one of the watched wallet addresses.
type TxEvent struct {
	Hash    string
	Height  int64
	Address string
	Code    uint32
	Log     string
}
