package core

import (
	"encoding/json"
	"errors"
	"strings"
)

const errSendingTransaction = "Error sending transaction"

var ErrNotConnected = errors.New("currently not connected to a secure node, try again once a connection is established")

// TxError is a transaction the node refused, either at generation, at check_tx or at
// deliver_tx. The nonce of the session is not advanced.
type TxError struct {
	Code    uint32
	Message string
}

func NewTxError(code uint32, raw string) error {
	return &TxError{
		Code:    code,
		Message: NormalizeErrorMessage(raw),
	}
}

func (e *TxError) Error() string {
	return e.Message
}

// NormalizeErrorMessage extracts the human readable message from what a node or the LCD
// returned. It handles a bare string, a JSON object with `message` or `error`, a
// `prefix: {json}` string and the per message log array of check_tx.
func NormalizeErrorMessage(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errSendingTransaction
	}

	if msg, ok := messageFromJSON(raw); ok {
		return msg
	}

	if idx := strings.Index(raw, "{"); idx > 0 {
		if msg, ok := messageFromJSON(raw[idx:]); ok {
			return msg
		}
	}

	return raw
}

func messageFromJSON(raw string) (string, bool) {
	switch raw[0] {
	case '{':
		obj := make(map[string]interface{})
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return "", false
		}
		if msg, ok := obj["message"].(string); ok && msg != "" {
			return msg, true
		}
		if msg, ok := obj["error"].(string); ok && msg != "" {
			return NormalizeErrorMessage(msg), true
		}
		if msg, ok := obj["log"].(string); ok && msg != "" {
			return NormalizeErrorMessage(msg), true
		}

	case '[':
		logs := make([]map[string]interface{}, 0)
		if err := json.Unmarshal([]byte(raw), &logs); err != nil {
			return "", false
		}
		for _, l := range logs {
			if msg, ok := l["log"].(string); ok && msg != "" {
				return NormalizeErrorMessage(msg), true
			}
		}
	}

	return "", false
}
