package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// TxHash returns the Tendermint hash of a raw transaction, upper case hex of its sha256.
func TxHash(bz []byte) string {
	sum := sha256.Sum256(bz)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
