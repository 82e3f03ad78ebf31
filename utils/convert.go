package utils

import (
	"fmt"
	"math/big"
)

func parseNonce(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}

	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("Invalid nonce %q", s)
	}

	return n, nil
}

// IncrementNonce adds one to a decimal nonce string. An empty nonce counts as zero.
func IncrementNonce(nonce string) (string, error) {
	n, err := parseNonce(nonce)
	if err != nil {
		return "", err
	}

	return n.Add(n, big.NewInt(1)).String(), nil
}

// MaxNonce returns the larger of two decimal nonce strings.
func MaxNonce(a, b string) (string, error) {
	x, err := parseNonce(a)
	if err != nil {
		return "", err
	}
	y, err := parseNonce(b)
	if err != nil {
		return "", err
	}

	if x.Cmp(y) >= 0 {
		return x.String(), nil
	}
	return y.String(), nil
}
