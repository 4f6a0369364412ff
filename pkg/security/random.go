package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// NewToken returns a hex string carrying n random bytes.
func NewToken(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token length must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// RandomInt returns a uniform integer in [min, max].
func RandomInt(min, max int) (int, error) {
	if max < min {
		return 0, fmt.Errorf("invalid range %d..%d", min, max)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min+1)))
	if err != nil {
		return 0, fmt.Errorf("read random: %w", err)
	}
	return min + int(n.Int64()), nil
}

const alnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomString returns an uppercase alphanumeric string of the given length.
func RandomString(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	out := make([]byte, length)
	for i := range out {
		idx, err := RandomInt(0, len(alnum)-1)
		if err != nil {
			return "", err
		}
		out[i] = alnum[idx]
	}
	return string(out), nil
}
