package security

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/muhamadhazim/fishit-marketplace/pkg/config"
)

// ErrInvalidHash signals a malformed PBKDF2 hash string.
var ErrInvalidHash = fmt.Errorf("invalid pbkdf2 hash")

// hashParams captures the PBKDF2-SHA512 parameters embedded in each hash string.
type hashParams struct {
	Iterations int
	SaltLen    int
	KeyLen     int
}

// HashPassword returns "salthex:iterations:derivedhex" for the provided password.
func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	params := paramsFromConfig(cfg)
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, params.Iterations, params.KeyLen, sha512.New)
	return fmt.Sprintf("%s:%d:%s", hex.EncodeToString(salt), params.Iterations, hex.EncodeToString(key)), nil
}

// VerifyPassword returns true when the password matches the encoded hash.
func VerifyPassword(password, encoded string) (bool, error) {
	iterations, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	computed := pbkdf2.Key([]byte(password), salt, iterations, len(key), sha512.New)
	return subtle.ConstantTimeCompare(key, computed) == 1, nil
}

func paramsFromConfig(cfg config.PasswordConfig) hashParams {
	return hashParams{
		Iterations: clampInt(cfg.Iterations, 1000, 10_000_000),
		SaltLen:    clampInt(cfg.SaltLen, 8, 64),
		KeyLen:     clampInt(cfg.KeyLen, 16, 128),
	}
}

func decodeHash(encoded string) (int, []byte, []byte, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return 0, nil, nil, ErrInvalidHash
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil || len(salt) == 0 {
		return 0, nil, nil, ErrInvalidHash
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return 0, nil, nil, ErrInvalidHash
	}
	key, err := hex.DecodeString(parts[2])
	if err != nil || len(key) == 0 {
		return 0, nil, nil, ErrInvalidHash
	}
	return iterations, salt, key, nil
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
