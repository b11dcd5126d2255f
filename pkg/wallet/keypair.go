// Package wallet loads the server-held signing key.
package wallet

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrInvalidSecret is returned for any secret that does not decode to a valid
// ed25519 keypair.
var ErrInvalidSecret = errors.New("secret is not a valid JSON array or base58 string")

// ParseSecret accepts either a JSON array of the 64 secret-key bytes
// (solana-keygen output) or the same bytes base58 encoded.
//
// Returned errors wrap ErrInvalidSecret and never contain key material.
func ParseSecret(raw string) (solana.PrivateKey, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty secret", ErrInvalidSecret)
	}

	var (
		secret []byte
		err    error
	)
	if strings.HasPrefix(cleaned, "[") {
		secret, err = decodeByteArray(cleaned)
	} else {
		secret, err = base58.Decode(cleaned)
		if err != nil {
			err = errors.New("malformed base58")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}

	if err := checkKeypair(secret); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return solana.PrivateKey(secret), nil
}

func decodeByteArray(s string) ([]byte, error) {
	var values []int
	if err := json.Unmarshal([]byte(s), &values); err != nil {
		return nil, errors.New("malformed JSON array")
	}
	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("element %d out of byte range", i)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// checkKeypair verifies the trailing public half matches the seed.
func checkKeypair(secret []byte) error {
	if len(secret) != ed25519.PrivateKeySize {
		return fmt.Errorf("expected %d bytes, got %d", ed25519.PrivateKeySize, len(secret))
	}
	derived := ed25519.NewKeyFromSeed(secret[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], secret[ed25519.SeedSize:]) {
		return errors.New("public key does not match seed")
	}
	return nil
}

// ResolveOwner picks the address the swap is built for: the caller's value
// when given, otherwise the key's own address. The caller's value is not
// checked against the key.
func ResolveOwner(key solana.PrivateKey, requested string) string {
	if strings.TrimSpace(requested) != "" {
		return requested
	}
	return key.PublicKey().String()
}
