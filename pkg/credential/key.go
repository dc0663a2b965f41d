// Package credential handles the private key that authorizes land
// registration transactions and its local storage.
package credential

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// CredentialKey is the local-storage key the private key is kept under.
const CredentialKey = "key"

var (
	ErrInvalidKey = errors.New("invalid private key")
	ErrNotFound   = errors.New("credential not found")
)

// Key is a parsed private key and the account it controls.
type Key struct {
	Private *ecdsa.PrivateKey
	Address string
}

// Parse decodes a hex private key, with or without a 0x prefix.
func Parse(hexKey string) (*Key, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if len(hexKey) != 64 {
		return nil, fmt.Errorf("%w: expected 64 hex characters, got %d", ErrInvalidKey, len(hexKey))
	}
	priv, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &Key{
		Private: priv,
		Address: crypto.PubkeyToAddress(priv.PublicKey).Hex(),
	}, nil
}

// Hex returns the key encoded without a prefix.
func (k *Key) Hex() string {
	return fmt.Sprintf("%x", crypto.FromECDSA(k.Private))
}

// Accounts returns the accounts this credential resolves to.
func (k *Key) Accounts() []string {
	return []string{k.Address}
}
