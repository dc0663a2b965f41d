package credential

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// Vault is a small key/value local storage persisted as JSON. When a
// passphrase is set, values are sealed with a scrypt-derived
// chacha20poly1305 key.
type Vault struct {
	path       string
	passphrase string
	mu         sync.Mutex
}

// NewVault returns a Vault stored at path.
func NewVault(path, passphrase string) *Vault {
	return &Vault{path: path, passphrase: passphrase}
}

type entry struct {
	Plain string `json:"plain,omitempty"`
	Salt  []byte `json:"salt,omitempty"`
	Nonce []byte `json:"nonce,omitempty"`
	CT    []byte `json:"ct,omitempty"`
}

// Set stores value under key.
func (v *Vault) Set(key, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	m := make(map[string]entry)
	if err := readJSON(v.path, &m); err != nil {
		return err
	}
	e, err := v.seal(value)
	if err != nil {
		return err
	}
	m[key] = e
	return writeJSON(v.path, m, 0o600)
}

// Get returns the value stored under key.
func (v *Vault) Get(key string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	m := make(map[string]entry)
	if err := readJSON(v.path, &m); err != nil {
		return "", err
	}
	e, ok := m[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v.open(e)
}

// Delete removes key. Deleting a missing key is not an error.
func (v *Vault) Delete(key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	m := make(map[string]entry)
	if err := readJSON(v.path, &m); err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return writeJSON(v.path, m, 0o600)
}

// SaveKey stores a parsed credential under CredentialKey.
func (v *Vault) SaveKey(k *Key) error {
	return v.Set(CredentialKey, k.Hex())
}

// LoadKey reads and parses the credential stored under CredentialKey.
func (v *Vault) LoadKey() (*Key, error) {
	raw, err := v.Get(CredentialKey)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func scryptParams() (N, r, p int) { return 1 << 15, 8, 1 }

func (v *Vault) deriveKey(salt []byte) ([]byte, error) {
	N, r, p := scryptParams()
	return scrypt.Key([]byte(v.passphrase), salt, N, r, p, chacha20poly1305.KeySize)
}

func (v *Vault) seal(value string) (entry, error) {
	if v.passphrase == "" {
		return entry{Plain: value}, nil
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return entry{}, err
	}
	key, err := v.deriveKey(salt)
	if err != nil {
		return entry{}, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return entry{}, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return entry{}, err
	}
	return entry{
		Salt:  salt,
		Nonce: nonce,
		CT:    aead.Seal(nil, nonce, []byte(value), salt),
	}, nil
}

func (v *Vault) open(e entry) (string, error) {
	if e.CT == nil {
		return e.Plain, nil
	}
	if v.passphrase == "" {
		return "", errors.New("vault entry is encrypted but no passphrase is configured")
	}
	key, err := v.deriveKey(e.Salt)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", err
	}
	pt, err := aead.Open(nil, e.Nonce, e.CT, e.Salt)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt vault entry: %w", err)
	}
	return string(pt), nil
}

// readJSON best-effort reads path into out; a missing file is not an error.
func readJSON(path string, out any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// writeJSON writes JSON via a temp file then rename.
func writeJSON(path string, v any, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, mode); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
