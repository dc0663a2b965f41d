package credential

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known development key (ganache / hardhat account #0).
const devKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
const devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{name: "plain hex", in: devKey},
		{name: "0x prefix", in: "0x" + devKey},
		{name: "surrounding space", in: "  " + devKey + "\n"},
		{name: "too short", in: "abc123", wantErr: true},
		{name: "not hex", in: strings.Repeat("z", 64), wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := Parse(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, devAddress, k.Address)
			assert.Equal(t, []string{devAddress}, k.Accounts())
			assert.Equal(t, devKey, k.Hex())
		})
	}
}

func TestVaultPlain(t *testing.T) {
	v := NewVault(filepath.Join(t.TempDir(), "vault.json"), "")

	_, err := v.Get(CredentialKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, v.Set(CredentialKey, devKey))
	got, err := v.Get(CredentialKey)
	require.NoError(t, err)
	assert.Equal(t, devKey, got)

	require.NoError(t, v.Delete(CredentialKey))
	require.NoError(t, v.Delete(CredentialKey))
	_, err = v.Get(CredentialKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVaultEncrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vault.json")
	v := NewVault(path, "correct horse")

	k, err := Parse(devKey)
	require.NoError(t, err)
	require.NoError(t, v.SaveKey(k))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), devKey)

	loaded, err := v.LoadKey()
	require.NoError(t, err)
	assert.Equal(t, devAddress, loaded.Address)

	wrong := NewVault(path, "battery staple")
	_, err = wrong.Get(CredentialKey)
	assert.Error(t, err)

	none := NewVault(path, "")
	_, err = none.Get(CredentialKey)
	assert.Error(t, err)
}
