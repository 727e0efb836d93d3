package wallet

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarb/arbengine/internal/types"
)

func writeKeypairFile(t *testing.T, dir string, key solana.PrivateKey) string {
	t.Helper()
	path := filepath.Join(dir, "wallet.json")
	data, err := json.Marshal([]byte(key))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadValidKeypair(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	path := writeKeypairFile(t, t.TempDir(), key)

	w, err := Load(path)
	require.NoError(t, err)
	assert.True(t, w.PublicKey().Equals(key.PublicKey()))
}

func TestLoadMissingFileIsFatalInit(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.Error(t, err)

	var fatal *types.FatalInit
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, types.FatalMissingWallet, fatal.Kind)
}

func TestLoadMalformedFileIsFatalInit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wallet.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := Load(path)
	require.Error(t, err)

	var fatal *types.FatalInit
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, types.FatalMissingWallet, fatal.Kind)
}

func TestLoadWrongLengthIsFatalInit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wallet.json")
	data, err := json.Marshal([]byte{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = Load(path)
	require.Error(t, err)

	var fatal *types.FatalInit
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, types.FatalMissingWallet, fatal.Kind)
}
