package config

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeEncryptionSecret_HexAndBase64(t *testing.T) {
	hexKey := "00112233445566778899aabbccddeeff"
	key, err := DecodeEncryptionSecret(hexKey)
	require.NoError(t, err)
	require.Len(t, key, 16)

	raw := []byte("0123456789abcdef0123456789abcdef")
	b64 := base64.StdEncoding.EncodeToString(raw)
	key, err = DecodeEncryptionSecret(b64)
	require.NoError(t, err)
	require.Equal(t, raw, key)
}

func TestDecodeEncryptionSecret_Passphrase(t *testing.T) {
	key, err := DecodeEncryptionSecret("not a raw key at all")
	require.NoError(t, err)
	require.Len(t, key, 32)

	// Derivation is deterministic.
	again, err := DecodeEncryptionSecret("not a raw key at all")
	require.NoError(t, err)
	require.Equal(t, key, again)

	other, err := DecodeEncryptionSecret("a different passphrase")
	require.NoError(t, err)
	require.NotEqual(t, key, other)
}

func TestDecodeEncryptionSecret_Empty(t *testing.T) {
	_, err := DecodeEncryptionSecret("")
	require.Error(t, err)
	_, err = DecodeEncryptionSecret("   ")
	require.Error(t, err)
}

func TestDecodeEncryptionSecretsCSV(t *testing.T) {
	keys, err := DecodeEncryptionSecretsCSV("primary secret, legacy secret, ")
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.NotEqual(t, keys[0], keys[1])
}
