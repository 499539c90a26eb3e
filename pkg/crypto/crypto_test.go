package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	sealed, err := Encrypt("app-password", "secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, prefix))
	assert.NotContains(t, sealed, "app-password")

	plain, err := Decrypt(sealed, "secret")
	require.NoError(t, err)
	assert.Equal(t, "app-password", plain)

	again, err := Encrypt("app-password", "secret")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again)
}

func TestDecryptWrongKey(t *testing.T) {
	sealed, err := Encrypt("token", "one")
	require.NoError(t, err)
	_, err = Decrypt(sealed, "two")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = Decrypt(prefix+"%%%", "one")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestPlaintextPassthrough(t *testing.T) {
	plain, err := Decrypt("legacy-token", "secret")
	require.NoError(t, err)
	assert.Equal(t, "legacy-token", plain)

	empty, err := Encrypt("", "secret")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
