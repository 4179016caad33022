package apikey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	key, err := Generate()
	require.NoError(t, err)
	assert.True(t, len(key) > len(Prefix))
	assert.Contains(t, key, Prefix)

	hash, err := Hash(key)
	require.NoError(t, err)

	assert.True(t, Verify(key, hash))
	assert.False(t, Verify(key+"x", hash))
}

func TestFingerprintStableAndShort(t *testing.T) {
	key, err := Generate()
	require.NoError(t, err)

	fp := Fingerprint(key)
	assert.Len(t, fp, 16)
	assert.Equal(t, fp, Fingerprint(key))

	other, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, fp, Fingerprint(other))
}

func TestExtractFromHeader(t *testing.T) {
	key, err := Generate()
	require.NoError(t, err)

	assert.Equal(t, key, ExtractFromHeader("Bearer "+key))
	assert.Equal(t, key, ExtractFromHeader("bearer "+key))
	assert.Equal(t, "", ExtractFromHeader(""))
	assert.Equal(t, "", ExtractFromHeader(key))
	assert.Equal(t, "", ExtractFromHeader("Basic "+key))
	// expert JWTs are bearer tokens without the key prefix
	assert.Equal(t, "", ExtractFromHeader("Bearer eyJhbGciOiJIUzI1NiJ9.x.y"))
}

func TestGenerateVerificationCode(t *testing.T) {
	code, err := GenerateVerificationCode()
	require.NoError(t, err)
	assert.Len(t, code, 8)
	assert.Regexp(t, "^[0-9A-F]{8}$", code)
}
