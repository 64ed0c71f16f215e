package credentials

import (
	"context"
	"strings"
	"testing"

	"github.com/khanghh/krealm/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestArgon2HashAndVerify(t *testing.T) {
	ctx := context.Background()
	hasher := NewArgon2Hasher(testParams, 2)

	result, err := hasher.HashPassword(ctx, "my_password")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Hash, "$argon2id$v=19$m=1024,t=1,p=1$"))
	assert.NotEmpty(t, result.Salt)
	assert.Equal(t, "argon2id", result.CredentialData.Algorithm)
	assert.Equal(t, uint32(1), result.CredentialData.HashIterations)

	ok, err := hasher.VerifyPassword(ctx, "my_password", result.Hash, result.Salt, result.CredentialData)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.VerifyPassword(ctx, "wrong_password", result.Hash, result.Salt, result.CredentialData)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestArgon2SaltsDiffer ensures two hashes of the same password never collide.
func TestArgon2SaltsDiffer(t *testing.T) {
	hasher := NewArgon2Hasher(testParams, 1)
	a, err := hasher.HashPassword(context.Background(), "same")
	require.NoError(t, err)
	b, err := hasher.HashPassword(context.Background(), "same")
	require.NoError(t, err)
	assert.NotEqual(t, a.Hash, b.Hash)
	assert.NotEqual(t, a.Salt, b.Salt)
}

func TestArgon2VerifyMalformedHash(t *testing.T) {
	hasher := NewArgon2Hasher(testParams, 1)
	for _, hash := range []string{"", "plain", "$argon2id$v=19$m=x$abc$def", "$bcrypt$v=19$m=1,t=1,p=1$YQ$YQ"} {
		_, err := hasher.VerifyPassword(context.Background(), "pw", hash, "", model.CredentialData{})
		assert.ErrorIs(t, err, ErrVerification, "hash=%q", hash)
	}
}

func TestArgon2VerifyRejectsZeroParameters(t *testing.T) {
	ctx := context.Background()
	hasher := NewArgon2Hasher(testParams, 1)
	result, err := hasher.HashPassword(ctx, "pw")
	require.NoError(t, err)

	valid := "m=1024,t=1,p=1"
	for _, invalid := range []string{"m=1024,t=1,p=0", "m=1024,t=0,p=1", "m=0,t=1,p=1"} {
		hash := strings.Replace(result.Hash, valid, invalid, 1)
		require.NotEqual(t, result.Hash, hash)
		assert.NotPanics(t, func() {
			_, err = hasher.VerifyPassword(ctx, "pw", hash, result.Salt, result.CredentialData)
		})
		assert.ErrorIs(t, err, ErrVerification, "params=%q", invalid)
	}
}

func TestArgon2VerifyUsesStoredParameters(t *testing.T) {
	ctx := context.Background()
	old := NewArgon2Hasher(testParams, 1)
	result, err := old.HashPassword(ctx, "secret")
	require.NoError(t, err)

	stronger := testParams
	stronger.Iterations = 2
	ok, err := NewArgon2Hasher(stronger, 1).VerifyPassword(ctx, "secret", result.Hash, result.Salt, result.CredentialData)
	require.NoError(t, err)
	assert.True(t, ok)
}
