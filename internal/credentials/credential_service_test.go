package credentials

import (
	"context"
	"testing"

	"github.com/khanghh/krealm/internal/testutil"
	"github.com/khanghh/krealm/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCredentialService(t *testing.T) (*CredentialService, CredentialRepository) {
	db := testutil.NewTestDB(t)
	repo := NewCredentialRepository(db)
	return NewCredentialService(NewArgon2Hasher(testParams, 1), repo), repo
}

// TestResetPasswordReplacesCredential verifies the password credential stays
// a singleton and only the latest password verifies.
func TestResetPasswordReplacesCredential(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestCredentialService(t)

	require.NoError(t, svc.ResetPassword(ctx, "user-1", "first", false))
	require.NoError(t, svc.ResetPassword(ctx, "user-1", "second", true))

	creds, err := repo.FindByUserAndType(ctx, "user-1", model.CredentialTypePassword)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.True(t, creds[0].CredentialData.Data().Temporary)

	ok, err := svc.VerifyPassword(ctx, "user-1", "first")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.VerifyPassword(ctx, "user-1", "second")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyPasswordWithoutCredential(t *testing.T) {
	svc, _ := newTestCredentialService(t)
	_, err := svc.VerifyPassword(context.Background(), "nobody", "pw")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestResetPasswordRejectsEmpty(t *testing.T) {
	svc, _ := newTestCredentialService(t)
	assert.ErrorIs(t, svc.ResetPassword(context.Background(), "user-1", "", false), ErrPasswordEmpty)
}

func TestDeleteCredential(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestCredentialService(t)
	require.NoError(t, svc.ResetPassword(ctx, "user-1", "pw", false))

	creds, err := svc.ListCredentials(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, creds, 1)

	assert.ErrorIs(t, svc.DeleteCredential(ctx, "user-2", creds[0].ID), ErrCredentialNotFound)
	require.NoError(t, svc.DeleteCredential(ctx, "user-1", creds[0].ID))
	assert.ErrorIs(t, svc.DeleteCredential(ctx, "user-1", creds[0].ID), ErrCredentialNotFound)

	has, err := svc.HasCredential(ctx, "user-1", model.CredentialTypePassword)
	require.NoError(t, err)
	assert.False(t, has)
}
