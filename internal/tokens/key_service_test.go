package tokens

import (
	"context"
	"sync"
	"testing"

	"github.com/khanghh/krealm/internal/testutil"
	"github.com/khanghh/krealm/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeyService(t *testing.T, repo KeyRepository) *KeyService {
	svc, err := NewKeyService(repo, 16)
	require.NoError(t, err)
	return svc
}

// TestGetOrGenerateKeyConcurrent races many callers on a fresh realm and
// checks they all receive the single stored key.
func TestGetOrGenerateKeyConcurrent(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := NewKeyRepository(db)
	svc := newTestKeyService(t, repo)

	const callers = 16
	kids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kp, err := svc.GetOrGenerateKey(ctx, "realm-1")
			if assert.NoError(t, err) {
				kids[i] = kp.KeyID
			}
		}()
	}
	wg.Wait()

	var count int64
	require.NoError(t, db.Model(&model.JwtKey{}).Where("realm_id = ?", "realm-1").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	stored, err := repo.GetByRealm(ctx, "realm-1")
	require.NoError(t, err)
	for _, kid := range kids {
		assert.Equal(t, stored.KeyID, kid)
	}
}

// staleKeyRepository reports no key on the first lookup, as seen by an
// instance that lost the insert race to another process.
type staleKeyRepository struct {
	KeyRepository
	missed bool
}

func (r *staleKeyRepository) GetByRealm(ctx context.Context, realmID string) (*model.JwtKey, error) {
	if !r.missed {
		r.missed = true
		return nil, ErrKeyNotFound
	}
	return r.KeyRepository.GetByRealm(ctx, realmID)
}

func TestGetOrGenerateKeyDuplicateInsertReturnsWinner(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := NewKeyRepository(db)

	winner, err := newTestKeyService(t, repo).GetOrGenerateKey(ctx, "realm-1")
	require.NoError(t, err)

	loser := newTestKeyService(t, &staleKeyRepository{KeyRepository: repo})
	kp, err := loser.GetOrGenerateKey(ctx, "realm-1")
	require.NoError(t, err)
	assert.Equal(t, winner.KeyID, kp.KeyID)
	assert.True(t, winner.PublicKey.Equal(kp.PublicKey))
}

// cancelAwareKeyRepository fails lookups made with a cancelled context.
type cancelAwareKeyRepository struct {
	KeyRepository
	lookups int
}

func (r *cancelAwareKeyRepository) GetByRealm(ctx context.Context, realmID string) (*model.JwtKey, error) {
	r.lookups++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.KeyRepository.GetByRealm(ctx, realmID)
}

func TestGetOrGenerateKeyIgnoresCallerCancel(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := &cancelAwareKeyRepository{KeyRepository: NewKeyRepository(db)}
	svc := newTestKeyService(t, repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	kp, err := svc.GetOrGenerateKey(ctx, "realm-1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lookups)

	cached, err := svc.GetOrGenerateKey(context.Background(), "realm-1")
	require.NoError(t, err)
	assert.Equal(t, kp.KeyID, cached.KeyID)
	assert.Equal(t, 1, repo.lookups)
}

func TestKeysArePerRealm(t *testing.T) {
	ctx := context.Background()
	svc := newTestKeyService(t, NewKeyRepository(testutil.NewTestDB(t)))

	a, err := svc.GetOrGenerateKey(ctx, "realm-a")
	require.NoError(t, err)
	b, err := svc.GetOrGenerateKey(ctx, "realm-b")
	require.NoError(t, err)
	assert.NotEqual(t, a.KeyID, b.KeyID)
}

func TestJWKS(t *testing.T) {
	ctx := context.Background()
	svc := newTestKeyService(t, NewKeyRepository(testutil.NewTestDB(t)))

	set, err := svc.JWKS(ctx, "realm-1")
	require.NoError(t, err)
	require.Len(t, set.Keys, 1)

	kp, err := svc.GetOrGenerateKey(ctx, "realm-1")
	require.NoError(t, err)
	jwk := set.Keys[0]
	assert.Equal(t, kp.KeyID, jwk.KeyID)
	assert.Equal(t, "RS256", jwk.Algorithm)
	assert.Equal(t, "sig", jwk.Use)
	assert.True(t, jwk.IsPublic())

	data, err := jwk.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kty":"RSA"`)
	assert.Contains(t, string(data), `"e":"AQAB"`)
}
