package tokens

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-jose/go-jose/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/khanghh/krealm/model"
	"github.com/khanghh/krealm/params"
	"golang.org/x/sync/singleflight"
)

// KeyPair is the parsed signing key of a realm.
type KeyPair struct {
	RealmID    string
	KeyID      string
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
}

type KeyService struct {
	keyRepo KeyRepository
	cache   *lru.Cache[string, *KeyPair]
	group   singleflight.Group
}

// GetOrGenerateKey returns the realm's key pair, generating and storing one on first use.
// Concurrent callers for the same realm always observe the same key.
func (s *KeyService) GetOrGenerateKey(ctx context.Context, realmID string) (*KeyPair, error) {
	if kp, ok := s.cache.Get(realmID); ok {
		return kp, nil
	}
	// the flight is shared with every waiting caller
	ctx = context.WithoutCancel(ctx)
	val, err, _ := s.group.Do(realmID, func() (interface{}, error) {
		if kp, ok := s.cache.Get(realmID); ok {
			return kp, nil
		}
		row, err := s.keyRepo.GetByRealm(ctx, realmID)
		if errors.Is(err, ErrKeyNotFound) {
			row, err = s.generate(ctx, realmID)
		}
		if err != nil {
			return nil, err
		}
		kp, err := parseKeyPair(row)
		if err != nil {
			return nil, err
		}
		s.cache.Add(realmID, kp)
		return kp, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*KeyPair), nil
}

func (s *KeyService) generate(ctx context.Context, realmID string) (*model.JwtKey, error) {
	row, err := generateKeyRow(realmID)
	if err != nil {
		return nil, err
	}
	err = s.keyRepo.Create(ctx, row)
	if errors.Is(err, ErrKeyAlreadyExists) {
		// another instance stored its key first
		return s.keyRepo.GetByRealm(ctx, realmID)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("Generated realm signing key", "realm_id", realmID, "kid", row.KeyID)
	return row, nil
}

// JWKS exports the public half of the realm key.
func (s *KeyService) JWKS(ctx context.Context, realmID string) (*jose.JSONWebKeySet, error) {
	kp, err := s.GetOrGenerateKey(ctx, realmID)
	if err != nil {
		return nil, err
	}
	return &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{{
			Key:       kp.PublicKey,
			KeyID:     kp.KeyID,
			Algorithm: params.DefaultSigningAlgorithm,
			Use:       "sig",
		}},
	}, nil
}

// Forget drops the cached key of a deleted realm.
func (s *KeyService) Forget(realmID string) {
	s.cache.Remove(realmID)
}

func generateKeyRow(realmID string) (*model.JwtKey, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, params.RSAKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	kid, err := deriveKeyID(&privateKey.PublicKey)
	if err != nil {
		return nil, err
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, err
	}
	return &model.JwtKey{
		RealmID:    realmID,
		KeyID:      kid,
		PrivateKey: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})),
		PublicKey:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})),
	}, nil
}

// deriveKeyID computes the RFC 7638 thumbprint of the public key.
func deriveKeyID(pub *rsa.PublicKey) (string, error) {
	thumbprint, err := (&jose.JSONWebKey{Key: pub}).Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("compute key thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(thumbprint), nil
}

func parseKeyPair(row *model.JwtKey) (*KeyPair, error) {
	block, _ := pem.Decode([]byte(row.PrivateKey))
	if block == nil {
		return nil, ErrInvalidKey
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	privateKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrInvalidKey
	}
	block, _ = pem.Decode([]byte(row.PublicKey))
	if block == nil {
		return nil, ErrInvalidKey
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	publicKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, ErrInvalidKey
	}
	return &KeyPair{
		RealmID:    row.RealmID,
		KeyID:      row.KeyID,
		PrivateKey: privateKey,
		PublicKey:  publicKey,
	}, nil
}

func NewKeyService(keyRepo KeyRepository, cacheSize int) (*KeyService, error) {
	cache, err := lru.New[string, *KeyPair](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create key cache: %w", err)
	}
	return &KeyService{
		keyRepo: keyRepo,
		cache:   cache,
	}, nil
}
