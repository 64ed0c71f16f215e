package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/khanghh/krealm/model"
	"github.com/khanghh/krealm/params"
)

type Options struct {
	BaseURL         string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type IssueRequest struct {
	Realm    *model.Realm
	User     *model.User
	ClientID string
	// ServiceAccount marks tokens issued through client_credentials.
	ServiceAccount bool
}

type TokenService struct {
	opts        Options
	keys        *KeyService
	refreshRepo RefreshTokenRepository
	now         func() time.Time
}

func (s *TokenService) Issuer(realmName string) string {
	return IssuerFor(s.opts.BaseURL, realmName)
}

// GenerateToken signs the claims with the realm key using RS256.
func (s *TokenService) GenerateToken(ctx context.Context, claims *Claims, realmID string) (string, error) {
	kp, err := s.keys.GetOrGenerateKey(ctx, realmID)
	if err != nil {
		return "", err
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kp.KeyID
	return token.SignedString(kp.PrivateKey)
}

// VerifyToken checks signature, expiry and type of a token issued by the realm.
func (s *TokenService) VerifyToken(ctx context.Context, tokenStr string, realm *model.Realm, expected TokenType) (*Claims, error) {
	kp, err := s.keys.GetOrGenerateKey(ctx, realm.ID)
	if err != nil {
		return nil, err
	}
	var claims Claims
	_, err = jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if kid, _ := token.Header["kid"].(string); kid != kp.KeyID {
			return nil, ErrWrongRealmKey
		}
		return kp.PublicKey, nil
	},
		jwt.WithValidMethods([]string{params.DefaultSigningAlgorithm}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.Issuer(realm.Name)),
	)
	if err != nil {
		return nil, translateParseError(err)
	}
	if claims.Type != expected {
		return nil, ErrWrongTokenType
	}
	return &claims, nil
}

func translateParseError(err error) error {
	switch {
	case errors.Is(err, ErrWrongRealmKey):
		return ErrWrongRealmKey
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformedToken
	default:
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}

// VerifyRefreshToken verifies a refresh token and requires a live ledger row for its jti.
func (s *TokenService) VerifyRefreshToken(ctx context.Context, tokenStr string, realm *model.Realm) (*Claims, error) {
	claims, err := s.VerifyToken(ctx, tokenStr, realm, TokenTypeRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	}
	row, err := s.refreshRepo.GetByJTI(ctx, claims.ID)
	if errors.Is(err, ErrRefreshTokenNotFound) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}
	if row.Revoked || s.now().After(row.ExpiresAt) || row.UserID != claims.Subject {
		return nil, ErrInvalidRefreshToken
	}
	return claims, nil
}

// IssueTokens mints an access, refresh and id token for the user and records the refresh token.
func (s *TokenService) IssueTokens(ctx context.Context, req IssueRequest) (*JwtToken, error) {
	now := s.now()
	newClaims := func(typ TokenType, ttl time.Duration) *Claims {
		claims := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    s.Issuer(req.Realm.Name),
				Subject:   req.User.ID,
				Audience:  AudienceFor(req.Realm.Name),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
				ID:        uuid.NewString(),
			},
			Type:              typ,
			AuthorizedParty:   req.ClientID,
			PreferredUsername: req.User.Username,
			Email:             req.User.Email,
		}
		if req.ServiceAccount {
			claims.ClientID = req.ClientID
		}
		return claims
	}

	accessToken, err := s.GenerateToken(ctx, newClaims(TokenTypeBearer, s.opts.AccessTokenTTL), req.Realm.ID)
	if err != nil {
		return nil, err
	}
	idToken, err := s.GenerateToken(ctx, newClaims(TokenTypeID, s.opts.AccessTokenTTL), req.Realm.ID)
	if err != nil {
		return nil, err
	}
	refreshClaims := newClaims(TokenTypeRefresh, s.opts.RefreshTokenTTL)
	refreshToken, err := s.GenerateToken(ctx, refreshClaims, req.Realm.ID)
	if err != nil {
		return nil, err
	}
	err = s.refreshRepo.Create(ctx, &model.RefreshToken{
		JTI:       refreshClaims.ID,
		UserID:    req.User.ID,
		ExpiresAt: refreshClaims.ExpiresAt.Time,
	})
	if err != nil {
		return nil, err
	}

	return &JwtToken{
		AccessToken:  accessToken,
		TokenType:    string(TokenTypeBearer),
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.opts.AccessTokenTTL / time.Second),
		IDToken:      idToken,
	}, nil
}

func (s *TokenService) RevokeRefreshToken(ctx context.Context, jti string) error {
	_, err := s.refreshRepo.RevokeByJTI(ctx, jti)
	return err
}

func (s *TokenService) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	return s.refreshRepo.RevokeByUser(ctx, userID)
}

// PurgeExpiredRefreshTokens removes ledger rows that can no longer be used.
func (s *TokenService) PurgeExpiredRefreshTokens(ctx context.Context) (int64, error) {
	return s.refreshRepo.DeleteExpired(ctx, s.now())
}

// PeekIssuerRealm reads the realm name from the unverified iss claim. The result
// only selects which realm key verifies the token.
func (s *TokenService) PeekIssuerRealm(tokenStr string) (string, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &claims); err != nil {
		return "", ErrMalformedToken
	}
	prefix := strings.TrimRight(s.opts.BaseURL, "/") + "/realms/"
	realmName, ok := strings.CutPrefix(claims.Issuer, prefix)
	if !ok || realmName == "" || strings.Contains(realmName, "/") {
		return "", ErrMalformedToken
	}
	return realmName, nil
}

func NewTokenService(opts Options, keys *KeyService, refreshRepo RefreshTokenRepository) *TokenService {
	if opts.AccessTokenTTL <= 0 {
		opts.AccessTokenTTL = params.AccessTokenExpiration
	}
	if opts.RefreshTokenTTL <= 0 {
		opts.RefreshTokenTTL = params.RefreshTokenExpiration
	}
	return &TokenService{
		opts:        opts,
		keys:        keys,
		refreshRepo: refreshRepo,
		now:         time.Now,
	}
}
