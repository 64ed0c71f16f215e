package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/khanghh/krealm/internal/audit"
	"github.com/khanghh/krealm/internal/clients"
	"github.com/khanghh/krealm/internal/common"
	"github.com/khanghh/krealm/internal/grants"
	"github.com/khanghh/krealm/internal/metrics"
	"github.com/khanghh/krealm/internal/policy"
	"github.com/khanghh/krealm/internal/sessions"
	"github.com/khanghh/krealm/internal/tokens"
	"github.com/khanghh/krealm/model"
	"github.com/khanghh/krealm/params"
)

type RealmRepository interface {
	GetByName(ctx context.Context, name string) (*model.Realm, error)
}

type ClientRepository interface {
	GetByClientID(ctx context.Context, realmID string, clientID string) (*model.Client, error)
}

type RedirectURIRepository interface {
	ListEnabled(ctx context.Context, clientID string) ([]*model.RedirectURI, error)
}

type UserRepository interface {
	GetByRealmAndID(ctx context.Context, realmID string, userID string) (*model.User, error)
	GetByUsername(ctx context.Context, realmID string, username string) (*model.User, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, req sessions.CreateSessionRequest) (*sessions.AuthSession, error)
	GetSession(ctx context.Context, sessionID string) (*sessions.AuthSession, error)
	AttachCode(ctx context.Context, sessionID, code, userID string) (*sessions.AuthSession, error)
}

type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, userID string, password string) (bool, error)
}

type TwoFactorService interface {
	SetupTOTP(ctx context.Context, accountName string) (secret string, uri string, err error)
	EnrollTOTP(ctx context.Context, userID, secret, code, label string) error
	IsTOTPEnrolled(ctx context.Context, userID string) (bool, error)
	ChallengeTOTP(ctx context.Context, userID, code string) error
	DisableTOTP(ctx context.Context, userID string) error
	GenerateRecoveryCodes(ctx context.Context, userID string, amount int, format string) ([]string, error)
	BurnRecoveryCode(ctx context.Context, userID, code, format string) error
}

type GrantExecutor interface {
	Execute(ctx context.Context, p grants.Params) (*tokens.JwtToken, error)
}

type TokenVerifier interface {
	Issuer(realmName string) string
	PeekIssuerRealm(tokenStr string) (string, error)
	VerifyToken(ctx context.Context, tokenStr string, realm *model.Realm, expected tokens.TokenType) (*tokens.Claims, error)
	VerifyRefreshToken(ctx context.Context, tokenStr string, realm *model.Realm) (*tokens.Claims, error)
	RevokeRefreshToken(ctx context.Context, jti string) error
}

type KeySetProvider interface {
	JWKS(ctx context.Context, realmID string) (*jose.JSONWebKeySet, error)
}

type AuditRecorder interface {
	RecordToken(ctx context.Context, rec audit.TokenRecord) error
	RecordLogin(ctx context.Context, rec audit.LoginRecord) error
	RecordTwoFAAttempt(ctx context.Context, rec audit.TwoFAAttemptRecord) error
	RecordLogout(ctx context.Context, realm, userID string, info audit.ClientInfo) error
}

// Dependencies wires the collaborators of AuthorizeService.
type Dependencies struct {
	Realms       RealmRepository
	Clients      ClientRepository
	RedirectURIs RedirectURIRepository
	Users        UserRepository
	Sessions     SessionStore
	Passwords    PasswordVerifier
	TwoFactor    TwoFactorService
	Grants       GrantExecutor
	Tokens       TokenVerifier
	Keys         KeySetProvider
	Audit        AuditRecorder
	Metrics      metrics.Recorder
}

type AuthorizeRequest struct {
	RealmName    string
	ClientID     string
	RedirectURI  string
	ResponseType string
	Scope        string
	State        string
	Nonce        string
}

type AuthenticateRequest struct {
	RealmName    string
	SessionID    string
	Username     string
	Password     string
	TOTPCode     string
	RecoveryCode string
	audit.ClientInfo
}

type AuthenticateResult struct {
	Session     *sessions.AuthSession
	Code        string
	RedirectURL string
}

type TokenRequest struct {
	RealmName    string
	GrantType    string
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	Username     string
	Password     string
	RefreshToken string
	audit.ClientInfo
}

type AuthorizeService struct {
	Dependencies
}

func (s *AuthorizeService) resolveClient(ctx context.Context, realmName, clientID string) (*model.Realm, *model.Client, error) {
	realm, err := s.Realms.GetByName(ctx, realmName)
	if err != nil {
		return nil, nil, err
	}
	client, err := s.Clients.GetByClientID(ctx, realm.ID, clientID)
	if errors.Is(err, model.ErrNotFound) {
		return realm, nil, grants.ErrInvalidClient
	}
	if err != nil {
		return realm, nil, err
	}
	if !client.Enabled {
		return realm, client, grants.ErrInvalidClient
	}
	return realm, client, nil
}

// Authorize validates an authorization request and opens the auth session that
// the login step continues.
func (s *AuthorizeService) Authorize(ctx context.Context, req AuthorizeRequest) (*sessions.AuthSession, error) {
	realm, client, err := s.resolveClient(ctx, req.RealmName, req.ClientID)
	if err != nil {
		return nil, err
	}
	if req.ResponseType != "code" {
		return nil, ErrUnsupportedResponseType
	}
	uris, err := s.RedirectURIs.ListEnabled(ctx, client.ID)
	if err != nil {
		return nil, err
	}
	if !clients.RedirectAllowed(uris, req.RedirectURI) {
		return nil, ErrInvalidRedirectURI
	}
	return s.Sessions.CreateSession(ctx, sessions.CreateSessionRequest{
		RealmID:      realm.ID,
		ClientID:     client.ID,
		RedirectURI:  req.RedirectURI,
		ResponseType: req.ResponseType,
		Scope:        req.Scope,
		State:        req.State,
		Nonce:        req.Nonce,
	})
}

func (s *AuthorizeService) verifyUser(ctx context.Context, realm *model.Realm, req AuthenticateRequest) (*model.User, error) {
	user, err := s.Users.GetByUsername(ctx, realm.ID, req.Username)
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.Enabled || user.IsServiceAccount() {
		return nil, ErrInvalidCredentials
	}
	ok, err := s.Passwords.VerifyPassword(ctx, user.ID, req.Password)
	if errors.Is(err, model.ErrNotFound) || (err == nil && !ok) {
		return user, ErrInvalidCredentials
	}
	if err != nil {
		return user, err
	}

	enrolled, err := s.TwoFactor.IsTOTPEnrolled(ctx, user.ID)
	if err != nil {
		return user, err
	}
	switch {
	case !enrolled:
		return user, nil
	case req.TOTPCode != "":
		err = s.TwoFactor.ChallengeTOTP(ctx, user.ID, req.TOTPCode)
	case req.RecoveryCode != "":
		err = s.TwoFactor.BurnRecoveryCode(ctx, user.ID, req.RecoveryCode, params.DefaultRecoveryCodeFormat)
	default:
		return user, ErrTwoFactorRequired
	}
	rec := audit.TwoFAAttemptRecord{
		Realm:      realm.Name,
		UserID:     user.ID,
		Username:   user.Username,
		Success:    err == nil,
		ClientInfo: req.ClientInfo,
	}
	if err != nil {
		rec.Reason = err.Error()
	}
	s.Audit.RecordTwoFAAttempt(ctx, rec)
	return user, err
}

// Authenticate checks the user's credentials for an open auth session and
// issues the authorization code the client redeems at the token endpoint.
func (s *AuthorizeService) Authenticate(ctx context.Context, req AuthenticateRequest) (*AuthenticateResult, error) {
	start := time.Now()
	realm, err := s.Realms.GetByName(ctx, req.RealmName)
	if err != nil {
		return nil, err
	}
	sess, err := s.Sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.RealmID != realm.ID {
		return nil, ErrSessionRealmMismatch
	}
	// reject finished sessions before any credential is checked
	if sess.IsExpired(start) {
		return nil, sessions.ErrSessionExpired
	}
	if sess.Status != sessions.StatusCreated {
		return nil, sessions.ErrSessionAlreadyAuthorized
	}

	user, err := s.verifyUser(ctx, realm, req)
	rec := audit.LoginRecord{
		Realm:      realm.Name,
		ClientID:   sess.ClientID,
		Username:   req.Username,
		Success:    err == nil,
		ClientInfo: req.ClientInfo,
	}
	if user != nil {
		rec.UserID = user.ID
	}
	if err != nil {
		rec.Reason = err.Error()
	}
	s.Audit.RecordLogin(ctx, rec)
	s.Metrics.RecordAuthAttempt("password", err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}

	code, err := common.GenerateSecret(params.AuthorizationCodeLength)
	if err != nil {
		return nil, err
	}
	sess, err = s.Sessions.AttachCode(ctx, sess.ID, code, user.ID)
	if err != nil {
		return nil, err
	}
	redirectURL, err := url.Parse(sess.RedirectURI)
	if err != nil {
		return nil, ErrInvalidRedirectURI
	}
	query := redirectURL.Query()
	query.Set("code", code)
	if sess.State != "" {
		query.Set("state", sess.State)
	}
	redirectURL.RawQuery = query.Encode()
	return &AuthenticateResult{Session: sess, Code: code, RedirectURL: redirectURL.String()}, nil
}

func failureReason(err error) string {
	if errors.Is(err, grants.ErrInternal) {
		return grants.ErrInternal.Error()
	}
	return err.Error()
}

// ExchangeToken resolves the realm and client of a token request and runs the grant.
func (s *AuthorizeService) ExchangeToken(ctx context.Context, req TokenRequest) (*tokens.JwtToken, error) {
	start := time.Now()
	tok, err := s.exchangeToken(ctx, req)
	rec := audit.TokenRecord{
		Realm:      req.RealmName,
		ClientID:   req.ClientID,
		GrantType:  req.GrantType,
		Username:   req.Username,
		Success:    err == nil,
		ClientInfo: req.ClientInfo,
	}
	if err != nil {
		rec.Reason = failureReason(err)
		s.Metrics.RecordGrantFailure(req.GrantType, rec.Reason)
	} else {
		s.Metrics.RecordTokenIssued(req.GrantType, time.Since(start))
	}
	s.Audit.RecordToken(ctx, rec)
	return tok, err
}

func (s *AuthorizeService) exchangeToken(ctx context.Context, req TokenRequest) (*tokens.JwtToken, error) {
	grantType, err := grants.ParseGrantType(req.GrantType)
	if err != nil {
		return nil, err
	}
	realm, client, err := s.resolveClient(ctx, req.RealmName, req.ClientID)
	if err != nil {
		return nil, err
	}
	return s.Grants.Execute(ctx, grants.Params{
		GrantType:    grantType,
		Realm:        realm,
		Client:       client,
		ClientSecret: req.ClientSecret,
		Code:         req.Code,
		RedirectURI:  req.RedirectURI,
		Username:     req.Username,
		Password:     req.Password,
		RefreshToken: req.RefreshToken,
	})
}

func invalidBearer(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidBearerToken, err)
}

// ResolveIdentity verifies a bearer access token and returns who it speaks for.
// Tokens carrying a client_id claim were issued to a service account and
// resolve to the client.
func (s *AuthorizeService) ResolveIdentity(ctx context.Context, bearer string) (policy.Identity, error) {
	realmName, err := s.Tokens.PeekIssuerRealm(bearer)
	if err != nil {
		return policy.Identity{}, invalidBearer(err)
	}
	realm, err := s.Realms.GetByName(ctx, realmName)
	if err != nil {
		return policy.Identity{}, invalidBearer(err)
	}
	claims, err := s.Tokens.VerifyToken(ctx, bearer, realm, tokens.TokenTypeBearer)
	if err != nil {
		return policy.Identity{}, invalidBearer(err)
	}
	if claims.ClientID != "" {
		client, err := s.Clients.GetByClientID(ctx, realm.ID, claims.ClientID)
		if err != nil {
			return policy.Identity{}, invalidBearer(err)
		}
		if !client.Enabled {
			return policy.Identity{}, invalidBearer(grants.ErrInvalidClient)
		}
		return policy.NewClientIdentity(client), nil
	}
	user, err := s.Users.GetByRealmAndID(ctx, realm.ID, claims.Subject)
	if err != nil {
		return policy.Identity{}, invalidBearer(err)
	}
	if !user.Enabled {
		return policy.Identity{}, invalidBearer(grants.ErrInvalidUser)
	}
	return policy.NewUserIdentity(user), nil
}

// Logout revokes the refresh token so it can no longer be exchanged.
func (s *AuthorizeService) Logout(ctx context.Context, realmName, refreshToken string, info audit.ClientInfo) error {
	realm, err := s.Realms.GetByName(ctx, realmName)
	if err != nil {
		return err
	}
	claims, err := s.Tokens.VerifyRefreshToken(ctx, refreshToken, realm)
	if err != nil {
		return grants.ErrInvalidRefreshToken
	}
	if err := s.Tokens.RevokeRefreshToken(ctx, claims.ID); err != nil {
		return err
	}
	s.Metrics.RecordTokenRevoked("logout")
	s.Audit.RecordLogout(ctx, realm.Name, claims.Subject, info)
	return nil
}

// Certs returns the public signing keys of the realm.
func (s *AuthorizeService) Certs(ctx context.Context, realmName string) (*jose.JSONWebKeySet, error) {
	realm, err := s.Realms.GetByName(ctx, realmName)
	if err != nil {
		return nil, err
	}
	return s.Keys.JWKS(ctx, realm.ID)
}

func NewAuthorizeService(deps Dependencies) *AuthorizeService {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoopMetrics()
	}
	return &AuthorizeService{Dependencies: deps}
}
