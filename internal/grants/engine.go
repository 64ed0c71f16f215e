package grants

import (
	"context"
	"errors"

	"github.com/khanghh/krealm/internal/sessions"
	"github.com/khanghh/krealm/internal/tokens"
	"github.com/khanghh/krealm/model"
)

type UserRepository interface {
	GetByRealmAndID(ctx context.Context, realmID string, userID string) (*model.User, error)
	GetByUsername(ctx context.Context, realmID string, username string) (*model.User, error)
	GetServiceAccount(ctx context.Context, clientID string) (*model.User, error)
}

type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (*sessions.AuthSession, error)
}

type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, userID string, password string) (bool, error)
}

type TokenIssuer interface {
	IssueTokens(ctx context.Context, req tokens.IssueRequest) (*tokens.JwtToken, error)
	VerifyRefreshToken(ctx context.Context, tokenStr string, realm *model.Realm) (*tokens.Claims, error)
	RevokeRefreshToken(ctx context.Context, jti string) error
}

// Params is a token request whose realm and client are already resolved.
type Params struct {
	GrantType    GrantType
	Realm        *model.Realm
	Client       *model.Client
	ClientSecret string
	Code         string
	RedirectURI  string
	Username     string
	Password     string
	RefreshToken string
}

type Options struct {
	// RotateRefreshTokens revokes the presented refresh token when a new one is issued.
	RotateRefreshTokens bool
}

type Engine struct {
	opts      Options
	userRepo  UserRepository
	exchanger CodeExchanger
	passwords PasswordVerifier
	tokens    TokenIssuer
}

func (e *Engine) Execute(ctx context.Context, p Params) (*tokens.JwtToken, error) {
	if p.Client == nil || !p.Client.Enabled {
		return nil, ErrInvalidClient
	}
	switch p.GrantType {
	case AuthorizationCode:
		return e.authorizationCode(ctx, p)
	case Password:
		return e.password(ctx, p)
	case ClientCredentials:
		return e.clientCredentials(ctx, p)
	case RefreshToken:
		return e.refreshToken(ctx, p)
	default:
		return nil, ErrUnsupportedGrantType
	}
}

func (e *Engine) activeUser(ctx context.Context, realmID, userID string) (*model.User, error) {
	user, err := e.userRepo.GetByRealmAndID(ctx, realmID, userID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrInvalidUser
	}
	if err != nil {
		return nil, internalError(err)
	}
	if !user.Enabled {
		return nil, ErrInvalidUser
	}
	return user, nil
}

func (e *Engine) issue(ctx context.Context, p Params, user *model.User, serviceAccount bool) (*tokens.JwtToken, error) {
	tok, err := e.tokens.IssueTokens(ctx, tokens.IssueRequest{
		Realm:          p.Realm,
		User:           user,
		ClientID:       p.Client.ClientID,
		ServiceAccount: serviceAccount,
	})
	if err != nil {
		return nil, internalError(err)
	}
	return tok, nil
}

func (e *Engine) authorizationCode(ctx context.Context, p Params) (*tokens.JwtToken, error) {
	if !p.Client.PublicClient && !secretMatches(p.Client, p.ClientSecret) {
		return nil, ErrInvalidClientSecret
	}
	sess, err := e.exchanger.Exchange(ctx, p.Code)
	if errors.Is(err, sessions.ErrSessionNotFound) || errors.Is(err, sessions.ErrSessionExpired) {
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, internalError(err)
	}
	if sess.RealmID != p.Realm.ID || sess.ClientID != p.Client.ID {
		return nil, ErrInvalidState
	}
	if p.RedirectURI != "" && p.RedirectURI != sess.RedirectURI {
		return nil, ErrInvalidState
	}
	user, err := e.activeUser(ctx, p.Realm.ID, sess.UserID)
	if err != nil {
		return nil, err
	}
	return e.issue(ctx, p, user, false)
}

func (e *Engine) password(ctx context.Context, p Params) (*tokens.JwtToken, error) {
	if !p.Client.DirectAccessGrantsEnabled && !secretMatches(p.Client, p.ClientSecret) {
		return nil, ErrInvalidClientSecret
	}
	user, err := e.userRepo.GetByUsername(ctx, p.Realm.ID, p.Username)
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrInvalidUser
	}
	if err != nil {
		return nil, internalError(err)
	}
	if !user.Enabled || user.IsServiceAccount() {
		return nil, ErrInvalidUser
	}
	ok, err := e.passwords.VerifyPassword(ctx, user.ID, p.Password)
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrInvalidPassword
	}
	if err != nil {
		return nil, internalError(err)
	}
	if !ok {
		return nil, ErrInvalidPassword
	}
	return e.issue(ctx, p, user, false)
}

func (e *Engine) clientCredentials(ctx context.Context, p Params) (*tokens.JwtToken, error) {
	if p.Client.PublicClient || !secretMatches(p.Client, p.ClientSecret) {
		return nil, ErrInvalidClientSecret
	}
	user, err := e.userRepo.GetServiceAccount(ctx, p.Client.ID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrServiceAccountNotFound
	}
	if err != nil {
		return nil, internalError(err)
	}
	if !user.Enabled {
		return nil, ErrInvalidUser
	}
	return e.issue(ctx, p, user, true)
}

func (e *Engine) refreshToken(ctx context.Context, p Params) (*tokens.JwtToken, error) {
	if !p.Client.PublicClient && !secretMatches(p.Client, p.ClientSecret) {
		return nil, ErrInvalidClientSecret
	}
	claims, err := e.tokens.VerifyRefreshToken(ctx, p.RefreshToken, p.Realm)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	if claims.AuthorizedParty != p.Client.ClientID {
		return nil, ErrInvalidRefreshToken
	}
	user, err := e.activeUser(ctx, p.Realm.ID, claims.Subject)
	if err != nil {
		return nil, err
	}
	tok, err := e.issue(ctx, p, user, claims.ClientID != "")
	if err != nil {
		return nil, err
	}
	if e.opts.RotateRefreshTokens {
		if err := e.tokens.RevokeRefreshToken(ctx, claims.ID); err != nil {
			return nil, internalError(err)
		}
	}
	return tok, nil
}

func NewEngine(opts Options, userRepo UserRepository, exchanger CodeExchanger, passwords PasswordVerifier, issuer TokenIssuer) *Engine {
	return &Engine{
		opts:      opts,
		userRepo:  userRepo,
		exchanger: exchanger,
		passwords: passwords,
		tokens:    issuer,
	}
}
