package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/khanghh/krealm/internal/store"
	"github.com/khanghh/krealm/params"
)

type authCodeEntry struct {
	SessionID string `redis:"session_id"`
}

// SessionStore keeps auth sessions in redis hashes with an index from
// authorization code to session.
type SessionStore struct {
	sessionStore store.Store[AuthSession]
	codeStore    store.Store[authCodeEntry]
	ttl          time.Duration
	now          func() time.Time
}

func (s *SessionStore) CreateSession(ctx context.Context, req CreateSessionRequest) (*AuthSession, error) {
	now := s.now()
	sess := &AuthSession{
		ID:           uuid.NewString(),
		RealmID:      req.RealmID,
		ClientID:     req.ClientID,
		RedirectURI:  req.RedirectURI,
		ResponseType: req.ResponseType,
		Scope:        req.Scope,
		State:        req.State,
		Nonce:        req.Nonce,
		Status:       StatusCreated,
		CreatedAt:    now.Unix(),
		ExpiresAt:    now.Add(s.ttl).Unix(),
	}
	// code and user_id stay absent so the code can be attached with HSETNX
	fields := map[string]interface{}{
		"realm_id":      sess.RealmID,
		"client_id":     sess.ClientID,
		"redirect_uri":  sess.RedirectURI,
		"response_type": sess.ResponseType,
		"scope":         sess.Scope,
		"state":         sess.State,
		"nonce":         sess.Nonce,
		"authenticated": false,
		"status":        string(sess.Status),
		"created_at":    sess.CreatedAt,
		"expires_at":    sess.ExpiresAt,
	}
	if err := s.sessionStore.Storage().Set(ctx, sess.ID, fields, s.ttl); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (*AuthSession, error) {
	sess, err := s.sessionStore.Get(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	sess.ID = sessionID
	return &sess, nil
}

// AttachCode binds an authenticated user and an authorization code to a fresh session.
// Only the first attach succeeds.
func (s *SessionStore) AttachCode(ctx context.Context, sessionID, code, userID string) (*AuthSession, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.IsExpired(s.now()) {
		return nil, ErrSessionExpired
	}
	if sess.Status != StatusCreated {
		return nil, ErrSessionAlreadyAuthorized
	}
	ok, err := s.sessionStore.SetAttrNX(ctx, sessionID, "code", code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionAlreadyAuthorized
	}
	// HSETNX recreates the hash without a TTL if the key expired after the read above
	if err := s.sessionStore.Expire(ctx, sessionID, sess.ExpiresAtTime()); err != nil {
		return nil, err
	}
	if err := s.sessionStore.SetAttr(ctx, sessionID, "user_id", userID); err != nil {
		return nil, err
	}
	if err := s.sessionStore.SetAttr(ctx, sessionID, "authenticated", true); err != nil {
		return nil, err
	}
	if err := s.sessionStore.SetAttr(ctx, sessionID, "status", string(StatusCodeIssued)); err != nil {
		return nil, err
	}
	ttl := sess.ExpiresAtTime().Sub(s.now())
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := s.codeStore.Set(ctx, code, authCodeEntry{SessionID: sessionID}, ttl); err != nil {
		return nil, err
	}

	sess.Code = code
	sess.UserID = userID
	sess.Authenticated = true
	sess.Status = StatusCodeIssued
	return sess, nil
}

// Exchange consumes an authorization code. Of concurrent callers presenting the
// same code exactly one gets the session.
func (s *SessionStore) Exchange(ctx context.Context, code string) (*AuthSession, error) {
	entry, err := s.codeStore.Get(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	sess, err := s.GetSession(ctx, entry.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.Code != code || sess.Status != StatusCodeIssued {
		return nil, ErrSessionNotFound
	}
	if sess.IsExpired(s.now()) {
		return nil, ErrSessionExpired
	}
	err = s.codeStore.Delete(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.sessionStore.SetAttr(ctx, sess.ID, "status", string(StatusExchanged)); err != nil {
		return nil, err
	}
	sess.Status = StatusExchanged
	return sess, nil
}

func NewSessionStore(storage store.Storage, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = params.AuthSessionExpiration
	}
	return &SessionStore{
		sessionStore: store.New[AuthSession](storage, params.AuthSessionKeyPrefix),
		codeStore:    store.New[authCodeEntry](storage, params.AuthCodeKeyPrefix),
		ttl:          ttl,
		now:          time.Now,
	}
}
