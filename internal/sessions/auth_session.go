package sessions

import "time"

type SessionStatus string

const (
	StatusCreated    SessionStatus = "created"
	StatusCodeIssued SessionStatus = "code_issued"
	StatusExchanged  SessionStatus = "exchanged"
)

// AuthSession is the in-flight state of one authorization code flow.
// Timestamps are unix seconds.
type AuthSession struct {
	ID            string
	RealmID       string        `redis:"realm_id"`
	ClientID      string        `redis:"client_id"`
	RedirectURI   string        `redis:"redirect_uri"`
	ResponseType  string        `redis:"response_type"`
	Scope         string        `redis:"scope"`
	State         string        `redis:"state"`
	Nonce         string        `redis:"nonce"`
	UserID        string        `redis:"user_id"`
	Code          string        `redis:"code"`
	Authenticated bool          `redis:"authenticated"`
	Status        SessionStatus `redis:"status"`
	CreatedAt     int64         `redis:"created_at"`
	ExpiresAt     int64         `redis:"expires_at"`
}

func (s *AuthSession) IsExpired(now time.Time) bool {
	return now.Unix() > s.ExpiresAt
}

func (s *AuthSession) ExpiresAtTime() time.Time {
	return time.Unix(s.ExpiresAt, 0)
}

type CreateSessionRequest struct {
	RealmID      string
	ClientID     string
	RedirectURI  string
	ResponseType string
	Scope        string
	State        string
	Nonce        string
}
