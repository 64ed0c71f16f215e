package audit

import (
	"context"
	"log/slog"

	"github.com/khanghh/krealm/model"
)

const (
	EventTypeTokenIssued         = "token_issued"
	EventTypeTokenDenied         = "token_denied"
	EventTypeLoginSuccess        = "login_success"
	EventTypeLoginFailure        = "login_failure"
	EventTypeLogout              = "logout"
	EventTypeTwoFAAttemptSuccess = "2fa_attempt_success"
	EventTypeTwoFAAttemptFailure = "2fa_attempt_failure"
)

// ClientInfo describes where a request came from.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type TokenRecord struct {
	Realm     string
	ClientID  string
	GrantType string
	Username  string
	Success   bool
	Reason    string
	ClientInfo
}

type LoginRecord struct {
	Realm    string
	ClientID string
	UserID   string
	Username string
	Success  bool
	Reason   string
	ClientInfo
}

type TwoFAAttemptRecord struct {
	Realm    string
	UserID   string
	Username string
	Success  bool
	Reason   string
	ClientInfo
}

type Recorder struct {
	repo AuditEventRepository
}

func (r *Recorder) record(ctx context.Context, event *model.AuditEvent) error {
	if err := r.repo.RecordEvent(ctx, event); err != nil {
		slog.Error("Failed to record audit event", "type", event.EventType, "realm", event.Realm, "error", err)
		return err
	}
	return nil
}

func (r *Recorder) RecordToken(ctx context.Context, rec TokenRecord) error {
	eventType := EventTypeTokenDenied
	if rec.Success {
		eventType = EventTypeTokenIssued
	}
	return r.record(ctx, &model.AuditEvent{
		Realm:     rec.Realm,
		Username:  rec.Username,
		ClientID:  rec.ClientID,
		EventType: eventType,
		GrantType: rec.GrantType,
		Reason:    rec.Reason,
		IP:        rec.IP,
		UserAgent: rec.UserAgent,
	})
}

func (r *Recorder) RecordLogin(ctx context.Context, rec LoginRecord) error {
	eventType := EventTypeLoginFailure
	if rec.Success {
		eventType = EventTypeLoginSuccess
	}
	return r.record(ctx, &model.AuditEvent{
		Realm:     rec.Realm,
		UserID:    rec.UserID,
		Username:  rec.Username,
		ClientID:  rec.ClientID,
		EventType: eventType,
		Reason:    rec.Reason,
		IP:        rec.IP,
		UserAgent: rec.UserAgent,
	})
}

func (r *Recorder) RecordTwoFAAttempt(ctx context.Context, rec TwoFAAttemptRecord) error {
	eventType := EventTypeTwoFAAttemptFailure
	if rec.Success {
		eventType = EventTypeTwoFAAttemptSuccess
	}
	return r.record(ctx, &model.AuditEvent{
		Realm:     rec.Realm,
		UserID:    rec.UserID,
		Username:  rec.Username,
		EventType: eventType,
		Reason:    rec.Reason,
		IP:        rec.IP,
		UserAgent: rec.UserAgent,
	})
}

func (r *Recorder) RecordLogout(ctx context.Context, realm, userID string, info ClientInfo) error {
	return r.record(ctx, &model.AuditEvent{
		Realm:     realm,
		UserID:    userID,
		EventType: EventTypeLogout,
		IP:        info.IP,
		UserAgent: info.UserAgent,
	})
}

func NewRecorder(repo AuditEventRepository) *Recorder {
	return &Recorder{repo: repo}
}
