package twofactor

import (
	"context"
	"time"

	"github.com/khanghh/krealm/internal/store"
	"github.com/khanghh/krealm/params"
)

// UserState keeps track of per user second factor verification state
type UserState struct {
	ID                 string
	FailCount          int   `redis:"fail_count"`           // consecutive failed verifications
	LockedUntil        int64 `redis:"locked_until"`         // unix seconds, zero when not locked
	TOTPVerifiedWindow int64 `redis:"totp_verified_window"` // last accepted TOTP time step
}

func (s *UserState) IsLocked(now time.Time) bool {
	return s.LockedUntil > now.Unix()
}

type userStateStore struct {
	store.Store[UserState]
}

func (s *userStateStore) Get(ctx context.Context, id string) (*UserState, error) {
	val, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	val.ID = id
	return &val, err
}

func (s *userStateStore) IncreaseFailCount(ctx context.Context, id string) (int, error) {
	failCount, err := s.IncrAttr(ctx, id, "fail_count", 1)
	return int(failCount), err
}

func (s *userStateStore) ResetFailCount(ctx context.Context, id string) error {
	return s.SetAttr(ctx, id, "fail_count", 0)
}

func (s *userStateStore) LockUntil(ctx context.Context, id string, until time.Time) error {
	return s.SetAttr(ctx, id, "locked_until", until.Unix())
}

func (s *userStateStore) SetTOTPVerifiedWindow(ctx context.Context, id string, window int64) error {
	return s.SetAttr(ctx, id, "totp_verified_window", window)
}

func newUserStateStore(storage store.Storage) *userStateStore {
	return &userStateStore{
		Store: store.New[UserState](storage, params.UserStateKeyPrefix),
	}
}
