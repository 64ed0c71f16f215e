package twofactor

import (
	"errors"
	"time"
)

var (
	ErrTOTPNotEnrolled           = errors.New("TOTP not enrolled")
	ErrTOTPVerifyFailed          = errors.New("TOTP verification failed")
	ErrInvalidTOTPSecret         = errors.New("invalid TOTP secret")
	ErrVerificationFailed        = errors.New("verification failed")
	ErrRecoveryCodeDecode        = errors.New("invalid recovery code format")
	ErrUnknownRecoveryCodeFormat = errors.New("unknown recovery code format")
)

type UserLockedError struct {
	Reason string
	Until  time.Time
}

func (e *UserLockedError) Error() string {
	return e.Reason
}

func (e *UserLockedError) Unwrap() error {
	return ErrVerificationFailed
}

func NewUserLockedError(reason string, until time.Time) *UserLockedError {
	return &UserLockedError{
		Reason: reason,
		Until:  until,
	}
}

// AttemptFailError is a failed verification that still leaves attempts before lockout.
type AttemptFailError struct {
	AttemptsLeft int
}

func (e *AttemptFailError) Error() string {
	return "verify attempt failed"
}

func (e *AttemptFailError) Unwrap() error {
	return ErrVerificationFailed
}

func NewAttemptFailError(attemptsLeft int) *AttemptFailError {
	return &AttemptFailError{
		AttemptsLeft: attemptsLeft,
	}
}
