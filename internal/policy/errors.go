package policy

import "errors"

var (
	ErrForbidden              = errors.New("forbidden")
	ErrServiceAccountNotFound = errors.New("service account not found")
)

// ForbiddenError is returned when an authenticated identity lacks the permissions for an action.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return e.Reason
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

func NewForbiddenError(reason string) *ForbiddenError {
	return &ForbiddenError{Reason: reason}
}
