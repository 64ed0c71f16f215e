package model

import "errors"

// Kinds shared by repository errors. Package level sentinels wrap these so
// callers can test for the kind without importing the owning package.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)
