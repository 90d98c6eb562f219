package services

import "errors"

// Sentinel errors for handlers to map to HTTP status.
var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicateIdentity  = errors.New("username or email already exists")
	ErrInvalidCredentials = errors.New("invalid username/email or password")
	ErrNotFound           = errors.New("not found")
)
