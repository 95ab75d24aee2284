package domain

import "errors"

// Sentinel errors for the domain layer. These provide consistent, checkable
// errors for common business logic failures.
var (
	ErrNotFound           = errors.New("requested resource not found")
	ErrInvalidCredentials = errors.New("invalid credentials provided")
	ErrProfileExists      = errors.New("profile with this username already exists")
	ErrScopeMismatch      = errors.New("items belong to different parent scopes")
)
