package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	ErrEmailRequired = errors.New("email is required and cannot be empty")
	ErrUserNotFound  = errors.New("user not found")
	ErrTokenRequired = errors.New("token is required")
)
