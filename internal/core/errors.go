package core

import "errors"

// Errors returned across service boundaries. Callers match them with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidRange       = errors.New("start date cannot be after end date")
	ErrUserNotFound       = errors.New("user not found")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
)
