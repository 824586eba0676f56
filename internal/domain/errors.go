package domain

import "errors"

// Session errors
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionCorrupt   = errors.New("session record is corrupt")
)

// Validation errors
var (
	ErrEmptyEmail       = errors.New("email is required")
	ErrEmptyPassword    = errors.New("password is required")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrMalformedOTP     = errors.New("one-time password must be 6 digits")
)

// Job errors
var (
	ErrJobNotFound = errors.New("job not found")
)
