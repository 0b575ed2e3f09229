package rental_errors

import "errors"

// Common errors
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotParticipant = errors.New("not a participant")
	ErrNotFound       = errors.New("not found")
	ErrInvalidContent = errors.New("invalid content")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("conflict")
	ErrAlreadyExists  = errors.New("already exists")
	ErrRateLimited    = errors.New("rate limited")
)
