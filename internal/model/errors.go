package model

import "errors"

// Common errors used across the application
var (
	// Identity errors
	ErrIdentityNotFound = errors.New("identity not found")
	ErrIdentityConflict = errors.New("url identity belongs to a different player than the credential")
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user already exists")

	// Town errors
	ErrTownNotFound    = errors.New("town not found")
	ErrInvalidTown     = errors.New("town record is invalid")
	ErrInvalidOwnerKey = errors.New("invalid owner key")
	ErrStorage         = errors.New("storage failure")

	// Protocol errors
	ErrEmptyBody     = errors.New("request body is empty")
	ErrMalformedBody = errors.New("request body could not be decoded")

	// Pending town errors
	ErrPendingTownNotFound = errors.New("pending town not found")
	ErrNotPending          = errors.New("pending town has already been decided")
)
