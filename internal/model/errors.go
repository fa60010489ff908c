package model

import "errors"

// Closed error taxonomy. Services and stores return these sentinels (wrapped
// with context); the HTTP layer maps each kind to a status code. Nothing else
// crosses the API boundary as a typed failure.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidInvite  = errors.New("invite key is stale or invalid")
	ErrAlreadyMember  = errors.New("member already belongs to this vault")
	ErrAccountExists  = errors.New("member account already exists")
	ErrForbidden      = errors.New("forbidden")
	ErrReplayDetected = errors.New("replayed authentication claim")
	ErrCreationFailed = errors.New("vault creation failed")
	ErrDeletionFailed = errors.New("vault deletion failed")
)
