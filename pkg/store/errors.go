package store

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionBusy     = errors.New("session is busy with another message")
	ErrEmptyMessage    = errors.New("message must not be empty")
	ErrInvalidMode     = errors.New("unknown mode")
)
