package session

import "errors"

var (
	ErrRecordNotFound     = errors.New("session record not found")
	ErrInvalidSessionCode = errors.New("session code is required")
	ErrInvalidStage       = errors.New("stage is required")
	ErrInvalidCountdown   = errors.New("countdown must be a positive number of seconds")
	ErrReaderClosed       = errors.New("reader is closed")
)
