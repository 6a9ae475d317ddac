package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrQueueFull          = errors.New("worker queue full")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidTransition  = errors.New("invalid job phase transition")
	ErrJobTerminal        = errors.New("job already in terminal phase")
	ErrNotificationFailed = errors.New("webhook delivery failed")
	ErrDeadLetterNotFound = errors.New("dead letter not found")
	ErrReplayInProgress   = errors.New("dead letter replay already in progress")
	ErrCacheMiss          = errors.New("cache miss")
)
