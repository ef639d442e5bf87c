package domain

import "errors"

var (
	ErrDeviceNotFound   = errors.New("device not found")
	ErrSecretNotFound   = errors.New("secret not found")
	ErrTokenMissing     = errors.New("token response missing token")
	ErrLockRejected     = errors.New("lock request rejected")
	ErrQueueFull        = errors.New("lock queue full")
	ErrDispatcherClosed = errors.New("lock dispatcher closed")
)
