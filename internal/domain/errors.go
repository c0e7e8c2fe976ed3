package domain

import "errors"

var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrCapacity         = errors.New("capacity exhausted")
	ErrPersistence      = errors.New("persistence error")
	ErrTransport        = errors.New("transport error")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotConnected     = errors.New("not connected to a room")
)
