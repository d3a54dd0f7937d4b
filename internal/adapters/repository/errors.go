package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound = errors.New("event not found")
	ErrConflict = errors.New("event already exists")
)
