package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted      = errors.New("service not started")
	ErrInvalidUpload   = errors.New("invalid results upload")
	ErrUploadTooLarge  = errors.New("results upload too large")
	ErrBackpressure    = errors.New("import queue full")
	ErrUnknownModality = errors.New("unknown modality")
	ErrRunnerNotFound  = errors.New("runner not found")
)
