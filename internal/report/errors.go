package report

import "errors"

// Sentinel kinds for report errors.
var (
	ErrLoadEvent       = errors.New("load event file")
	ErrUnknownModality = errors.New("unknown modality")
)
