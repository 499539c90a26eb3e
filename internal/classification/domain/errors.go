package domain

import "errors"

var (
	// ErrMalformedOutput means the model output held no parseable JSON object.
	ErrMalformedOutput = errors.New("invalid classification format")
	// ErrIDMismatch means the record answered for a different message.
	ErrIDMismatch = errors.New("classification email id mismatch")
)
