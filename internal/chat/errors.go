package chat

import "errors"

var (
	// ErrGenerationTimeout means the model did not answer before the deadline.
	ErrGenerationTimeout = errors.New("generation timed out")
	// ErrGenerationBackend covers provider, transport and empty-output failures.
	ErrGenerationBackend = errors.New("generation backend failed")
)
