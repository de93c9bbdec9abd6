package errs

import "errors"

var (
	// ErrEmbeddingUnavailable means the upstream embedding provider failed,
	// timed out, or is unconfigured for the caller.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrNoEmbeddingAvailable means the seed entity was never embedded, so
	// there is nothing to retrieve against.
	ErrNoEmbeddingAvailable = errors.New("no embedding available")
	// ErrGenerationFailure means the LLM completion call itself failed.
	ErrGenerationFailure = errors.New("generation failure")
	// ErrConfigurationMissing means the user has no active LLM configuration.
	ErrConfigurationMissing = errors.New("llm configuration missing")
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
)
