package domain

import "errors"

// Error taxonomy. Components wrap their failures with the matching
// sentinel so callers can tell retryable processing failures apart from
// bad input without string matching.
var (
	// ErrInvalidInput covers missing or malformed caller input (empty
	// recording ID, unreadable audio, empty URL). Not retryable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEngineFailure covers segmentation, transcription and embedding
	// engine failures. The ingestion run aborts with nothing committed;
	// the whole run may be retried.
	ErrEngineFailure = errors.New("engine failure")

	// ErrStoreFailure covers vector store read and write failures.
	ErrStoreFailure = errors.New("vector store failure")

	// ErrFetchFailure covers remote source resolution and download
	// failures, surfaced before any ingestion work begins.
	ErrFetchFailure = errors.New("fetch failure")

	// ErrContentConflict means a recording ID is already indexed with
	// different audio content. Neither overwrite nor silent skip.
	ErrContentConflict = errors.New("recording already indexed with different content")
)
