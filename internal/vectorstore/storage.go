// Package vectorstore defines the persistence contract for transcript
// segments and their embeddings.
package vectorstore

import (
	"context"

	"audioseek/internal/domain"
)

// Store persists segment vectors and supports similarity search scoped to
// one recording.
//
// Add writes all segments of one ingestion run in a single batch; a
// recording is never visible to search half-indexed. Get returns every
// segment of a recording in unspecified order (callers sort). Query
// returns the k nearest segments of the recording ordered by ascending
// cosine distance (0 = identical, 2 = maximally dissimilar); k is clamped
// to the number of stored segments.
type Store interface {
	Add(ctx context.Context, segments []domain.Segment) error
	Get(ctx context.Context, recordingID string) ([]domain.Segment, error)
	Query(ctx context.Context, vector []float32, recordingID string, k int) ([]domain.SearchResult, error)
}
