// Package memory provides an in-memory vector store using brute-force
// cosine distance. It backs tests and zero-infrastructure runs.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"audioseek/internal/domain"
)

// Store keeps all segments in memory. Reads never block on concurrent
// writes beyond the RWMutex; Add is atomic per batch.
type Store struct {
	mu       sync.RWMutex
	segments []domain.Segment
}

func NewStore() *Store { return &Store{} }

// Add appends one ingestion run's segments as a single batch.
func (s *Store) Add(ctx context.Context, segments []domain.Segment) error {
	for _, seg := range segments {
		if len(seg.Embedding) == 0 {
			return fmt.Errorf("%w: segment %s has no embedding", domain.ErrStoreFailure, seg.ID)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = append(s.segments, segments...)
	return nil
}

// Get returns all segments with the given recording ID.
func (s *Store) Get(ctx context.Context, recordingID string) ([]domain.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Segment
	for _, seg := range s.segments {
		if seg.RecordingID == recordingID {
			out = append(out, seg)
		}
	}
	return out, nil
}

// Query scans the recording's segments and returns the k nearest by
// cosine distance, ascending.
func (s *Store) Query(ctx context.Context, vector []float32, recordingID string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []domain.SearchResult
	for _, seg := range s.segments {
		if seg.RecordingID != recordingID {
			continue
		}
		results = append(results, domain.SearchResult{
			SegmentID: seg.ID,
			Text:      seg.Text,
			StartMS:   seg.StartMS,
			EndMS:     seg.EndMS,
			Distance:  cosineDistance(vector, seg.Embedding),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func cosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
