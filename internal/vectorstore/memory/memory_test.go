package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audioseek/internal/domain"
)

func seedStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	err := s.Add(context.Background(), []domain.Segment{
		{ID: "rec1_0", RecordingID: "rec1", StartMS: 0, EndMS: 60_000, Text: "about rivers", Embedding: []float32{1, 0, 0}},
		{ID: "rec1_1", RecordingID: "rec1", StartMS: 60_000, EndMS: 120_000, Text: "about mountains", Embedding: []float32{0, 1, 0}},
		{ID: "rec1_2", RecordingID: "rec1", StartMS: 120_000, EndMS: 150_000, Text: "mostly rivers", Embedding: []float32{0.9, 0.1, 0}},
		{ID: "rec2_0", RecordingID: "rec2", StartMS: 0, EndMS: 60_000, Text: "other recording", Embedding: []float32{1, 0, 0}},
	})
	require.NoError(t, err)
	return s
}

func TestAddRejectsMissingEmbedding(t *testing.T) {
	s := NewStore()
	err := s.Add(context.Background(), []domain.Segment{
		{ID: "rec1_0", RecordingID: "rec1", Text: "no vector"},
	})
	assert.ErrorIs(t, err, domain.ErrStoreFailure)
}

func TestGetFiltersByRecording(t *testing.T) {
	s := seedStore(t)
	segments, err := s.Get(context.Background(), "rec1")
	require.NoError(t, err)
	assert.Len(t, segments, 3)
	for _, seg := range segments {
		assert.Equal(t, "rec1", seg.RecordingID)
	}

	segments, err = s.Get(context.Background(), "rec3")
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestQueryOrdersByAscendingDistance(t *testing.T) {
	s := seedStore(t)
	results, err := s.Query(context.Background(), []float32{1, 0, 0}, "rec1", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "rec1_0", results[0].SegmentID)
	assert.InDelta(t, 0, results[0].Distance, 1e-9)
	assert.Equal(t, "rec1_2", results[1].SegmentID)
	assert.Equal(t, "rec1_1", results[2].SegmentID)
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
	assert.LessOrEqual(t, results[1].Distance, results[2].Distance)
}

func TestQueryNeverCrossesRecordings(t *testing.T) {
	s := seedStore(t)
	results, err := s.Query(context.Background(), []float32{1, 0, 0}, "rec2", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rec2_0", results[0].SegmentID)
}

func TestQueryTruncatesToK(t *testing.T) {
	s := seedStore(t)
	results, err := s.Query(context.Background(), []float32{1, 0, 0}, "rec1", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = s.Query(context.Background(), []float32{1, 0, 0}, "rec1", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, cosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 1, cosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2, cosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	// zero vectors are maximally distant rather than NaN
	assert.Equal(t, float64(1), cosineDistance([]float32{0, 0}, []float32{1, 0}))
}
