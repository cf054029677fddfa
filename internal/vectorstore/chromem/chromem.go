// Package chromem provides the default vector store backed by chromem-go,
// an embedded persistent vector database. Each recording gets its own
// collection, which keeps the per-recording scope of every read and makes
// the batch write of one ingestion run easy to roll back.
package chromem

import (
	"context"
	"fmt"
	"os"
	"strconv"

	chromemgo "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"audioseek/internal/domain"
)

// Config configures the embedded store.
type Config struct {
	// Path is the directory for persistent storage.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// Store implements vectorstore.Store on top of chromem-go.
type Store struct {
	db     *chromemgo.DB
	logger *zap.Logger
}

// New opens (or creates) the persistent database at cfg.Path.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: chromem path required", domain.ErrStoreFailure)
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", domain.ErrStoreFailure, cfg.Path, err)
	}
	db, err := chromemgo.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: opening chromem DB: %v", domain.ErrStoreFailure, err)
	}
	logger.Info("chromem store opened",
		zap.String("path", cfg.Path),
		zap.Bool("compress", cfg.Compress))
	return &Store{db: db, logger: logger}, nil
}

func collectionName(recordingID string) string {
	return "rec_" + recordingID
}

// Add writes all segments of one recording in a single batch. On a write
// failure the recording's collection is dropped so no half-indexed
// recording stays visible to search.
func (s *Store) Add(ctx context.Context, segments []domain.Segment) error {
	if len(segments) == 0 {
		return nil
	}
	recordingID := segments[0].RecordingID
	name := collectionName(recordingID)
	col, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return fmt.Errorf("%w: collection %s: %v", domain.ErrStoreFailure, name, err)
	}

	docs := make([]chromemgo.Document, len(segments))
	for i, seg := range segments {
		if seg.RecordingID != recordingID {
			return fmt.Errorf("%w: batch mixes recordings %s and %s",
				domain.ErrStoreFailure, recordingID, seg.RecordingID)
		}
		docs[i] = chromemgo.Document{
			ID:        seg.ID,
			Content:   seg.Text,
			Embedding: seg.Embedding,
			Metadata: map[string]string{
				"recording_id": seg.RecordingID,
				"start_ms":     strconv.FormatInt(seg.StartMS, 10),
				"end_ms":       strconv.FormatInt(seg.EndMS, 10),
				"content_sha":  seg.ContentSHA,
			},
		}
	}
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		if delErr := s.db.DeleteCollection(name); delErr != nil {
			s.logger.Warn("rollback of partial batch failed",
				zap.String("collection", name), zap.Error(delErr))
		}
		return fmt.Errorf("%w: adding %d segments: %v", domain.ErrStoreFailure, len(docs), err)
	}
	s.logger.Info("segments indexed",
		zap.String("recording_id", recordingID),
		zap.Int("count", len(docs)))
	return nil
}

// Get returns all segments of a recording. Segment IDs are deterministic
// ({recording_id}_{ordinal}), so the collection is walked by ordinal.
func (s *Store) Get(ctx context.Context, recordingID string) ([]domain.Segment, error) {
	col := s.db.GetCollection(collectionName(recordingID), nil)
	if col == nil {
		return nil, nil
	}
	n := col.Count()
	segments := make([]domain.Segment, 0, n)
	for i := 0; i < n; i++ {
		doc, err := col.GetByID(ctx, domain.SegmentID(recordingID, i))
		if err != nil {
			return nil, fmt.Errorf("%w: reading segment %d of %s: %v",
				domain.ErrStoreFailure, i, recordingID, err)
		}
		segments = append(segments, docToSegment(doc, recordingID))
	}
	return segments, nil
}

// Query returns the k nearest segments of a recording by cosine distance.
func (s *Store) Query(ctx context.Context, vector []float32, recordingID string, k int) ([]domain.SearchResult, error) {
	col := s.db.GetCollection(collectionName(recordingID), nil)
	if col == nil {
		return nil, nil
	}
	// chromem requires nResults <= document count.
	if n := col.Count(); n == 0 {
		return nil, nil
	} else if k > n {
		k = n
	}
	results, err := col.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %v", domain.ErrStoreFailure, recordingID, err)
	}
	out := make([]domain.SearchResult, len(results))
	for i, r := range results {
		start, _ := strconv.ParseInt(r.Metadata["start_ms"], 10, 64)
		end, _ := strconv.ParseInt(r.Metadata["end_ms"], 10, 64)
		out[i] = domain.SearchResult{
			SegmentID: r.ID,
			Text:      r.Content,
			StartMS:   start,
			EndMS:     end,
			Distance:  1 - float64(r.Similarity),
		}
	}
	return out, nil
}

func docToSegment(doc chromemgo.Document, recordingID string) domain.Segment {
	start, _ := strconv.ParseInt(doc.Metadata["start_ms"], 10, 64)
	end, _ := strconv.ParseInt(doc.Metadata["end_ms"], 10, 64)
	return domain.Segment{
		ID:          doc.ID,
		RecordingID: recordingID,
		StartMS:     start,
		EndMS:       end,
		Text:        doc.Content,
		Embedding:   doc.Embedding,
		ContentSHA:  doc.Metadata["content_sha"],
	}
}
