package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"audioseek/internal/domain"
	"audioseek/internal/vectorstore"
)

// Retrieval answers read-only requests over indexed recordings.
type Retrieval struct {
	embedder domain.Embedder
	store    vectorstore.Store
	opts     Options
	logger   *zap.Logger
}

func NewRetrieval(embedder domain.Embedder, store vectorstore.Store, opts Options, logger *zap.Logger) *Retrieval {
	opts.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrieval{embedder: embedder, store: store, opts: opts, logger: logger}
}

// Transcript is the time-ordered reconstruction of one recording's
// spoken content. Zero segments means the recording is not indexed (or
// was all silence); that is a normal result, not an error.
type Transcript struct {
	RecordingID string
	Text        string
	Segments    []domain.Segment
}

// GetTranscript fetches all segments of a recording and reconstructs the
// transcript in playback order.
func (r *Retrieval) GetTranscript(ctx context.Context, recordingID string) (Transcript, error) {
	if recordingID == "" {
		return Transcript{}, fmt.Errorf("%w: empty recording ID", domain.ErrInvalidInput)
	}
	segments, err := r.store.Get(ctx, recordingID)
	if err != nil {
		return Transcript{}, err
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].StartMS < segments[j].StartMS })

	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg.Text != "" {
			parts = append(parts, seg.Text)
		}
	}
	return Transcript{
		RecordingID: recordingID,
		Text:        strings.Join(parts, " "),
		Segments:    segments,
	}, nil
}

// Search embeds the query and returns the nearest segments of the
// recording, best match first, dropping anything at or beyond the
// configured distance threshold. Zero results is a normal outcome.
func (r *Retrieval) Search(ctx context.Context, query, recordingID string) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if recordingID == "" {
		return nil, fmt.Errorf("%w: empty recording ID", domain.ErrInvalidInput)
	}
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	candidates, err := r.store.Query(ctx, vector, recordingID, r.opts.TopK)
	if err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(candidates))
	for _, res := range candidates {
		if res.Distance < r.opts.MaxDistance {
			results = append(results, res)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	r.logger.Debug("search complete",
		zap.String("recording_id", recordingID),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(results)))
	return results, nil
}
