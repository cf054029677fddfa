// Package service implements the ingestion orchestrator and the
// retrieval service over indexed recordings.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"audioseek/internal/domain"
	"audioseek/internal/vectorstore"
)

// Options tunes the pipeline and search behavior.
type Options struct {
	// ChunkMS is the nominal chunk length in milliseconds.
	ChunkMS int64

	// Language is the fixed transcription language hint for this deployment.
	Language string

	// WorkspaceRoot is where per-run temporary directories are created.
	// Empty means the system temp dir.
	WorkspaceRoot string

	// TopK is the number of nearest segments requested per search.
	TopK int

	// MaxDistance filters out results at or above this cosine distance.
	MaxDistance float64
}

func (o *Options) applyDefaults() {
	if o.ChunkMS == 0 {
		o.ChunkMS = 60_000
	}
	if o.Language == "" {
		o.Language = "pt"
	}
	if o.TopK == 0 {
		o.TopK = 3
	}
	if o.MaxDistance == 0 {
		o.MaxDistance = 0.6
	}
}

// Ingestor coordinates the indexing pipeline for one recording at a time
// per recording ID. All engine and store dependencies are injected; the
// ingestor holds no global state beyond the per-recording locks.
type Ingestor struct {
	splitter    domain.Splitter
	transcriber domain.Transcriber
	embedder    domain.Embedder
	store       vectorstore.Store
	opts        Options
	locks       *keyedMutex
	logger      *zap.Logger
}

func NewIngestor(splitter domain.Splitter, transcriber domain.Transcriber, embedder domain.Embedder, store vectorstore.Store, opts Options, logger *zap.Logger) *Ingestor {
	opts.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		splitter:    splitter,
		transcriber: transcriber,
		embedder:    embedder,
		store:       store,
		opts:        opts,
		locks:       newKeyedMutex(),
		logger:      logger,
	}
}

var recordingIDRe = regexp.MustCompile(`^[\p{L}\p{N}_-]+$`)

// Ingest runs the full pipeline for one recording: idempotency check,
// scoped workspace, chunking, sequential transcription, batch embedding
// and one atomic store write. The workspace is removed on every exit
// path. Ingestion for the same recording ID is serialized; a rerun over
// identical content is a successful no-op.
func (g *Ingestor) Ingest(ctx context.Context, audioPath, recordingID string) (domain.IngestStatus, error) {
	if !recordingIDRe.MatchString(recordingID) {
		return "", fmt.Errorf("%w: recording ID %q", domain.ErrInvalidInput, recordingID)
	}
	contentSHA, err := hashFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("%w: reading audio %s: %v", domain.ErrInvalidInput, audioPath, err)
	}

	unlock := g.locks.lock(recordingID)
	defer unlock()

	existing, err := g.store.Get(ctx, recordingID)
	if err != nil {
		return "", err
	}
	if len(existing) > 0 {
		if sha := existing[0].ContentSHA; sha != "" && sha != contentSHA {
			return "", fmt.Errorf("%w: %s", domain.ErrContentConflict, recordingID)
		}
		g.logger.Info("recording already indexed, skipping",
			zap.String("recording_id", recordingID))
		return domain.StatusAlreadyIndexed, nil
	}

	workspace, err := os.MkdirTemp(g.opts.WorkspaceRoot, "audioseek-*")
	if err != nil {
		return "", fmt.Errorf("%w: creating workspace: %v", domain.ErrEngineFailure, err)
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			g.logger.Warn("workspace cleanup failed",
				zap.String("workspace", workspace), zap.Error(err))
		}
	}()

	g.logger.Info("ingestion started",
		zap.String("recording_id", recordingID),
		zap.String("workspace", workspace))

	chunks, err := g.splitter.Split(ctx, audioPath, workspace, g.opts.ChunkMS)
	if err != nil {
		return "", fmt.Errorf("segmenting %s: %w", recordingID, err)
	}
	if len(chunks) == 0 {
		g.logger.Info("recording is empty, nothing to index",
			zap.String("recording_id", recordingID))
		return domain.StatusIndexed, nil
	}

	segments, err := g.assemble(ctx, chunks, recordingID, contentSHA)
	if err != nil {
		return "", err
	}
	if err := g.index(ctx, segments); err != nil {
		return "", err
	}

	g.logger.Info("ingestion finished",
		zap.String("recording_id", recordingID),
		zap.Int("segments", len(segments)))
	return domain.StatusIndexed, nil
}

// assemble drives each chunk through the transcription engine in ordinal
// order and produces one segment draft per chunk. A failed chunk aborts
// the run; there is no silent empty-text fallback.
func (g *Ingestor) assemble(ctx context.Context, chunks []domain.Chunk, recordingID, contentSHA string) ([]domain.Segment, error) {
	segments := make([]domain.Segment, 0, len(chunks))
	for _, chunk := range chunks {
		pieces, err := g.transcriber.Transcribe(ctx, chunk.Path, g.opts.Language)
		if err != nil {
			return nil, fmt.Errorf("transcribing chunk %d of %s: %w", chunk.Ordinal, recordingID, err)
		}
		segments = append(segments, domain.Segment{
			ID:          domain.SegmentID(recordingID, chunk.Ordinal),
			RecordingID: recordingID,
			StartMS:     chunk.StartMS,
			EndMS:       chunk.EndMS,
			Text:        joinPieces(pieces),
			ContentSHA:  contentSHA,
		})
	}
	g.logger.Info("transcription complete",
		zap.String("recording_id", recordingID),
		zap.Int("segments", len(segments)))
	return segments, nil
}

// index embeds all segment texts in one order-preserving batch and writes
// the segments to the store in a single call.
func (g *Ingestor) index(ctx context.Context, segments []domain.Segment) error {
	texts := make([]string, len(segments))
	for i, seg := range segments {
		// The embeddings endpoint rejects empty strings; a silent chunk
		// is embedded as a single space so the batch stays aligned.
		if seg.Text == "" {
			texts[i] = " "
			continue
		}
		texts[i] = seg.Text
	}
	vectors, err := g.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %s: %w", segments[0].RecordingID, err)
	}
	if len(vectors) != len(segments) {
		return fmt.Errorf("%w: got %d vectors for %d segments",
			domain.ErrEngineFailure, len(vectors), len(segments))
	}
	for i := range segments {
		segments[i].Embedding = vectors[i]
	}
	return g.store.Add(ctx, segments)
}

// joinPieces concatenates engine output pieces in emission order and
// strips surrounding whitespace; whisper pieces carry their own leading
// spaces.
func joinPieces(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
