// Package segmenter splits an audio file into fixed-duration, ordered
// chunks using ffmpeg. Chunk ordinals drive segment time ranges
// downstream, so ordinal assignment must match playback order exactly.
package segmenter

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"audioseek/internal/domain"
)

// Span is one planned chunk time range, half-open [StartMS, EndMS).
type Span struct {
	Ordinal int
	StartMS int64
	EndMS   int64
}

// Plan computes the chunk spans for a recording of durationMS.
// It produces ceil(durationMS/chunkMS) contiguous, non-overlapping spans
// covering [0, durationMS); only the final span may be shorter than
// chunkMS. A zero duration yields no spans.
func Plan(durationMS, chunkMS int64) []Span {
	if durationMS <= 0 || chunkMS <= 0 {
		return nil
	}
	n := int((durationMS + chunkMS - 1) / chunkMS)
	spans := make([]Span, n)
	for i := 0; i < n; i++ {
		start := int64(i) * chunkMS
		end := start + chunkMS
		if end > durationMS {
			end = durationMS
		}
		spans[i] = Span{Ordinal: i, StartMS: start, EndMS: end}
	}
	return spans
}

// Segmenter materializes chunk spans as mp3 files via ffmpeg.
type Segmenter struct {
	ffmpeg  string
	ffprobe string
	logger  *zap.Logger
}

// New creates a Segmenter. Empty binary paths fall back to the commands
// on PATH; a nil logger falls back to a no-op logger.
func New(ffmpegBin, ffprobeBin string, logger *zap.Logger) *Segmenter {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Segmenter{ffmpeg: ffmpegBin, ffprobe: ffprobeBin, logger: logger}
}

// Duration probes the total duration of an audio file in milliseconds.
func (s *Segmenter) Duration(ctx context.Context, audioPath string) (int64, error) {
	cmd := exec.CommandContext(ctx, s.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("%w: ffprobe %s: %v: %s",
			domain.ErrEngineFailure, audioPath, err, strings.TrimSpace(stderr.String()))
	}
	return parseDurationMS(string(out))
}

// Split chunks audioPath into mp3 files inside dir, one per planned span,
// named chunk_<ordinal>.mp3 so the ordinal stays recoverable by parsing.
// The returned chunks are in playback order. A zero-duration input yields
// zero chunks and no error.
func (s *Segmenter) Split(ctx context.Context, audioPath, dir string, chunkMS int64) ([]domain.Chunk, error) {
	durationMS, err := s.Duration(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	spans := Plan(durationMS, chunkMS)
	if len(spans) == 0 {
		s.logger.Info("audio has zero duration, nothing to chunk",
			zap.String("audio", audioPath))
		return nil, nil
	}

	chunks := make([]domain.Chunk, 0, len(spans))
	for _, sp := range spans {
		out := filepath.Join(dir, ChunkFileName(sp.Ordinal))
		cmd := exec.CommandContext(ctx, s.ffmpeg,
			"-y", "-v", "error",
			"-ss", formatSeconds(sp.StartMS),
			"-t", formatSeconds(sp.EndMS-sp.StartMS),
			"-i", audioPath,
			"-vn",
			"-codec:a", "libmp3lame",
			out,
		)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("%w: ffmpeg chunk %d: %v: %s",
				domain.ErrEngineFailure, sp.Ordinal, err, strings.TrimSpace(stderr.String()))
		}
		chunks = append(chunks, domain.Chunk{
			Ordinal: sp.Ordinal,
			StartMS: sp.StartMS,
			EndMS:   sp.EndMS,
			Path:    out,
		})
	}
	s.logger.Info("audio chunked",
		zap.String("audio", audioPath),
		zap.Int64("duration_ms", durationMS),
		zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// ChunkFileName returns the workspace file name for a chunk ordinal.
func ChunkFileName(ordinal int) string {
	return fmt.Sprintf("chunk_%d.mp3", ordinal)
}

// ChunkOrdinal parses the ordinal back out of a chunk file name.
func ChunkOrdinal(name string) (int, error) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	num, ok := strings.CutPrefix(base, "chunk_")
	if !ok {
		return 0, fmt.Errorf("not a chunk file name: %s", name)
	}
	return strconv.Atoi(num)
}

func parseDurationMS(out string) (int64, error) {
	raw := strings.TrimSpace(out)
	if raw == "" || raw == "N/A" {
		return 0, fmt.Errorf("%w: ffprobe reported no duration", domain.ErrEngineFailure)
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parsing ffprobe duration %q: %v", domain.ErrEngineFailure, raw, err)
	}
	if secs < 0 {
		return 0, fmt.Errorf("%w: negative duration %q", domain.ErrEngineFailure, raw)
	}
	return int64(math.Round(secs * 1000)), nil
}

func formatSeconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', 3, 64)
}
