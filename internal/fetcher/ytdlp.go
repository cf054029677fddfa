// Package fetcher resolves remote video URLs to local audio files via
// yt-dlp. The recording identifier is derived from the video title,
// sanitized to an identifier-safe string.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"audioseek/internal/domain"
)

// YTDLP downloads the best audio track of a video as m4a.
type YTDLP struct {
	bin    string
	dir    string
	logger *zap.Logger
}

// New creates a fetcher writing downloads into dir. An empty bin falls
// back to "yt-dlp" on PATH.
func New(bin, dir string, logger *zap.Logger) *YTDLP {
	if bin == "" {
		bin = "yt-dlp"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YTDLP{bin: bin, dir: dir, logger: logger}
}

// Fetch resolves the video title first (so metadata failures surface
// before any download work), then downloads and extracts the audio.
func (f *YTDLP) Fetch(ctx context.Context, url string) (domain.Download, error) {
	if strings.TrimSpace(url) == "" {
		return domain.Download{}, fmt.Errorf("%w: empty URL", domain.ErrInvalidInput)
	}
	title, err := f.title(ctx, url)
	if err != nil {
		return domain.Download{}, err
	}
	recordingID := SanitizeTitle(title)
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return domain.Download{}, fmt.Errorf("%w: creating %s: %v", domain.ErrFetchFailure, f.dir, err)
	}

	outTemplate := filepath.Join(f.dir, recordingID+".%(ext)s")
	cmd := exec.CommandContext(ctx, f.bin,
		"--no-playlist", "--quiet",
		"-f", "bestaudio/best",
		"-x", "--audio-format", "m4a",
		"-o", outTemplate,
		url,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return domain.Download{}, fmt.Errorf("%w: downloading %s: %v: %s",
			domain.ErrFetchFailure, url, err, strings.TrimSpace(stderr.String()))
	}

	path := filepath.Join(f.dir, recordingID+".m4a")
	if _, err := os.Stat(path); err != nil {
		return domain.Download{}, fmt.Errorf("%w: expected audio at %s: %v", domain.ErrFetchFailure, path, err)
	}
	f.logger.Info("remote audio downloaded",
		zap.String("url", url),
		zap.String("recording_id", recordingID),
		zap.String("path", path))
	return domain.Download{Path: path, RecordingID: recordingID, Title: title}, nil
}

func (f *YTDLP) title(ctx context.Context, url string) (string, error) {
	cmd := exec.CommandContext(ctx, f.bin,
		"--no-playlist", "--quiet",
		"--skip-download",
		"--print", "title",
		url,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: resolving title of %s: %v: %s",
			domain.ErrFetchFailure, url, err, strings.TrimSpace(stderr.String()))
	}
	title := strings.TrimSpace(string(out))
	if title == "" {
		return "", fmt.Errorf("%w: %s has no title", domain.ErrFetchFailure, url)
	}
	return title, nil
}

// SanitizeTitle maps a human-readable title to an identifier-safe
// recording ID: every non-alphanumeric rune becomes an underscore.
func SanitizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
