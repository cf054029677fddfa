// Package transcribe provides a speech-to-text client for
// OpenAI-compatible /v1/audio/transcriptions endpoints (OpenAI, or a
// local faster-whisper server exposing the same API).
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"audioseek/internal/domain"
)

// Config configures the transcription client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	// Prompt is an optional fixed hint (domain jargon, spelling) passed
	// to the engine with every chunk.
	Prompt  string
	Timeout time.Duration
}

// Client calls a whisper-style transcription endpoint once per chunk.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	prompt  string
	client  *http.Client
}

// NewClient creates a transcription client from the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 10 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  key,
		model:   cfg.Model,
		prompt:  cfg.Prompt,
		client:  &http.Client{Timeout: t},
	}, nil
}

type verboseResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe uploads one audio chunk and returns the engine's text pieces
// in emission order. When the engine reports internal segments they are
// returned individually; otherwise the whole text is a single piece.
func (c *Client) Transcribe(ctx context.Context, audioPath, language string) ([]string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening chunk: %v", domain.ErrEngineFailure, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := map[string]string{
		"model":           c.model,
		"language":        language,
		"response_format": "verbose_json",
	}
	if c.prompt != "" {
		fields["prompt"] = c.prompt
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("%w: building request: %v", domain.ErrEngineFailure, err)
		}
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", domain.ErrEngineFailure, err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("%w: reading chunk: %v", domain.ErrEngineFailure, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%w: building request: %v", domain.ErrEngineFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEngineFailure, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEngineFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: transcription http %d: %s",
			domain.ErrEngineFailure, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding transcription: %v", domain.ErrEngineFailure, err)
	}
	if len(out.Segments) == 0 {
		return []string{out.Text}, nil
	}
	pieces := make([]string, len(out.Segments))
	for i, seg := range out.Segments {
		pieces[i] = seg.Text
	}
	return pieces, nil
}
