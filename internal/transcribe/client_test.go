package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audioseek/internal/domain"
)

const testKeyEnv = "AUDIOSEEK_TEST_WHISPER_KEY"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv(testKeyEnv, "test-key")
	c, err := NewClient(Config{
		BaseURL:   srv.URL,
		APIKeyEnv: testKeyEnv,
		Model:     "whisper-1",
		Prompt:    "aula de geografia",
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func writeChunk(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunk_0.mp3")
	require.NoError(t, os.WriteFile(path, []byte("fake mp3 bytes"), 0o644))
	return path
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv(testKeyEnv, "")
	_, err := NewClient(Config{APIKeyEnv: testKeyEnv})
	assert.Error(t, err)
}

func TestTranscribeReturnsSegmentPieces(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseMultipartForm(1 << 20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "pt", r.FormValue("language"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))
		assert.Equal(t, "aula de geografia", r.FormValue("prompt"))
		_, header, err := r.FormFile("file")
		assert.NoError(t, err)
		if header != nil {
			assert.Equal(t, "chunk_0.mp3", header.Filename)
		}

		_, _ = w.Write([]byte(`{
			"text": "primeira frase. segunda frase.",
			"segments": [
				{"start": 0.0, "end": 4.2, "text": " primeira frase."},
				{"start": 4.2, "end": 9.8, "text": " segunda frase."}
			]
		}`))
	})

	pieces, err := c.Transcribe(context.Background(), writeChunk(t), "pt")
	require.NoError(t, err)
	assert.Equal(t, []string{" primeira frase.", " segunda frase."}, pieces)
}

func TestTranscribeFallsBackToWholeText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text": "tudo em um pedaço"}`))
	})
	pieces, err := c.Transcribe(context.Background(), writeChunk(t), "pt")
	require.NoError(t, err)
	assert.Equal(t, []string{"tudo em um pedaço"}, pieces)
}

func TestTranscribeEngineErrorSurfaces(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "audio too short"}`, http.StatusBadRequest)
	})
	_, err := c.Transcribe(context.Background(), writeChunk(t), "pt")
	assert.ErrorIs(t, err, domain.ErrEngineFailure)
}

func TestTranscribeMissingChunkFileFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"), "pt")
	assert.ErrorIs(t, err, domain.ErrEngineFailure)
}
