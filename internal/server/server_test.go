package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audioseek/internal/domain"
	"audioseek/internal/service"
	"audioseek/internal/vectorstore/memory"
)

type stubSplitter struct{ durationMS int64 }

func (s stubSplitter) Split(ctx context.Context, audioPath, dir string, chunkMS int64) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for start := int64(0); start < s.durationMS; start += chunkMS {
		end := start + chunkMS
		if end > s.durationMS {
			end = s.durationMS
		}
		chunks = append(chunks, domain.Chunk{Ordinal: len(chunks), StartMS: start, EndMS: end, Path: audioPath})
	}
	return chunks, nil
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(ctx context.Context, audioPath, language string) ([]string, error) {
	return []string{"some spoken words"}, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0}
	}
	return vectors, nil
}

func (stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type stubFetcher struct {
	download domain.Download
	err      error
}

func (f stubFetcher) Fetch(ctx context.Context, url string) (domain.Download, error) {
	return f.download, f.err
}

const echoContentType = "Content-Type"

func newTestServer(t *testing.T, fetch domain.Fetcher, store *memory.Store) *Server {
	t.Helper()
	opts := service.Options{ChunkMS: 60_000}
	ingestor := service.NewIngestor(stubSplitter{durationMS: 150_000}, stubTranscriber{}, stubEmbedder{}, store, opts, nil)
	retrieval := service.NewRetrieval(stubEmbedder{}, store, opts, nil)
	return New(ingestor, retrieval, fetch, t.TempDir(), nil)
}

func multipartUpload(t *testing.T, filename string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.Copy(fw, strings.NewReader("audio bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestUploadIngestsAndCleansInbox(t *testing.T) {
	store := memory.NewStore()
	s := newTestServer(t, stubFetcher{}, store)

	body, contentType := multipartUpload(t, "Aula 3 Rios.mp3")
	req := httptest.NewRequest(http.MethodPost, "/ingest/upload", body)
	req.Header.Set(echoContentType, contentType)
	rec := doRequest(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		RecordingID string `json:"recording_id"`
		Status      string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Aula_3_Rios", resp.RecordingID)
	assert.Equal(t, "indexed", resp.Status)

	segments, err := store.Get(context.Background(), "Aula_3_Rios")
	require.NoError(t, err)
	assert.Len(t, segments, 3)

	// inbox must not retain the uploaded file
	entries, err := os.ReadDir(s.inboxDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadSecondTimeIsAlreadyIndexed(t *testing.T) {
	store := memory.NewStore()
	s := newTestServer(t, stubFetcher{}, store)

	for i, wantStatus := range []string{"indexed", "already_indexed"} {
		body, contentType := multipartUpload(t, "lecture.mp3")
		req := httptest.NewRequest(http.MethodPost, "/ingest/upload", body)
		req.Header.Set(echoContentType, contentType)
		rec := doRequest(s, req)

		require.Equal(t, http.StatusOK, rec.Code, "attempt %d: %s", i, rec.Body.String())
		var resp struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, wantStatus, resp.Status, "attempt %d", i)
	}
}

// disconnectingTranscriber cancels the HTTP request context on its first
// call, the way a client vanishing mid-ingestion would.
type disconnectingTranscriber struct {
	cancel context.CancelFunc
	calls  int
}

func (d *disconnectingTranscriber) Transcribe(ctx context.Context, audioPath, language string) ([]string, error) {
	d.calls++
	if d.calls == 1 {
		d.cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEngineFailure, err)
	}
	return []string{"spoken words"}, nil
}

func TestUploadSurvivesClientDisconnect(t *testing.T) {
	store := memory.NewStore()
	reqCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	transcriber := &disconnectingTranscriber{cancel: cancel}

	opts := service.Options{ChunkMS: 60_000}
	ingestor := service.NewIngestor(stubSplitter{durationMS: 150_000}, transcriber, stubEmbedder{}, store, opts, nil)
	retrieval := service.NewRetrieval(stubEmbedder{}, store, opts, nil)
	s := New(ingestor, retrieval, stubFetcher{}, t.TempDir(), nil)

	body, contentType := multipartUpload(t, "lecture.mp3")
	req := httptest.NewRequest(http.MethodPost, "/ingest/upload", body).WithContext(reqCtx)
	req.Header.Set(echoContentType, contentType)
	rec := doRequest(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, transcriber.calls, "the run must finish after the caller goes away")
	segments, err := store.Get(context.Background(), "lecture")
	require.NoError(t, err)
	assert.Len(t, segments, 3)
}

func TestUploadConflictingContentIsRejected(t *testing.T) {
	store := memory.NewStore()
	s := newTestServer(t, stubFetcher{}, store)

	for i, content := range []string{"first take", "second take"} {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile("file", "lecture.mp3")
		require.NoError(t, err)
		_, err = io.Copy(fw, strings.NewReader(content))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/ingest/upload", &body)
		req.Header.Set(echoContentType, mw.FormDataContentType())
		rec := doRequest(s, req)
		if i == 0 {
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		} else {
			assert.Equal(t, http.StatusConflict, rec.Code)
		}
	}
}

func TestUploadWithoutFileIsBadRequest(t *testing.T) {
	s := newTestServer(t, stubFetcher{}, memory.NewStore())
	req := httptest.NewRequest(http.MethodPost, "/ingest/upload", nil)
	rec := doRequest(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoteIngestHappyPath(t *testing.T) {
	store := memory.NewStore()
	audioPath := filepath.Join(t.TempDir(), "Aula_4_Clima.m4a")
	require.NoError(t, os.WriteFile(audioPath, []byte("remote audio"), 0o644))
	s := newTestServer(t, stubFetcher{download: domain.Download{
		Path:        audioPath,
		RecordingID: "Aula_4_Clima",
		Title:       "Aula 4: Clima",
	}}, store)

	req := httptest.NewRequest(http.MethodPost, "/ingest/remote",
		strings.NewReader(`{"url":"https://example.com/watch?v=abc"}`))
	req.Header.Set(echoContentType, "application/json")
	rec := doRequest(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		RecordingID string `json:"recording_id"`
		Status      string `json:"status"`
		Title       string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Aula_4_Clima", resp.RecordingID)
	assert.Equal(t, "indexed", resp.Status)
	assert.Equal(t, "Aula 4: Clima", resp.Title)

	segments, err := store.Get(context.Background(), "Aula_4_Clima")
	require.NoError(t, err)
	assert.Len(t, segments, 3)
}

func TestRemoteIngestRequiresURL(t *testing.T) {
	s := newTestServer(t, stubFetcher{}, memory.NewStore())
	req := httptest.NewRequest(http.MethodPost, "/ingest/remote", strings.NewReader(`{"url":"  "}`))
	req.Header.Set(echoContentType, "application/json")
	rec := doRequest(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoteFetchFailureIsBadGateway(t *testing.T) {
	s := newTestServer(t, stubFetcher{
		err: fmt.Errorf("%w: video unavailable", domain.ErrFetchFailure),
	}, memory.NewStore())
	req := httptest.NewRequest(http.MethodPost, "/ingest/remote",
		strings.NewReader(`{"url":"https://example.com/gone"}`))
	req.Header.Set(echoContentType, "application/json")
	rec := doRequest(s, req)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSearchRequiresQueryAndRecording(t *testing.T) {
	s := newTestServer(t, stubFetcher{}, memory.NewStore())
	for _, target := range []string{"/search", "/search?query=rios", "/search?recording_id=rec1"} {
		rec := doRequest(s, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestSearchReturnsMatches(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.Add(context.Background(), []domain.Segment{
		{ID: "rec1_0", RecordingID: "rec1", StartMS: 0, EndMS: 60_000, Text: "sobre rios", Embedding: []float32{1, 0}},
		{ID: "rec1_1", RecordingID: "rec1", StartMS: 60_000, EndMS: 120_000, Text: "sobre montanhas", Embedding: []float32{0, 1}},
	}))
	s := newTestServer(t, stubFetcher{}, store)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/search?query=rios&recording_id=rec1", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Results []struct {
			SegmentID string  `json:"segment_id"`
			Distance  float64 `json:"distance"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// the orthogonal segment sits at distance 1 and is filtered out
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "rec1_0", resp.Results[0].SegmentID)
	assert.InDelta(t, 0, resp.Results[0].Distance, 1e-9)
}

func TestTranscriptOfUnknownRecordingIsEmptyOK(t *testing.T) {
	s := newTestServer(t, stubFetcher{}, memory.NewStore())
	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/transcript?recording_id=ghost", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Text     string            `json:"text"`
		Segments []json.RawMessage `json:"segments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Text)
	assert.Empty(t, resp.Segments)
}

func TestTranscriptRequiresRecordingID(t *testing.T) {
	s := newTestServer(t, stubFetcher{}, memory.NewStore())
	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/transcript", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
