// Package server exposes the ingestion and retrieval operations over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"audioseek/internal/domain"
	"audioseek/internal/fetcher"
	"audioseek/internal/service"
)

// Server wires the HTTP routes to the core service.
type Server struct {
	echo      *echo.Echo
	ingestor  *service.Ingestor
	retrieval *service.Retrieval
	fetcher   domain.Fetcher
	inboxDir  string
	logger    *zap.Logger
}

// New builds the server with its routes registered.
func New(ingestor *service.Ingestor, retrieval *service.Retrieval, f domain.Fetcher, inboxDir string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, ingestor: ingestor, retrieval: retrieval, fetcher: f, inboxDir: inboxDir, logger: logger}
	e.POST("/ingest/upload", s.handleUpload)
	e.POST("/ingest/remote", s.handleRemote)
	e.GET("/search", s.handleSearch)
	e.GET("/transcript", s.handleTranscript)
	return s
}

// Echo exposes the underlying router, mainly for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Start begins serving on addr and blocks until the listener fails.
func (s *Server) Start(addr string) error { return s.echo.Start(addr) }

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error { return s.echo.Shutdown(ctx) }

type ingestResponse struct {
	RecordingID string              `json:"recording_id"`
	Status      domain.IngestStatus `json:"status"`
	Title       string              `json:"title,omitempty"`
}

type searchResponse struct {
	Query       string                `json:"query"`
	RecordingID string                `json:"recording_id"`
	Results     []searchResultPayload `json:"results"`
}

type searchResultPayload struct {
	SegmentID string  `json:"segment_id"`
	Text      string  `json:"text"`
	StartMS   int64   `json:"start_ms"`
	EndMS     int64   `json:"end_ms"`
	Distance  float64 `json:"distance"`
}

type transcriptResponse struct {
	RecordingID string                  `json:"recording_id"`
	Text        string                  `json:"text"`
	Segments    []transcriptSegmentBody `json:"segments"`
}

type transcriptSegmentBody struct {
	SegmentID string `json:"segment_id"`
	Text      string `json:"text"`
	StartMS   int64  `json:"start_ms"`
	EndMS     int64  `json:"end_ms"`
}

// handleUpload receives an audio file, stores it in the inbox, ingests it
// and removes the original after a successful run.
func (s *Server) handleUpload(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file field")
	}
	base := strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
	recordingID := fetcher.SanitizeTitle(base)
	if recordingID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "file name yields no recording id")
	}

	if err := os.MkdirAll(s.inboxDir, 0o755); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "saving upload")
	}
	dst := filepath.Join(s.inboxDir, recordingID+filepath.Ext(file.Filename))
	if err := saveUpload(file, dst); err != nil {
		s.logger.Error("saving upload failed", zap.String("path", dst), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "saving upload")
	}

	// A started run must finish or fail on its own; a caller that
	// disconnects does not abort it.
	status, err := s.ingestor.Ingest(context.WithoutCancel(c.Request().Context()), dst, recordingID)
	if removeErr := os.Remove(dst); removeErr != nil {
		s.logger.Warn("removing uploaded audio failed",
			zap.String("path", dst), zap.Error(removeErr))
	}
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, ingestResponse{RecordingID: recordingID, Status: status})
}

// handleRemote downloads the audio of a remote video and ingests it. The
// downloaded file is kept so callers can reuse it.
func (s *Server) handleRemote(c echo.Context) error {
	var req struct {
		URL string `json:"url"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.URL) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url is required")
	}

	dl, err := s.fetcher.Fetch(c.Request().Context(), req.URL)
	if err != nil {
		return s.mapError(err)
	}
	status, err := s.ingestor.Ingest(context.WithoutCancel(c.Request().Context()), dl.Path, dl.RecordingID)
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, ingestResponse{
		RecordingID: dl.RecordingID,
		Status:      status,
		Title:       dl.Title,
	})
}

func (s *Server) handleSearch(c echo.Context) error {
	query := c.QueryParam("query")
	recordingID := c.QueryParam("recording_id")
	if query == "" || recordingID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query and recording_id are required")
	}
	results, err := s.retrieval.Search(c.Request().Context(), query, recordingID)
	if err != nil {
		return s.mapError(err)
	}
	payload := make([]searchResultPayload, 0, len(results))
	for _, r := range results {
		payload = append(payload, searchResultPayload{
			SegmentID: r.SegmentID,
			Text:      r.Text,
			StartMS:   r.StartMS,
			EndMS:     r.EndMS,
			Distance:  r.Distance,
		})
	}
	return c.JSON(http.StatusOK, searchResponse{
		Query:       query,
		RecordingID: recordingID,
		Results:     payload,
	})
}

func (s *Server) handleTranscript(c echo.Context) error {
	recordingID := c.QueryParam("recording_id")
	if recordingID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "recording_id is required")
	}
	transcript, err := s.retrieval.GetTranscript(c.Request().Context(), recordingID)
	if err != nil {
		return s.mapError(err)
	}
	segments := make([]transcriptSegmentBody, 0, len(transcript.Segments))
	for _, seg := range transcript.Segments {
		segments = append(segments, transcriptSegmentBody{
			SegmentID: seg.ID,
			Text:      seg.Text,
			StartMS:   seg.StartMS,
			EndMS:     seg.EndMS,
		})
	}
	return c.JSON(http.StatusOK, transcriptResponse{
		RecordingID: transcript.RecordingID,
		Text:        transcript.Text,
		Segments:    segments,
	})
}

// mapError translates the error taxonomy to HTTP statuses.
func (s *Server) mapError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrContentConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrFetchFailure):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func saveUpload(file *multipart.FileHeader, dst string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, src)
	return err
}
