// Package qdrant provides a minimal REST client to Qdrant as an
// alternative vector store. It uses cosine distance and creates the
// collection on first write.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"audioseek/internal/domain"
)

// Config contains connection details for a Qdrant server.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Store implements vectorstore.Store against a Qdrant collection shared
// by all recordings, filtered by recording_id payload.
type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "audioseek"
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *Store) ensureCollection(ctx context.Context, dimension int) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	// Qdrant returns 200 OK if the collection already exists with the same schema.
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body)
}

// Add upserts all segments of one ingestion run in a single wait=true call.
func (s *Store) Add(ctx context.Context, segments []domain.Segment) error {
	if len(segments) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, len(segments[0].Embedding)); err != nil {
		return fmt.Errorf("%w: ensuring collection: %v", domain.ErrStoreFailure, err)
	}
	points := make([]map[string]any, len(segments))
	for i, seg := range segments {
		points[i] = map[string]any{
			"id":     pointID(seg.ID),
			"vector": seg.Embedding,
			"payload": map[string]any{
				"recording_id": seg.RecordingID,
				"segment_id":   seg.ID,
				"start_ms":     seg.StartMS,
				"end_ms":       seg.EndMS,
				"text":         seg.Text,
				"content_sha":  seg.ContentSHA,
			},
		}
	}
	body := map[string]any{"points": points}
	if err := s.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body); err != nil {
		return fmt.Errorf("%w: upserting %d segments: %v", domain.ErrStoreFailure, len(points), err)
	}
	return nil
}

// pointID derives the Qdrant point ID for a segment. Qdrant only accepts
// unsigned integers or UUIDs as point IDs, so the segment ID is mapped to
// a deterministic UUIDv5 and travels in the payload instead.
func pointID(segmentID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(segmentID)).String()
}

func recordingFilter(recordingID string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": "recording_id", "match": map[string]any{"value": recordingID}},
		},
	}
}

const scrollPageSize = 256

// Get scrolls all points of a recording, following next_page_offset until
// the cursor is exhausted.
func (s *Store) Get(ctx context.Context, recordingID string) ([]domain.Segment, error) {
	var segments []domain.Segment
	var offset any
	for {
		req := map[string]any{
			"filter":       recordingFilter(recordingID),
			"with_payload": true,
			"limit":        scrollPageSize,
		}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points []struct {
					Payload map[string]any `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/scroll", s.url, s.collection), req, &resp); err != nil {
			return nil, fmt.Errorf("%w: scrolling %s: %v", domain.ErrStoreFailure, recordingID, err)
		}
		for _, p := range resp.Result.Points {
			segments = append(segments, payloadToSegment(p.Payload, recordingID))
		}
		if resp.Result.NextPageOffset == nil {
			return segments, nil
		}
		offset = resp.Result.NextPageOffset
	}
}

// Query searches the k nearest segments of a recording; Qdrant's cosine
// score is a similarity, converted here to a distance.
func (s *Store) Query(ctx context.Context, vector []float32, recordingID string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"filter":       recordingFilter(recordingID),
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, fmt.Errorf("%w: searching %s: %v", domain.ErrStoreFailure, recordingID, err)
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		seg := payloadToSegment(r.Payload, recordingID)
		results = append(results, domain.SearchResult{
			SegmentID: seg.ID,
			Text:      seg.Text,
			StartMS:   seg.StartMS,
			EndMS:     seg.EndMS,
			Distance:  1 - r.Score,
		})
	}
	return results, nil
}

func payloadToSegment(payload map[string]any, recordingID string) domain.Segment {
	seg := domain.Segment{RecordingID: recordingID}
	if v, ok := payload["segment_id"].(string); ok {
		seg.ID = v
	}
	if v, ok := payload["text"].(string); ok {
		seg.Text = v
	}
	if v, ok := payload["content_sha"].(string); ok {
		seg.ContentSHA = v
	}
	seg.StartMS = payloadInt64(payload["start_ms"])
	seg.EndMS = payloadInt64(payload["end_ms"])
	return seg
}

func payloadInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case json.Number:
		i, _ := strconv.ParseInt(n.String(), 10, 64)
		return i
	default:
		return 0
	}
}

func (s *Store) putJSON(ctx context.Context, url string, body any) error {
	data, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (s *Store) postJSON(ctx context.Context, url string, body any, out any) error {
	data, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		dec := json.NewDecoder(resp.Body)
		return dec.Decode(out)
	}
	return nil
}
