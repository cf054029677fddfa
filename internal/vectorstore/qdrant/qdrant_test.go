package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audioseek/internal/domain"
)

func TestPointIDIsDeterministicUUID(t *testing.T) {
	id := pointID("rec1_0")
	_, err := uuid.Parse(id)
	require.NoError(t, err, "point ID %q must be a valid UUID", id)
	assert.Equal(t, id, pointID("rec1_0"))
	assert.NotEqual(t, id, pointID("rec1_1"))
}

func TestAddUpsertsUUIDPointIDs(t *testing.T) {
	var gotPoints []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/audioseek":
			_, _ = w.Write([]byte(`{"result":true,"status":"ok"}`))
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/collections/audioseek/points"):
			var body struct {
				Points []map[string]any `json:"points"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			gotPoints = body.Points
			_, _ = w.Write([]byte(`{"result":{"status":"completed"},"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	s := NewStore(Config{URL: srv.URL})
	err := s.Add(context.Background(), []domain.Segment{
		{ID: "rec1_0", RecordingID: "rec1", StartMS: 0, EndMS: 60_000, Text: "first", Embedding: []float32{1, 0}},
		{ID: "rec1_1", RecordingID: "rec1", StartMS: 60_000, EndMS: 120_000, Text: "second", Embedding: []float32{0, 1}},
	})
	require.NoError(t, err)

	require.Len(t, gotPoints, 2)
	for i, p := range gotPoints {
		id, ok := p["id"].(string)
		require.True(t, ok, "point %d id missing", i)
		_, parseErr := uuid.Parse(id)
		assert.NoError(t, parseErr, "point %d id %q is not a UUID", i, id)

		payload, ok := p["payload"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, domain.SegmentID("rec1", i), payload["segment_id"],
			"the segment id must travel in the payload")
	}
}

func TestGetFollowsScrollCursor(t *testing.T) {
	pages := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/points/scroll") {
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		pages++
		if pages == 1 {
			_, hasOffset := req["offset"]
			assert.False(t, hasOffset, "first page must not carry an offset")
			_, _ = w.Write([]byte(`{"result":{"points":[
				{"payload":{"segment_id":"rec1_0","recording_id":"rec1","start_ms":0,"end_ms":60000,"text":"first"}},
				{"payload":{"segment_id":"rec1_1","recording_id":"rec1","start_ms":60000,"end_ms":120000,"text":"second"}}
			],"next_page_offset":"cursor-1"},"status":"ok"}`))
			return
		}
		assert.Equal(t, "cursor-1", req["offset"])
		_, _ = w.Write([]byte(`{"result":{"points":[
			{"payload":{"segment_id":"rec1_2","recording_id":"rec1","start_ms":120000,"end_ms":150000,"text":"third"}}
		],"next_page_offset":null},"status":"ok"}`))
	}))
	t.Cleanup(srv.Close)

	s := NewStore(Config{URL: srv.URL})
	segments, err := s.Get(context.Background(), "rec1")
	require.NoError(t, err)

	assert.Equal(t, 2, pages, "both scroll pages must be fetched")
	require.Len(t, segments, 3)
	assert.Equal(t, "rec1_0", segments[0].ID)
	assert.Equal(t, "rec1_2", segments[2].ID)
	assert.Equal(t, int64(150_000), segments[2].EndMS)
}
