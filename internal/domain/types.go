// Package domain holds the core types shared across the audio indexing
// and retrieval pipeline.
package domain

import "fmt"

// SourceKind tells where a recording's audio came from.
type SourceKind string

const (
	SourceUpload SourceKind = "upload"
	SourceRemote SourceKind = "remote"
)

// IngestStatus is the outcome of an ingestion run.
type IngestStatus string

const (
	// StatusIndexed means the recording was segmented, transcribed and
	// written to the vector store during this run.
	StatusIndexed IngestStatus = "indexed"

	// StatusAlreadyIndexed means the recording was found in the store and
	// no work was performed. This is a successful no-op, not an error.
	StatusAlreadyIndexed IngestStatus = "already_indexed"
)

// Recording is one source audio item. It exists implicitly through its
// segments; the ID is the sole partition key in the vector store.
type Recording struct {
	ID     string
	Source SourceKind
}

// Chunk is one time-bounded slice of a recording's audio, materialized as
// an encoded file in the ingestion workspace.
type Chunk struct {
	Ordinal int
	StartMS int64
	EndMS   int64
	Path    string
}

// Segment is one time-bounded slice of a recording's transcript.
// Segments are immutable once written and are created in a single batch
// per ingestion run.
type Segment struct {
	ID          string
	RecordingID string
	StartMS     int64
	EndMS       int64
	Text        string
	Embedding   []float32

	// ContentSHA is the SHA-256 of the source audio, used to detect the
	// same recording ID arriving with different content.
	ContentSHA string
}

// SearchResult is a transient match from semantic search. Distance is a
// cosine distance: 0 = identical, 2 = maximally dissimilar.
type SearchResult struct {
	SegmentID string
	Text      string
	StartMS   int64
	EndMS     int64
	Distance  float64
}

// Download is the result of fetching a remote audio source.
type Download struct {
	Path        string
	RecordingID string
	Title       string
}

// SegmentID builds the deterministic segment identifier for a chunk
// ordinal, matching playback order.
func SegmentID(recordingID string, ordinal int) string {
	return fmt.Sprintf("%s_%d", recordingID, ordinal)
}
