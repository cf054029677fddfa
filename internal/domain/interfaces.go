package domain

import "context"

// Transcriber converts one audio chunk into text using a fixed language
// hint. Engines may emit multiple ordered pieces per chunk; callers
// concatenate them in emission order.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) ([]string, error)
}

// Embedder converts free text into fixed-length numeric vectors.
// Embed is order-preserving: vector i corresponds to texts[i].
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Splitter slices an audio file into fixed-duration, ordered chunks
// materialized inside dir.
type Splitter interface {
	Split(ctx context.Context, audioPath, dir string, chunkMS int64) ([]Chunk, error)
}

// Fetcher resolves a remote video URL to a local audio file and a
// sanitized recording identifier.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Download, error)
}
