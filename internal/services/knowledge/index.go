package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
)

// Chunking parameters for the rule corpus.
const (
	chunkSize    = 1000
	chunkOverlap = 150
)

// BuildError distinguishes index construction failure (fatal, aborts the job
// before any matching begins) from a per-query failure.
type BuildError struct {
	Err error
}

func (e *BuildError) Error() string { return fmt.Sprintf("knowledge index build failed: %v", e.Err) }

func (e *BuildError) Unwrap() error { return e.Err }

// Index is an in-memory similarity index over the chunks of one rule corpus.
// It is exclusively owned by one job run.
type Index struct {
	chunks   []string
	vectors  [][]float32
	embedder Embedder
}

// BuildIndex splits the corpus, embeds every chunk, and returns a queryable
// index. A corpus that yields zero chunks is a construction failure.
func BuildIndex(ctx context.Context, corpus string, embedder Embedder, logger *zap.Logger) (*Index, error) {
	chunks := SplitText(corpus, chunkSize, chunkOverlap)
	if len(chunks) == 0 {
		return nil, &BuildError{Err: fmt.Errorf("corpus produced no chunks")}
	}

	vectors, err := embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, &BuildError{Err: err}
	}
	logger.Info("knowledge index built", zap.Int("chunks", len(chunks)))
	return &Index{chunks: chunks, vectors: vectors, embedder: embedder}, nil
}

// Query embeds the text and returns the top-k most similar rule snippets,
// most similar first.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]string, error) {
	if k <= 0 {
		k = 4
	}
	query, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	type scored struct {
		idx int
		sim float64
	}
	results := make([]scored, 0, len(ix.vectors))
	for i, vec := range ix.vectors {
		results = append(results, scored{idx: i, sim: cosineSimilarity(query, vec)})
	}
	sort.SliceStable(results, func(a, b int) bool { return results[a].sim > results[b].sim })

	if k > len(results) {
		k = len(results)
	}
	out := make([]string, 0, k)
	for _, r := range results[:k] {
		out = append(out, ix.chunks[r.idx])
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
