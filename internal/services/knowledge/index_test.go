package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeEmbedder maps known texts to fixed vectors and everything else to a
// zero-ish default.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0.01, 0.01, 0.01}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func TestBuildIndex_EmptyCorpus(t *testing.T) {
	_, err := BuildIndex(context.Background(), "   ", &fakeEmbedder{}, zap.NewNop())
	var buildErr *BuildError
	assert.ErrorAs(t, err, &buildErr)
}

func TestBuildIndex_EmbedFailure(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("quota exceeded")}
	_, err := BuildIndex(context.Background(), "tolerance rules", emb, zap.NewNop())
	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestBuildIndex_QueryRoundTrip(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"fees are charged monthly": {1, 0, 0},
	}}
	ix, err := BuildIndex(context.Background(), "fees are charged monthly", emb, zap.NewNop())
	require.NoError(t, err)

	got, err := ix.Query(context.Background(), "fees", 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"fees are charged monthly"}, got)
}

func TestQuery_RanksBySimilarity(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"fees are charged monthly":       {1, 0, 0},
		"amounts within 100 still match": {0, 1, 0},
		"timing differences are normal":  {0, 0, 1},
		"amount tolerance question":      {0, 1, 0.1},
	}}

	ix := &Index{
		chunks: []string{
			"fees are charged monthly",
			"amounts within 100 still match",
			"timing differences are normal",
		},
		vectors:  [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		embedder: emb,
	}

	got, err := ix.Query(context.Background(), "amount tolerance question", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "amounts within 100 still match", got[0])
	assert.Equal(t, "timing differences are normal", got[1])
}

func TestQuery_DefaultsAndClamping(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{}}
	ix := &Index{
		chunks:   []string{"a", "b"},
		vectors:  [][]float32{{1, 0, 0}, {0, 1, 0}},
		embedder: emb,
	}

	got, err := ix.Query(context.Background(), "anything", 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = ix.Query(context.Background(), "anything", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestQuery_EmbedFailure(t *testing.T) {
	ix := &Index{
		chunks:   []string{"a"},
		vectors:  [][]float32{{1}},
		embedder: &fakeEmbedder{err: errors.New("connection refused")},
	}
	_, err := ix.Query(context.Background(), "anything", 4)
	assert.ErrorContains(t, err, "failed to embed query")
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 2}, []float32{1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
