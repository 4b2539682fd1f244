package semantic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasworkforce/labor-intel/internal/dataset"
)

type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := s.vectors[text]; ok {
			out[i] = v
		} else {
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return s.Embed(ctx, texts)
}

func TestIndexSearchOrdersByCosine(t *testing.T) {
	idx := NewIndex()
	idx.Insert([]Entry{
		{Text: "a", RowIndex: 0, Vector: []float32{1, 0, 0}},
		{Text: "b", RowIndex: 1, Vector: []float32{0.9, 0.1, 0}},
		{Text: "c", RowIndex: 2, Vector: []float32{0, 1, 0}},
	})

	results := idx.Search([]float32{1, 0, 0}, 2)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Text)
	assert.Equal(t, "b", results[1].Text)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestIndexSearchSkipsDimensionMismatch(t *testing.T) {
	idx := NewIndex()
	idx.Insert([]Entry{
		{Text: "good", Vector: []float32{1, 0}},
		{Text: "bad", Vector: []float32{1, 0, 0}},
	})

	results := idx.Search([]float32{1, 0}, 10)
	require.Len(t, results, 1)
	assert.Equal(t, "good", results[0].Text)
}

func TestIndexSearchEmpty(t *testing.T) {
	idx := NewIndex()
	assert.Nil(t, idx.Search([]float32{1}, 5))
	idx.Insert([]Entry{{Text: "x", Vector: []float32{1}}})
	assert.Nil(t, idx.Search([]float32{1}, 0))
}

func TestBuildIndexAndSearch(t *testing.T) {
	table := dataset.NewTable([]dataset.Record{
		{Occupation: "Accountants", Industry: "Finance", Task: "Draft reports"},
		{Occupation: "Welders", Industry: "Manufacturing", Task: "Weld joints"},
	})

	emb := &stubEmbedder{vectors: map[string][]float32{
		"Accountants | Finance | Draft reports":    {1, 0, 0},
		"Welders | Manufacturing | Weld joints":    {0, 1, 0},
		"queries about drafting financial reports": {0.9, 0.1, 0},
	}}

	idx, err := BuildIndex(context.Background(), table, emb, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	searcher := NewVectorSearcher(emb, idx, nil)
	results, err := searcher.Search(context.Background(), "queries about drafting financial reports", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].RowIndex)
	assert.Equal(t, "Accountants", results[0].Metadata["occupation"])
}
