package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/atlasworkforce/labor-intel/internal/dataset"
	"github.com/atlasworkforce/labor-intel/internal/observability"
)

// Entry is one indexed task row.
type Entry struct {
	Text     string
	RowIndex int
	Metadata map[string]string
	Vector   []float32
}

// Index is an in-memory cosine-similarity index over task rows.
type Index struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{}
}

// Insert adds entries to the index.
func (idx *Index) Insert(entries []Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = append(idx.entries, entries...)
}

// Len returns the number of indexed entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Search returns the k entries most similar to the query vector. Entries
// with a different dimension are skipped rather than failing the search.
func (idx *Index) Search(query []float32, k int) []Result {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if k <= 0 || len(idx.entries) == 0 {
		return nil
	}

	scored := make([]Result, 0, len(idx.entries))
	for _, e := range idx.entries {
		if len(e.Vector) != len(query) {
			continue
		}
		scored = append(scored, Result{
			Text:     e.Text,
			Score:    cosine(query, e.Vector),
			RowIndex: e.RowIndex,
			Metadata: e.Metadata,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// VectorSearcher implements Searcher over an Embedder and an Index.
type VectorSearcher struct {
	embedder Embedder
	index    *Index
	log      *observability.Logger
}

// NewVectorSearcher creates a VectorSearcher.
func NewVectorSearcher(embedder Embedder, index *Index, log *observability.Logger) *VectorSearcher {
	if log == nil {
		log = observability.DefaultLogger()
	}
	return &VectorSearcher{embedder: embedder, index: index, log: log}
}

// Search embeds the query and returns the k most similar task rows.
func (s *VectorSearcher) Search(ctx context.Context, query string, k int) ([]Result, error) {
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}

	results := s.index.Search(vecs[0], k)
	s.log.Debug().Int("k", k).Int("results", len(results)).Msg("vector search")
	return results, nil
}

// RowText renders a dataset record as the text that gets embedded.
func RowText(rec dataset.Record) string {
	return rec.Occupation + " | " + rec.Industry + " | " + rec.Task
}

// BatchEmbedder embeds large text sets in batches.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// BuildIndex embeds every row of the table and returns a populated index.
func BuildIndex(ctx context.Context, table *dataset.Table, embedder BatchEmbedder, log *observability.Logger) (*Index, error) {
	if log == nil {
		log = observability.DefaultLogger()
	}

	texts := make([]string, table.Len())
	for i, rec := range table.Records {
		texts[i] = RowText(rec)
	}

	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed dataset: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d rows", len(vectors), len(texts))
	}

	idx := NewIndex()
	entries := make([]Entry, 0, len(texts))
	for i, vec := range vectors {
		rec := table.Records[i]
		entries = append(entries, Entry{
			Text:     texts[i],
			RowIndex: i,
			Vector:   vec,
			Metadata: map[string]string{
				"occupation": rec.Occupation,
				"industry":   rec.Industry,
			},
		})
	}
	idx.Insert(entries)

	log.Info().Int("rows", idx.Len()).Msg("built semantic index")
	return idx, nil
}
