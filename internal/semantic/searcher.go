// Package semantic provides the semantic-search boundary: an embedding
// client, an in-memory cosine index over task rows, and the Searcher
// interface the retrieval pipeline depends on.
package semantic

import "context"

// Result is one semantically similar task row.
type Result struct {
	Text     string
	Score    float64
	RowIndex int
	Metadata map[string]string
}

// Searcher finds task rows semantically similar to a query.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]Result, error)
}
