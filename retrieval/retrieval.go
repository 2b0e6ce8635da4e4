// Package retrieval provides the similarity index the pipeline uses to pull
// reference documentation snippets for SQL generation: a character splitter
// for chunking source documents, an embedder abstraction with a Google GenAI
// implementation, and a persistent cosine top-k index.
package retrieval

import "context"

// Document is one retrievable chunk of reference text.
type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Index returns the k chunks most related to a query, best first.
type Index interface {
	Search(ctx context.Context, query string, k int) ([]Document, error)
}

// Embedder converts text into a vector for similarity comparison.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
