package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// MemoryIndex is an in-process cosine-similarity index. Entries carry their
// vectors so the index can be persisted to disk and reloaded without
// re-embedding the corpus.
type MemoryIndex struct {
	embedder Embedder
	entries  []indexEntry
}

type indexEntry struct {
	Document Document  `json:"document"`
	Vector   []float32 `json:"vector"`
}

var _ Index = (*MemoryIndex)(nil)

func NewMemoryIndex(embedder Embedder) *MemoryIndex {
	return &MemoryIndex{embedder: embedder}
}

// Len returns the number of indexed chunks.
func (x *MemoryIndex) Len() int {
	return len(x.entries)
}

// Add embeds the documents and appends them to the index.
func (x *MemoryIndex) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	vectors, err := x.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}

	for i, doc := range docs {
		x.entries = append(x.entries, indexEntry{Document: doc, Vector: vectors[i]})
	}
	return nil
}

// Search embeds the query and returns the k most similar chunks, best first.
func (x *MemoryIndex) Search(ctx context.Context, query string, k int) ([]Document, error) {
	if len(x.entries) == 0 || k <= 0 {
		return nil, nil
	}

	queryVec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	type scored struct {
		doc   Document
		score float64
	}
	scores := make([]scored, 0, len(x.entries))
	for _, entry := range x.entries {
		scores = append(scores, scored{doc: entry.Document, score: cosineSimilarity(queryVec, entry.Vector)})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	if k > len(scores) {
		k = len(scores)
	}
	docs := make([]Document, k)
	for i := 0; i < k; i++ {
		docs[i] = scores[i].doc
	}
	return docs, nil
}

// Save writes the index to path as JSON.
func (x *MemoryIndex) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create index directory: %w", err)
		}
	}
	data, err := json.Marshal(x.entries)
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

// Load replaces the index contents with the entries stored at path.
func (x *MemoryIndex) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}
	var entries []indexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to decode index: %w", err)
	}
	x.entries = entries
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
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
