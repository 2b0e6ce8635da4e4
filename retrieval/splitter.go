package retrieval

import (
	"strings"
)

// Splitter chunks reference documents into overlapping pieces small enough
// to embed and stuff into a generation prompt. It splits on the most
// structural separator available, falling back to finer ones when a piece is
// still too large.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// NewSplitter returns a splitter tuned for SQL documentation pages.
func NewSplitter() *Splitter {
	return &Splitter{
		ChunkSize:    500,
		ChunkOverlap: 50,
		Separators:   []string{"\n\n", "\n", ".", "!", "?", ",", " ", ""},
	}
}

// Split breaks text into chunks of at most ChunkSize characters with
// ChunkOverlap characters of carry-over between consecutive chunks.
func (s *Splitter) Split(text string) []string {
	var chunks []string
	for _, piece := range s.split(text, s.Separators) {
		piece = strings.TrimSpace(piece)
		if piece != "" {
			chunks = append(chunks, piece)
		}
	}
	return chunks
}

func (s *Splitter) split(text string, separators []string) []string {
	if len(text) <= s.ChunkSize {
		return []string{text}
	}

	sep := ""
	rest := separators
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var parts []string
	if sep == "" {
		parts = splitEvery(text, s.ChunkSize)
	} else {
		parts = strings.SplitAfter(text, sep)
	}

	var chunks []string
	var current string
	for _, part := range parts {
		if len(part) > s.ChunkSize {
			if current != "" {
				chunks = append(chunks, current)
				current = s.carryOver(current)
			}
			chunks = append(chunks, s.split(part, rest)...)
			continue
		}
		if len(current)+len(part) > s.ChunkSize {
			chunks = append(chunks, current)
			current = s.carryOver(current)
		}
		current += part
	}
	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// carryOver returns the tail of the previous chunk that seeds the next one.
func (s *Splitter) carryOver(chunk string) string {
	if s.ChunkOverlap <= 0 || len(chunk) <= s.ChunkOverlap {
		return ""
	}
	return chunk[len(chunk)-s.ChunkOverlap:]
}

func splitEvery(text string, n int) []string {
	var parts []string
	for len(text) > n {
		parts = append(parts, text[:n])
		text = text[n:]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}
