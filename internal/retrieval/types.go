// Package retrieval gathers, scores, and trims the code context handed to
// the reasoning service for an intent.
package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"aide/internal/graph"
	"aide/internal/index"
	"aide/internal/routes"
)

// Chunk is one retrieved piece of code context. Never mutated after creation.
type Chunk struct {
	ChunkID         string   `json:"chunkId"`
	Path            string   `json:"path"`
	StartLine       int      `json:"startLine"`
	EndLine         int      `json:"endLine"`
	ContentHash     string   `json:"contentHash"`
	Content         string   `json:"content"`
	RelevanceScore  float64  `json:"relevanceScore"`
	MatchedSignals  []string `json:"matchedSignals,omitempty"`
	DeclaredSymbols []string `json:"declaredSymbols,omitempty"`
	Imports         []string `json:"imports,omitempty"`
	Language        string   `json:"language,omitempty"`
	IsCompleteFile  bool     `json:"isCompleteFile"`
}

// Result is the outcome of one retrieval call. It is a value object; the
// token-budget transform returns a new, smaller instance.
type Result struct {
	Chunks        []Chunk                   `json:"chunks"`
	Files         []string                  `json:"files"`
	EntryPoints   []string                  `json:"entryPoints"`
	Dependencies  map[string]graph.EdgeType `json:"dependencies,omitempty"` // path -> relation
	RelatedRoutes []routes.Match            `json:"relatedRoutes,omitempty"`
	Metadata      map[string]interface{}    `json:"metadata,omitempty"`
}

// EmptyResult builds a Result carrying only an error message, the shape every
// retrieval failure collapses to.
func EmptyResult(errMsg string) Result {
	return Result{
		Chunks:   []Chunk{},
		Files:    []string{},
		Metadata: map[string]interface{}{"error": errMsg},
	}
}

// Snapshot is the per-scan view of a project the engine retrieves against.
// Built once per scan (see store.Cache) and safe for concurrent readers.
type Snapshot struct {
	ScanID string
	Files  []index.FileRecord
	Chunks []index.ChunkRecord
	Graph  *graph.Graph
	Routes *routes.Resolver
}

// EstimateTokens approximates the token count of text the way the provider
// bills it: roughly four characters per token.
func EstimateTokens(s string) int {
	return len(s) / 4
}

// TotalTokens estimates the token footprint of all chunk content.
func (r Result) TotalTokens() int {
	total := 0
	for _, c := range r.Chunks {
		total += EstimateTokens(c.Content)
	}
	return total
}

// LimitToTokenBudget returns a copy of the result trimmed to fit the budget:
// lowest-relevance chunks are dropped first, and a final over-budget chunk is
// truncated. The receiver is never mutated. A non-positive budget returns the
// result unchanged.
func (r Result) LimitToTokenBudget(budget int) Result {
	if budget <= 0 || r.TotalTokens() <= budget {
		return r
	}

	chunks := make([]Chunk, len(r.Chunks))
	copy(chunks, r.Chunks)
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].RelevanceScore > chunks[j].RelevanceScore
	})

	kept := chunks[:0]
	remaining := budget
	for _, c := range chunks {
		cost := EstimateTokens(c.Content)
		if cost <= remaining {
			kept = append(kept, c)
			remaining -= cost
			continue
		}
		// Truncate rather than drop when there is still meaningful room.
		if remaining > 100 {
			truncated := c
			truncated.Content = c.Content[:remaining*4]
			kept = append(kept, truncated)
			remaining = 0
		}
	}

	out := Result{
		Chunks:        kept,
		EntryPoints:   r.EntryPoints,
		Dependencies:  r.Dependencies,
		RelatedRoutes: r.RelatedRoutes,
		Metadata:      make(map[string]interface{}, len(r.Metadata)+1),
	}
	for k, v := range r.Metadata {
		out.Metadata[k] = v
	}
	out.Metadata["token_limited"] = true
	out.Files = distinctFiles(kept)
	return out
}

func distinctFiles(chunks []Chunk) []string {
	seen := make(map[string]bool)
	var files []string
	for _, c := range chunks {
		if !seen[c.Path] {
			seen[c.Path] = true
			files = append(files, c.Path)
		}
	}
	return files
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:8])
}
