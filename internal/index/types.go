// Package index reads the file/chunk/symbol/route index produced by the
// knowledge-base scanner. The scanner itself is a separate job; this package
// only consumes its output.
package index

import (
	"context"
	"fmt"
)

// FileRecord describes one indexed source file. The inheritance lists are
// optional; scanners that do not resolve declarations leave them empty.
type FileRecord struct {
	Path       string   `json:"path"`
	Language   string   `json:"language"`
	SizeBytes  int64    `json:"sizeBytes"`
	Symbols    []string `json:"symbols"` // symbols declared in the file
	Imports    []string `json:"imports"`
	Extends    []string `json:"extends,omitempty"`
	Implements []string `json:"implements,omitempty"`
	Traits     []string `json:"traits,omitempty"` // trait/mixin list
}

// ChunkRecord describes one indexed chunk: a contiguous line range of a file.
type ChunkRecord struct {
	Path        string   `json:"path"`
	StartLine   int      `json:"startLine"`
	EndLine     int      `json:"endLine"`
	Symbols     []string `json:"symbols"` // symbols declared in the chunk
	UsedSymbols []string `json:"usedSymbols"`
	Imports     []string `json:"imports"`
}

// ID returns the chunk's stable identity within a scan.
func (c ChunkRecord) ID() string {
	return fmt.Sprintf("%s:%d-%d", c.Path, c.StartLine, c.EndLine)
}

// Lines returns the number of lines the chunk spans.
func (c ChunkRecord) Lines() int {
	return c.EndLine - c.StartLine + 1
}

// RouteRecord describes one route from the project's route index.
type RouteRecord struct {
	URI        string `json:"uri" yaml:"uri"`
	Method     string `json:"method" yaml:"method"`
	Controller string `json:"controller" yaml:"controller"`
	Action     string `json:"action" yaml:"action"`
	Name       string `json:"name" yaml:"name"`
	View       string `json:"view" yaml:"view"`
}

// Reader provides access to a project's scan index.
type Reader interface {
	// ListFiles returns all indexed files for the project.
	ListFiles(ctx context.Context, projectID string) ([]FileRecord, error)
	// ListChunks returns all indexed chunks for the project.
	ListChunks(ctx context.Context, projectID string) ([]ChunkRecord, error)
	// ListRoutes returns the project's route index.
	ListRoutes(ctx context.Context, projectID string) ([]RouteRecord, error)
	// ScanID returns the identifier of the scan the index was built from.
	ScanID(ctx context.Context, projectID string) (string, error)
}
