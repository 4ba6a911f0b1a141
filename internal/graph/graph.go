// Package graph builds and traverses the file-level symbol graph: a directed
// graph of import, inheritance, and symbol-usage relationships between the
// indexed files of a project.
package graph

import (
	"sort"
)

// EdgeType identifies the relationship an edge encodes.
type EdgeType string

const (
	EdgeImports    EdgeType = "imports"
	EdgeExtends    EdgeType = "extends"
	EdgeImplements EdgeType = "implements"
	EdgeUsesTrait  EdgeType = "uses_trait"
	EdgeReferences EdgeType = "references"
)

// edgeWeights is the fixed relationship-confidence table. Weights never vary
// per edge instance; they are a property of the relationship type.
var edgeWeights = map[EdgeType]float64{
	EdgeImports:    1.0,
	EdgeExtends:    0.9,
	EdgeImplements: 0.9,
	EdgeUsesTrait:  0.8,
	EdgeReferences: 0.5,
}

// WeightFor returns the confidence weight for an edge type.
func WeightFor(t EdgeType) float64 {
	return edgeWeights[t]
}

// Node holds the symbol-level facts known about one source file.
type Node struct {
	Path       string   `json:"path"`
	Language   string   `json:"language"`
	SizeBytes  int64    `json:"sizeBytes"`
	Declared   []string `json:"declared"`
	Used       []string `json:"used"`
	Imports    []string `json:"imports"`
	Extends    []string `json:"extends,omitempty"`
	Implements []string `json:"implements,omitempty"`
	Traits     []string `json:"traits,omitempty"`
}

// Edge is a directed, typed relationship between two files.
type Edge struct {
	From   string   `json:"from"`
	To     string   `json:"to"`
	Type   EdgeType `json:"type"`
	Weight float64  `json:"weight"`
}

// Graph is the in-memory symbol graph. It is built wholesale per scan and is
// safe for concurrent readers once built.
type Graph struct {
	nodes     map[string]*Node
	order     []string // insertion order of nodes
	out       map[string][]Edge
	edgeKeys  map[string]struct{} // dedup per (from,to,type)
	edgeCount int
	truncated bool
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		out:      make(map[string][]Edge),
		edgeKeys: make(map[string]struct{}),
	}
}

// AddNode registers a node, replacing nothing if the path already exists.
func (g *Graph) AddNode(n *Node) {
	if _, ok := g.nodes[n.Path]; ok {
		return
	}
	g.nodes[n.Path] = n
	g.order = append(g.order, n.Path)
}

// Node returns the node for a path, or nil.
func (g *Graph) Node(path string) *Node {
	return g.nodes[path]
}

// AddEdge adds a directed edge. Self-edges are rejected; duplicate
// (from, to, type) triples are deduplicated. Distinct relationship types
// between the same pair remain independent edges.
func (g *Graph) AddEdge(from, to string, t EdgeType) bool {
	if from == to {
		return false
	}
	if _, ok := g.nodes[from]; !ok {
		return false
	}
	if _, ok := g.nodes[to]; !ok {
		return false
	}
	key := from + "\x00" + to + "\x00" + string(t)
	if _, dup := g.edgeKeys[key]; dup {
		return false
	}
	g.edgeKeys[key] = struct{}{}
	g.out[from] = append(g.out[from], Edge{From: from, To: to, Type: t, Weight: WeightFor(t)})
	g.edgeCount++
	return true
}

// OutEdges returns the outgoing edges of a node in insertion order.
func (g *Graph) OutEdges(path string) []Edge {
	return g.out[path]
}

// NumNodes returns the node count.
func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

// NumEdges returns the edge count.
func (g *Graph) NumEdges() int {
	return g.edgeCount
}

// Truncated reports whether the build hit the node cap.
func (g *Graph) Truncated() bool {
	return g.truncated
}

// Paths returns all node paths in insertion order.
func (g *Graph) Paths() []string {
	return g.order
}

// RelatedFile annotates one file reachable from a traversal origin.
type RelatedFile struct {
	Path     string   `json:"path"`
	Relation EdgeType `json:"relation"` // relation of the edge that reached it
	Depth    int      `json:"depth"`
	Weight   float64  `json:"weight"` // cumulative path weight
}

// Related performs a breadth-first traversal from path up to maxDepth hops.
// At each frontier, edges are visited by weight descending, ties broken by
// insertion order, so the first writer for a reachable path is the strongest
// relationship. The origin itself is not included.
func (g *Graph) Related(path string, maxDepth int) []RelatedFile {
	if maxDepth <= 0 {
		return nil
	}
	if _, ok := g.nodes[path]; !ok {
		return nil
	}

	visited := map[string]bool{path: true}
	var results []RelatedFile

	type frontierEntry struct {
		path   string
		weight float64
	}
	frontier := []frontierEntry{{path: path, weight: 1.0}}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []frontierEntry
		for _, fe := range frontier {
			edges := g.sortedEdges(fe.path)
			for _, e := range edges {
				if visited[e.To] {
					continue
				}
				visited[e.To] = true
				cumulative := fe.weight * e.Weight
				results = append(results, RelatedFile{
					Path:     e.To,
					Relation: e.Type,
					Depth:    depth,
					Weight:   cumulative,
				})
				next = append(next, frontierEntry{path: e.To, weight: cumulative})
			}
		}
		frontier = next
	}

	return results
}

// sortedEdges returns a node's out-edges ordered by weight descending with
// insertion order as the tie-breaker.
func (g *Graph) sortedEdges(path string) []Edge {
	raw := g.out[path]
	if len(raw) <= 1 {
		return raw
	}
	edges := make([]Edge, len(raw))
	copy(edges, raw)
	sort.SliceStable(edges, func(i, j int) bool {
		return edges[i].Weight > edges[j].Weight
	})
	return edges
}
