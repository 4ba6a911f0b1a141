package graph

import (
	"path"
	"strings"

	"aide/internal/config"
	"aide/internal/index"
	"aide/internal/logging"
)

// Builder constructs a Graph from scan-index records.
type Builder struct {
	cfg    config.GraphConfig
	logger *logging.Logger
}

// NewBuilder creates a graph builder.
func NewBuilder(cfg config.GraphConfig, logger *logging.Logger) *Builder {
	if cfg.MaxNodes <= 0 {
		cfg.MaxNodes = 5000
	}
	return &Builder{cfg: cfg, logger: logger}
}

// Build runs two passes: file records create nodes, chunk records enrich
// used-symbol and import lists, then edges are derived per source node.
// Graphs over the node cap are truncated and flagged, never rejected.
func (b *Builder) Build(files []index.FileRecord, chunks []index.ChunkRecord) *Graph {
	g := NewGraph()

	for _, f := range files {
		if g.NumNodes() >= b.cfg.MaxNodes {
			g.truncated = true
			b.logger.Warn("Symbol graph truncated at node cap", map[string]interface{}{
				"maxNodes": b.cfg.MaxNodes,
				"files":    len(files),
			})
			break
		}
		g.AddNode(&Node{
			Path:       f.Path,
			Language:   f.Language,
			SizeBytes:  f.SizeBytes,
			Declared:   append([]string(nil), f.Symbols...),
			Imports:    append([]string(nil), f.Imports...),
			Extends:    f.Extends,
			Implements: f.Implements,
			Traits:     f.Traits,
		})
	}

	// Second pass: chunk-level data fills in used symbols and any imports the
	// file pass missed. Imports are deduplicated by path equality.
	for _, c := range chunks {
		n := g.Node(c.Path)
		if n == nil {
			continue
		}
		n.Used = mergeUnique(n.Used, c.UsedSymbols)
		n.Imports = mergeUnique(n.Imports, c.Imports)
	}

	b.buildEdges(g)

	b.logger.Debug("Symbol graph built", map[string]interface{}{
		"nodes":     g.NumNodes(),
		"edges":     g.NumEdges(),
		"truncated": g.Truncated(),
	})
	return g
}

func (b *Builder) buildEdges(g *Graph) {
	resolver := newImportResolver(g, b.cfg)
	declaredBy := declarationIndex(g)

	for _, from := range g.Paths() {
		n := g.Node(from)

		for _, imp := range n.Imports {
			if target := resolver.resolve(from, imp); target != "" {
				g.AddEdge(from, target, EdgeImports)
			}
		}

		for _, parent := range n.Extends {
			for _, target := range declaredBy[parent] {
				g.AddEdge(from, target, EdgeExtends)
			}
		}
		for _, iface := range n.Implements {
			for _, target := range declaredBy[iface] {
				g.AddEdge(from, target, EdgeImplements)
			}
		}
		for _, trait := range n.Traits {
			for _, target := range declaredBy[trait] {
				g.AddEdge(from, target, EdgeUsesTrait)
			}
		}

		for _, sym := range n.Used {
			for _, target := range declaredBy[sym] {
				g.AddEdge(from, target, EdgeReferences)
			}
		}
	}
}

// declarationIndex maps each declared symbol to every file declaring it.
func declarationIndex(g *Graph) map[string][]string {
	idx := make(map[string][]string)
	for _, p := range g.Paths() {
		for _, sym := range g.Node(p).Declared {
			idx[sym] = append(idx[sym], p)
		}
	}
	return idx
}

// importResolver resolves import strings to node paths.
type importResolver struct {
	g           *Graph
	cfg         config.GraphConfig
	lowerPaths  map[string]string // lowercase path -> path
	byBasename  map[string][]string
	sortedPaths []string
}

func newImportResolver(g *Graph, cfg config.GraphConfig) *importResolver {
	r := &importResolver{
		g:          g,
		cfg:        cfg,
		lowerPaths: make(map[string]string),
		byBasename: make(map[string][]string),
	}
	for _, p := range g.Paths() {
		r.lowerPaths[strings.ToLower(p)] = p
		base := strings.ToLower(stripExt(path.Base(p)))
		r.byBasename[base] = append(r.byBasename[base], p)
		r.sortedPaths = append(r.sortedPaths, p)
	}
	return r
}

// resolve maps one import string from a source file to a node path, or ""
// when the import points outside the indexed tree (stdlib, vendor, package
// manager).
func (r *importResolver) resolve(from, imp string) string {
	if imp == "" {
		return ""
	}

	if strings.HasPrefix(imp, "./") || strings.HasPrefix(imp, "../") {
		return r.resolveRelative(from, imp)
	}
	if r.cfg.RootAlias != "" && strings.HasPrefix(imp, r.cfg.RootAlias) {
		rebased := r.cfg.RootPath + strings.TrimPrefix(imp, r.cfg.RootAlias)
		return r.resolveNamespace(rebased)
	}
	return r.resolveNamespace(imp)
}

// resolveRelative walks ./ and ../ segments against the importing file's
// directory.
func (r *importResolver) resolveRelative(from, imp string) string {
	joined := path.Clean(path.Join(path.Dir(from), imp))
	if exact := r.lookupWithExtensions(joined); exact != "" {
		return exact
	}
	return ""
}

// resolveNamespace tries, in order: exact path, case-insensitive suffix
// match, then bare-name match against node basenames.
func (r *importResolver) resolveNamespace(imp string) string {
	normalized := strings.ReplaceAll(imp, "\\", "/")

	if exact := r.lookupWithExtensions(normalized); exact != "" {
		return exact
	}

	lowered := strings.ToLower(normalized)
	for _, p := range r.sortedPaths {
		lp := strings.ToLower(stripExt(p))
		if strings.HasSuffix(lp, lowered) {
			return p
		}
	}

	base := strings.ToLower(lastSegment(normalized))
	if candidates := r.byBasename[base]; len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}

// lookupWithExtensions finds a node for a path that may omit its extension.
func (r *importResolver) lookupWithExtensions(p string) string {
	if r.g.Node(p) != nil {
		return p
	}
	if hit, ok := r.lowerPaths[strings.ToLower(p)]; ok {
		return hit
	}
	for _, ext := range []string{".php", ".ts", ".tsx", ".js", ".jsx", ".py", ".go", ".vue"} {
		candidate := p + ext
		if r.g.Node(candidate) != nil {
			return candidate
		}
		if hit, ok := r.lowerPaths[strings.ToLower(candidate)]; ok {
			return hit
		}
	}
	return ""
}

func stripExt(name string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		return name[:idx]
	}
	return name
}

func lastSegment(p string) string {
	segs := strings.Split(p, "/")
	return stripExt(segs[len(segs)-1])
}

func mergeUnique(existing, extra []string) []string {
	if len(extra) == 0 {
		return existing
	}
	seen := make(map[string]bool, len(existing))
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range extra {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		existing = append(existing, s)
	}
	return existing
}
