package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"aide/internal/config"
	"aide/internal/graph"
	"aide/internal/index"
	"aide/internal/intent"
	"aide/internal/logging"
	"aide/internal/project"
	"aide/internal/redact"
	"aide/internal/routes"
)

// Options tunes one retrieval call. Zero values fall back to config defaults.
type Options struct {
	MaxChunks           int
	TokenBudget         int
	IncludeDependencies bool
	Depth               int
}

// Engine is the context-retrieval engine.
type Engine struct {
	cfg      config.RetrievalConfig
	graphCfg config.GraphConfig
	redactor *redact.Redactor
	logger   *logging.Logger
}

// NewEngine creates a retrieval engine.
func NewEngine(cfg config.RetrievalConfig, graphCfg config.GraphConfig, redactor *redact.Redactor, logger *logging.Logger) *Engine {
	return &Engine{cfg: cfg, graphCfg: graphCfg, redactor: redactor, logger: logger}
}

const maxEntryPoints = 10

// Retrieve runs the full retrieval pipeline. It never returns an error:
// failures and panics collapse into an empty Result carrying the error in
// metadata, so retrieval can never take down the orchestrator.
func (e *Engine) Retrieve(ctx context.Context, proj *project.Project, snap *Snapshot, it *intent.Intent, message string, opts Options) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Retrieval panicked", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
			result = EmptyResult(fmt.Sprintf("retrieval failed: %v", r))
		}
	}()

	res, err := e.retrieve(ctx, proj, snap, it, message, opts)
	if err != nil {
		e.logger.Warn("Retrieval failed", map[string]interface{}{
			"error": err.Error(),
		})
		return EmptyResult(err.Error())
	}
	return res
}

func (e *Engine) retrieve(ctx context.Context, proj *project.Project, snap *Snapshot, it *intent.Intent, message string, opts Options) (Result, error) {
	if snap == nil {
		return Result{}, fmt.Errorf("no snapshot for project %s", proj.ID)
	}
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = e.cfg.MaxChunks
	}
	if opts.TokenBudget <= 0 {
		opts.TokenBudget = e.cfg.TokenBudget
	}
	if opts.Depth <= 0 {
		opts.Depth = 2
	}
	if opts.Depth > e.graphCfg.MaxDepth {
		opts.Depth = e.graphCfg.MaxDepth
	}

	keywords := extractKeywords(message)

	entryPoints := e.identifyEntryPoints(proj, snap, it, message, keywords)
	entrySet := make(map[string]bool, len(entryPoints))
	for _, p := range entryPoints {
		entrySet[p] = true
	}

	candidates := e.gatherCandidates(proj, snap, it, entrySet, keywords, opts.MaxChunks)

	scored := e.scoreCandidates(proj, it, candidates, entrySet, keywords, chunkExtents(snap.Chunks))
	selected := e.selectDiverseChunks(scored, opts.MaxChunks)

	var deps map[string]graph.EdgeType
	if opts.IncludeDependencies && snap.Graph != nil {
		deps = e.expandDependencies(snap.Graph, entryPoints, opts.Depth)
	}

	routeMatches := e.correlateRoutes(snap, it, message)

	chunks := e.materialize(proj, snap, selected)

	result := Result{
		Chunks:        chunks,
		Files:         distinctFiles(chunks),
		EntryPoints:   entryPoints,
		Dependencies:  deps,
		RelatedRoutes: routeMatches,
		Metadata: map[string]interface{}{
			"scan_id":    snap.ScanID,
			"candidates": len(candidates),
			"keywords":   keywords,
		},
	}

	budget := opts.TokenBudget
	if budget > 0 {
		result = result.LimitToTokenBudget(budget)
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return result, nil
}

// identifyEntryPoints unions the four entry-point sources, deduplicated and
// capped at maxEntryPoints.
func (e *Engine) identifyEntryPoints(proj *project.Project, snap *Snapshot, it *intent.Intent, message string, keywords []string) []string {
	seen := make(map[string]bool)
	var entries []string
	add := func(path string) {
		if path != "" && !seen[path] && len(entries) < maxEntryPoints {
			seen[path] = true
			entries = append(entries, path)
		}
	}

	// (a) explicitly mentioned files, matched by substring against the index.
	for _, mentioned := range it.Entities.Files {
		lowered := strings.ToLower(mentioned)
		for _, f := range snap.Files {
			if strings.Contains(strings.ToLower(f.Path), lowered) {
				add(f.Path)
			}
		}
	}

	// (b) files behind routes matched from the message text, when route-like
	// keywords are present.
	if snap.Routes != nil && hasRouteKeywords(message) {
		for _, m := range snap.Routes.MatchDescription(message) {
			if stack, ok := snap.Routes.RouteStack(m.Route.URI); ok {
				add(stack.HandlerPath)
				add(stack.RequestPath)
				add(stack.ModelPath)
			}
		}
	}

	// (c) top files under the intent's primary domain path.
	if domainPath := domainPathFor(proj, it.Domain.Primary); domainPath != "" {
		for _, f := range snap.Files {
			if strings.HasPrefix(f.Path, domainPath) {
				add(f.Path)
			}
		}
	}

	// (d) files declaring any mentioned symbol.
	if len(it.Entities.Symbols) > 0 {
		want := make(map[string]bool, len(it.Entities.Symbols))
		for _, s := range it.Entities.Symbols {
			want[s] = true
		}
		for _, f := range snap.Files {
			for _, sym := range f.Symbols {
				if want[sym] {
					add(f.Path)
					break
				}
			}
		}
	}

	return entries
}

// gatherCandidates unions chunks from every candidate source, deduplicated by
// chunk identity and capped at three times the selection size.
func (e *Engine) gatherCandidates(proj *project.Project, snap *Snapshot, it *intent.Intent, entrySet map[string]bool, keywords []string, maxChunks int) []index.ChunkRecord {
	limit := 3 * maxChunks
	seen := make(map[string]bool)
	var candidates []index.ChunkRecord
	add := func(c index.ChunkRecord) {
		id := c.ID()
		if !seen[id] && len(candidates) < limit {
			seen[id] = true
			candidates = append(candidates, c)
		}
	}

	domainPath := domainPathFor(proj, it.Domain.Primary)
	priorityPaths := frameworkPriorityPaths(proj)
	symbolWanted := make(map[string]bool, len(it.Entities.Symbols))
	for _, s := range it.Entities.Symbols {
		symbolWanted[s] = true
	}

	routeFiles := make(map[string]bool)
	if snap.Routes != nil {
		for _, m := range snap.Routes.MatchDescription(strings.Join(keywords, " ")) {
			if stack, ok := snap.Routes.RouteStack(m.Route.URI); ok {
				for _, p := range []string{stack.HandlerPath, stack.RequestPath, stack.ResourcePath, stack.ModelPath} {
					if p != "" {
						routeFiles[p] = true
					}
				}
			}
		}
	}

	for _, c := range snap.Chunks {
		switch {
		case entrySet[c.Path]:
			add(c)
		case matchesKeywords(c, keywords):
			add(c)
		case domainPath != "" && strings.HasPrefix(c.Path, domainPath):
			add(c)
		case routeFiles[c.Path]:
			add(c)
		case declaresAny(c, symbolWanted):
			add(c)
		case underAny(c.Path, priorityPaths):
			add(c)
		case fileTypeScore(c.Path, it.Type) > 0:
			add(c)
		}
	}

	return candidates
}

// expandDependencies walks the symbol graph outward from each entry point.
// The first writer for a path wins: a stronger or closer relationship seen
// earlier is never overwritten by a weaker one seen later.
func (e *Engine) expandDependencies(g *graph.Graph, entryPoints []string, depth int) map[string]graph.EdgeType {
	deps := make(map[string]graph.EdgeType)
	for _, entry := range entryPoints {
		for _, rel := range g.Related(entry, depth) {
			if _, exists := deps[rel.Path]; !exists {
				deps[rel.Path] = rel.Relation
			}
		}
	}
	return deps
}

const maxRelatedRoutes = 5

// correlateRoutes resolves the best-matching routes for display when the
// request looks route-related.
func (e *Engine) correlateRoutes(snap *Snapshot, it *intent.Intent, message string) []routes.Match {
	if snap.Routes == nil || !isRouteRelated(message, it) {
		return nil
	}
	matches := snap.Routes.MatchDescription(message)
	if len(matches) > maxRelatedRoutes {
		matches = matches[:maxRelatedRoutes]
	}
	return matches
}

// materialize reads each selected chunk's live content, redacts it, and wraps
// it into a Chunk.
func (e *Engine) materialize(proj *project.Project, snap *Snapshot, selected []scoredChunk) []Chunk {
	languages := make(map[string]string, len(snap.Files))
	for _, f := range snap.Files {
		languages[f.Path] = f.Language
	}

	chunks := make([]Chunk, 0, len(selected))
	for _, sc := range selected {
		content, complete, ok := readLineRange(proj.Root, sc.record.Path, sc.record.StartLine, sc.record.EndLine)
		if !ok {
			e.logger.Debug("Skipping unreadable chunk", map[string]interface{}{
				"path": sc.record.Path,
			})
			continue
		}
		content = e.redactor.Redact(content, sc.record.Path)

		chunks = append(chunks, Chunk{
			ChunkID:         sc.record.ID(),
			Path:            sc.record.Path,
			StartLine:       sc.record.StartLine,
			EndLine:         sc.record.EndLine,
			ContentHash:     hashContent(content),
			Content:         content,
			RelevanceScore:  sc.score,
			MatchedSignals:  sc.signals,
			DeclaredSymbols: sc.record.Symbols,
			Imports:         sc.record.Imports,
			Language:        languages[sc.record.Path],
			IsCompleteFile:  complete,
		})
	}
	return chunks
}

// readLineRange reads [start, end] (1-based, inclusive) from the live file.
// The second return reports whether the range covers the whole file.
func readLineRange(root, path string, start, end int) (string, bool, bool) {
	data, err := os.ReadFile(filepath.Join(root, path))
	if err != nil {
		return "", false, false
	}
	lines := strings.Split(string(data), "\n")
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return "", false, false
	}
	complete := start == 1 && end >= len(lines)-1
	return strings.Join(lines[start-1:end], "\n"), complete, true
}

// domainPathFor maps a domain name to its path prefix, preferring the
// project's explicit mapping over the conventional defaults.
func domainPathFor(proj *project.Project, domain string) string {
	if domain == "" {
		return ""
	}
	if p := proj.DomainPath(domain); p != "" {
		return p
	}
	return project.DefaultDomainPaths()[strings.ToLower(domain)]
}

func matchesKeywords(c index.ChunkRecord, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	haystack := strings.ToLower(c.Path + " " + strings.Join(c.Symbols, " ") + " " + strings.Join(c.UsedSymbols, " "))
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func declaresAny(c index.ChunkRecord, wanted map[string]bool) bool {
	if len(wanted) == 0 {
		return false
	}
	for _, sym := range c.Symbols {
		if wanted[sym] {
			return true
		}
	}
	return false
}

func underAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// frameworkPriorityPaths maps the detected tech stack to the directories a
// change is most likely to land in.
func frameworkPriorityPaths(proj *project.Project) []string {
	var paths []string
	if proj.UsesFramework("laravel") {
		paths = append(paths, "app/Http/Controllers/", "app/Models/", "routes/")
	}
	if proj.UsesFramework("vue") {
		paths = append(paths, "resources/js/")
	}
	if proj.UsesFramework("react") || proj.UsesFramework("next") {
		paths = append(paths, "src/components/", "src/pages/")
	}
	if proj.UsesFramework("express") {
		paths = append(paths, "src/routes/", "src/controllers/")
	}
	sort.Strings(paths)
	return paths
}
