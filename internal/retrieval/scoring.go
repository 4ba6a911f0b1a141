package retrieval

import (
	"math"
	"sort"
	"strings"

	"aide/internal/index"
	"aide/internal/intent"
	"aide/internal/project"
)

// scoredChunk pairs a candidate with its relevance score and the signals
// that contributed.
type scoredChunk struct {
	record  index.ChunkRecord
	score   float64
	signals []string
}

const (
	completeFileBoost = 1.1
	largeChunkPenalty = 0.9
)

// scoreCandidates computes the weighted six-signal relevance score for every
// candidate, applies the size multipliers, clamps to [0,1], and drops
// candidates at or below the minimum score.
func (e *Engine) scoreCandidates(proj *project.Project, it *intent.Intent, candidates []index.ChunkRecord, entrySet map[string]bool, keywords []string, extents map[string]int) []scoredChunk {
	w := e.cfg.Weights
	primaryPath := domainPathFor(proj, it.Domain.Primary)
	var secondaryPaths []string
	for _, d := range it.Domain.Secondary {
		if p := domainPathFor(proj, d); p != "" {
			secondaryPaths = append(secondaryPaths, p)
		}
	}

	symbolCount := len(it.Entities.Symbols)
	wanted := make(map[string]bool, symbolCount)
	for _, s := range it.Entities.Symbols {
		wanted[s] = true
	}

	var scored []scoredChunk
	for _, c := range candidates {
		var signals []string
		score := 0.0

		if kw := keywordScore(c, keywords); kw > 0 {
			score += w.Keyword * kw
			signals = append(signals, "keyword")
		}
		if ft := fileTypeScore(c.Path, it.Type); ft > 0 {
			score += w.FileType * ft
			signals = append(signals, "file_type")
		}
		if dm := domainScore(c.Path, primaryPath, secondaryPaths); dm > 0 {
			score += w.Domain * dm
			signals = append(signals, "domain")
		}
		if entrySet[c.Path] {
			score += w.Dependency * 1.0
			signals = append(signals, "dependency")
		}
		if looksRouteLayer(c.Path) {
			score += w.Route * 0.5
			signals = append(signals, "route")
		}
		if symbolCount > 0 {
			declared := 0
			for _, s := range c.Symbols {
				if wanted[s] {
					declared++
				}
			}
			if declared > 0 {
				score += w.Symbol * float64(declared) / float64(symbolCount)
				signals = append(signals, "symbol")
			}
		}

		if isCompleteFileChunk(c, extents) {
			score *= completeFileBoost
		}
		if c.Lines() > e.cfg.LargeChunkLines {
			score *= largeChunkPenalty
		}

		score = clampScore(score)
		if score <= e.cfg.MinScore {
			continue
		}
		scored = append(scored, scoredChunk{record: c, score: score, signals: signals})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	return scored
}

// selectDiverseChunks greedily takes chunks in descending score order while
// capping how many may come from one file, so a single hot file cannot crowd
// out the rest of the project.
func (e *Engine) selectDiverseChunks(scored []scoredChunk, maxChunks int) []scoredChunk {
	perFileCap := perFileLimit(maxChunks)
	perFile := make(map[string]int)

	var selected []scoredChunk
	for _, sc := range scored {
		if len(selected) >= maxChunks {
			break
		}
		if perFile[sc.record.Path] >= perFileCap {
			continue
		}
		perFile[sc.record.Path]++
		selected = append(selected, sc)
	}
	return selected
}

// perFileLimit is max(3, ceil(maxChunks/3)).
func perFileLimit(maxChunks int) int {
	limit := int(math.Ceil(float64(maxChunks) / 3.0))
	if limit < 3 {
		limit = 3
	}
	return limit
}

func keywordScore(c index.ChunkRecord, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	haystack := strings.ToLower(c.Path + " " + strings.Join(c.Symbols, " ") + " " + strings.Join(c.UsedSymbols, " "))
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

func domainScore(path, primary string, secondary []string) float64 {
	if primary != "" && strings.HasPrefix(path, primary) {
		return 1.0
	}
	for _, s := range secondary {
		if strings.HasPrefix(path, s) {
			return 0.5
		}
	}
	return 0
}

// fileTypePatterns maps intent types to path patterns of the files that kind
// of change usually touches.
var fileTypePatterns = map[intent.Type]struct {
	primary   []string
	secondary []string
}{
	intent.TypeFeatureRequest: {
		primary:   []string{"app/", "src/"},
		secondary: []string{"routes/", "resources/", "config/"},
	},
	intent.TypeBugFix: {
		primary:   []string{"app/", "src/"},
		secondary: []string{"tests/"},
	},
	intent.TypeTestRequest: {
		primary:   []string{"tests/", "Test.php", ".spec.", "_test."},
		secondary: []string{"app/", "src/"},
	},
	intent.TypeUIComponent: {
		primary:   []string{".vue", ".tsx", ".jsx", "resources/js/"},
		secondary: []string{"resources/css/", "resources/views/"},
	},
	intent.TypeRefactor: {
		primary:   []string{"app/", "src/"},
		secondary: nil,
	},
}

// fileTypeScore returns 1.0 for a primary file-type match, 0.6 for a
// secondary match, 0 otherwise.
func fileTypeScore(path string, t intent.Type) float64 {
	patterns, ok := fileTypePatterns[t]
	if !ok {
		return 0
	}
	for _, p := range patterns.primary {
		if strings.Contains(path, p) {
			return 1.0
		}
	}
	for _, p := range patterns.secondary {
		if strings.Contains(path, p) {
			return 0.6
		}
	}
	return 0
}

// looksRouteLayer reports whether a path follows route, controller, or
// request-object naming.
func looksRouteLayer(path string) bool {
	return strings.HasPrefix(path, "routes/") ||
		strings.Contains(path, "Controller") ||
		strings.Contains(path, "Request") ||
		strings.Contains(path, "Middleware")
}

// isCompleteFileChunk reports whether a chunk spans its file's full indexed
// extent.
func isCompleteFileChunk(c index.ChunkRecord, extents map[string]int) bool {
	return c.StartLine <= 1 && c.EndLine >= extents[c.Path]
}

// chunkExtents maps each path to the last indexed line of its file.
func chunkExtents(chunks []index.ChunkRecord) map[string]int {
	extents := make(map[string]int)
	for _, c := range chunks {
		if c.EndLine > extents[c.Path] {
			extents[c.Path] = c.EndLine
		}
	}
	return extents
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
