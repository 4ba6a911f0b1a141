// Package routes maps URL-pattern-like descriptors to the files implementing
// them: handler, request object, resource object, model, template, and page
// component, located by framework naming convention.
package routes

import (
	"sort"
	"strings"

	"aide/internal/index"
	"aide/internal/logging"
)

// Match pairs a route with its score against a pattern or description.
type Match struct {
	Route index.RouteRecord `json:"route"`
	Score float64           `json:"score"`
}

// Resolver resolves route patterns against a project's route index. File
// existence checks run against the scan index, which mirrors the scanned
// working tree.
type Resolver struct {
	routes []index.RouteRecord
	files  map[string]bool
	logger *logging.Logger
}

// NewResolver creates a resolver over a route index and the indexed file set.
func NewResolver(routes []index.RouteRecord, files []index.FileRecord, logger *logging.Logger) *Resolver {
	fileSet := make(map[string]bool, len(files))
	for _, f := range files {
		fileSet[f.Path] = true
	}
	return &Resolver{routes: routes, files: fileSet, logger: logger}
}

// httpVerbs are tokens stripped from the front of a pattern during
// normalization.
var httpVerbs = map[string]bool{
	"get": true, "post": true, "put": true, "patch": true,
	"delete": true, "head": true, "options": true,
}

// normalizePattern strips a leading HTTP verb token, lowercases, and trims
// surrounding slashes.
func normalizePattern(pattern string) string {
	fields := strings.Fields(strings.TrimSpace(pattern))
	if len(fields) > 1 && httpVerbs[strings.ToLower(fields[0])] {
		fields = fields[1:]
	}
	joined := strings.ToLower(strings.Join(fields, " "))
	return strings.Trim(joined, "/")
}

// isParam reports whether a route segment is a parameter placeholder.
func isParam(seg string) bool {
	if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
		return true
	}
	return strings.HasPrefix(seg, ":")
}

// scorePattern scores one route URI against a normalized pattern.
// Exact match is 1.0; containment scores below it; disjoint URIs fall back to
// per-segment overlap with parameters treated as wildcards.
func scorePattern(pattern, uri string) float64 {
	uri = strings.Trim(strings.ToLower(uri), "/")
	if pattern == uri {
		return 1.0
	}
	if uri != "" && strings.HasPrefix(pattern, uri) {
		return 0.9
	}
	if pattern != "" && strings.HasPrefix(uri, pattern) {
		return 0.8
	}
	if pattern != "" && uri != "" && (strings.Contains(uri, pattern) || strings.Contains(pattern, uri)) {
		return 0.6
	}

	patSegs := strings.Split(pattern, "/")
	uriSegs := strings.Split(uri, "/")
	longest := len(patSegs)
	if len(uriSegs) > longest {
		longest = len(uriSegs)
	}
	if longest == 0 {
		return 0
	}
	matches := 0
	for i := 0; i < len(patSegs) && i < len(uriSegs); i++ {
		if patSegs[i] == uriSegs[i] || isParam(uriSegs[i]) {
			matches++
		}
	}
	return float64(matches) / float64(longest) * 0.5
}

// FindHandler resolves the best-matching route with a non-empty controller.
func (r *Resolver) FindHandler(pattern string) (Match, bool) {
	normalized := normalizePattern(pattern)

	best := Match{Score: -1}
	for _, rt := range r.routes {
		if rt.Controller == "" {
			continue
		}
		score := scorePattern(normalized, rt.URI)
		if score > best.Score {
			best = Match{Route: rt, Score: score}
		}
	}
	if best.Score < 0 {
		return Match{}, false
	}
	return best, true
}

// Stack is the set of files implementing one route.
type Stack struct {
	Route        index.RouteRecord `json:"route"`
	HandlerPath  string            `json:"handlerPath"`
	RequestPath  string            `json:"requestPath,omitempty"`
	ResourcePath string            `json:"resourcePath,omitempty"`
	ModelPath    string            `json:"modelPath,omitempty"`
	TemplatePath string            `json:"templatePath,omitempty"`
	PagePath     string            `json:"pagePath,omitempty"`
	Siblings     []string          `json:"siblings,omitempty"`
}

const maxSiblings = 5

// RouteStack resolves a pattern to its handler and then derives the rest of
// the stack by naming convention from the controller's base name. Only paths
// present in the file index are included.
func (r *Resolver) RouteStack(pattern string) (*Stack, bool) {
	match, ok := r.FindHandler(pattern)
	if !ok {
		return nil, false
	}

	controller := match.Route.Controller
	if at := strings.Index(controller, "@"); at >= 0 {
		controller = controller[:at]
	}
	base := controllerBase(controller)
	handlerPath := r.firstExisting(
		"app/Http/Controllers/"+strings.ReplaceAll(controller, "\\", "/")+".php",
		"app/Http/Controllers/"+controller+".php",
	)

	stack := &Stack{
		Route:        match.Route,
		HandlerPath:  handlerPath,
		RequestPath:  r.firstExisting("app/Http/Requests/" + base + "Request.php"),
		ResourcePath: r.firstExisting("app/Http/Resources/" + base + "Resource.php"),
		ModelPath:    r.firstExisting("app/Models/" + base + ".php"),
		TemplatePath: r.firstExisting("resources/views/" + snake(base) + ".blade.php"),
		PagePath: r.firstExisting(
			"resources/js/Pages/"+base+".vue",
			"resources/js/Pages/"+base+"/Index.vue",
		),
	}

	if handlerPath != "" {
		stack.Siblings = r.siblings(handlerPath)
	}
	return stack, true
}

// siblings returns up to maxSiblings other indexed files sharing the
// handler's directory.
func (r *Resolver) siblings(handlerPath string) []string {
	dir := handlerPath[:strings.LastIndex(handlerPath, "/")+1]

	var sibs []string
	for p := range r.files {
		if p == handlerPath || !strings.HasPrefix(p, dir) {
			continue
		}
		rest := strings.TrimPrefix(p, dir)
		if strings.Contains(rest, "/") {
			continue
		}
		sibs = append(sibs, p)
	}
	sort.Strings(sibs)
	if len(sibs) > maxSiblings {
		sibs = sibs[:maxSiblings]
	}
	return sibs
}

func (r *Resolver) firstExisting(candidates ...string) string {
	for _, c := range candidates {
		if r.files[c] {
			return c
		}
	}
	return ""
}

// controllerBase strips namespace, an Api prefix, and the controller-type
// suffix from a controller reference: "Api\UserController@show" -> "User".
func controllerBase(controller string) string {
	name := controller
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}
	name = strings.ReplaceAll(name, "\\", "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimPrefix(name, "Api")
	name = strings.TrimSuffix(name, "Controller")
	return name
}

// snake converts a PascalCase base name to snake_case.
func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
