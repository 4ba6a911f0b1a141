package routes

import (
	"sort"
	"strings"
)

const maxDescriptionMatches = 10

// verbKeywords correlates HTTP methods with the verbs users reach for when
// describing an operation in free text.
var verbKeywords = map[string][]string{
	"GET":    {"show", "view", "list", "get", "display", "fetch", "read", "see"},
	"POST":   {"create", "add", "submit", "store", "new", "register", "send"},
	"PUT":    {"update", "edit", "change", "modify", "replace"},
	"PATCH":  {"update", "edit", "change", "modify", "toggle"},
	"DELETE": {"delete", "remove", "destroy", "clear"},
}

// MatchDescription scores every route against free text and returns the top
// matches. Scoring: +0.3 per URI segment substring hit, +0.4 for the
// controller name, +0.3 for the route name, +0.2 for verb-intent correlation.
func (r *Resolver) MatchDescription(text string) []Match {
	lowered := strings.ToLower(text)
	if strings.TrimSpace(lowered) == "" {
		return nil
	}

	var matches []Match
	for _, rt := range r.routes {
		score := 0.0

		for _, seg := range strings.Split(strings.Trim(rt.URI, "/"), "/") {
			if seg == "" || isParam(seg) {
				continue
			}
			if strings.Contains(lowered, strings.ToLower(seg)) {
				score += 0.3
			}
		}

		if base := controllerBase(rt.Controller); base != "" &&
			strings.Contains(lowered, strings.ToLower(base)) {
			score += 0.4
		}

		if rt.Name != "" {
			// Route names are dotted ("password.reset"); any part counts.
			for _, part := range strings.Split(strings.ToLower(rt.Name), ".") {
				if part != "" && strings.Contains(lowered, part) {
					score += 0.3
					break
				}
			}
		}

		for _, kw := range verbKeywords[strings.ToUpper(rt.Method)] {
			if strings.Contains(lowered, kw) {
				score += 0.2
				break
			}
		}

		if score > 0 {
			matches = append(matches, Match{Route: rt, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > maxDescriptionMatches {
		matches = matches[:maxDescriptionMatches]
	}
	return matches
}
