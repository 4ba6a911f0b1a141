package retrieval

import (
	"strings"

	"aide/internal/intent"
)

// stopwords are dropped during keyword extraction: articles, pronouns, and
// the request verbs that appear in nearly every message.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "into": true, "when": true, "what": true,
	"where": true, "which": true, "should": true, "would": true, "could": true,
	"please": true, "can": true, "you": true, "also": true, "all": true,
	"add": true, "make": true, "want": true, "need": true, "like": true,
	"some": true, "have": true, "there": true, "then": true, "them": true,
	"new": true, "our": true, "are": true,
}

// extractKeywords lowercases the message and keeps distinct non-stopword
// tokens of three or more characters.
func extractKeywords(message string) []string {
	fields := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '-')
	})

	seen := make(map[string]bool)
	var keywords []string
	for _, f := range fields {
		if len(f) < 3 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		keywords = append(keywords, f)
	}
	return keywords
}

// routeVocabulary covers generic HTTP/web vocabulary and the auth/account
// feature words that nearly always involve routes.
var routeVocabulary = []string{
	"route", "endpoint", "url", "api", "page", "request", "controller",
	"http", "redirect", "middleware", "form", "submit",
	"login", "logout", "register", "signin", "sign-in", "signup", "sign-up",
	"password", "account", "profile", "session",
}

// hasRouteKeywords reports whether the message mentions route-like
// vocabulary.
func hasRouteKeywords(message string) bool {
	lowered := strings.ToLower(message)
	for _, v := range routeVocabulary {
		if strings.Contains(lowered, v) {
			return true
		}
	}
	return false
}

// routeDomains and routeIntentTypes widen the route-correlation gate beyond
// pure vocabulary.
var routeDomains = map[string]bool{
	"api": true, "ui": true, "routing": true, "auth": true, "users": true,
}

var routeIntentTypes = map[intent.Type]bool{
	intent.TypeFeatureRequest: true,
	intent.TypeBugFix:         true,
	intent.TypeUIComponent:    true,
}

// isRouteRelated decides whether route correlation should run for a message.
func isRouteRelated(message string, it *intent.Intent) bool {
	if hasRouteKeywords(message) {
		return true
	}
	if it == nil {
		return false
	}
	if routeDomains[strings.ToLower(it.Domain.Primary)] {
		return true
	}
	return routeIntentTypes[it.Type]
}
