package intent

import (
	"regexp"
)

// MultiIntentResult reports the intent buckets a message touches, used to
// warn the user before classification when a message asks for several things
// at once.
type MultiIntentResult struct {
	IsMultiIntent bool   `json:"is_multi_intent"`
	Detected      []Type `json:"detected"`
}

// intentKeywords maps intent buckets to the vocabulary that signals them.
// Purely lexical; no reasoning-service call.
var intentKeywords = map[Type]*regexp.Regexp{
	TypeFeatureRequest: regexp.MustCompile(`(?i)\b(add|create|implement|build|introduce|new)\b`),
	TypeBugFix:         regexp.MustCompile(`(?i)\b(fix|bug|broken|crash|error|fails?|issue|regression)\b`),
	TypeTestRequest:    regexp.MustCompile(`(?i)\b(tests?|testing|coverage|spec)\b`),
	TypeRefactor:       regexp.MustCompile(`(?i)\b(refactor|restructure|reorganize|rename|clean\s?up|extract)\b`),
	TypeQuestion:       regexp.MustCompile(`(?i)(\?|^how\b|^what\b|^why\b|^where\b|\bexplain\b)`),
}

// bucketOrder keeps Detected deterministic.
var bucketOrder = []Type{TypeFeatureRequest, TypeBugFix, TypeTestRequest, TypeRefactor, TypeQuestion}

// DetectMultipleIntents scans a message for signals of more than one intent.
func DetectMultipleIntents(message string) MultiIntentResult {
	var detected []Type
	for _, t := range bucketOrder {
		if intentKeywords[t].MatchString(message) {
			detected = append(detected, t)
		}
	}
	return MultiIntentResult{
		IsMultiIntent: len(detected) > 1,
		Detected:      detected,
	}
}
