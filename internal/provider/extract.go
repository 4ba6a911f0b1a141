package provider

import (
	"strings"

	"aide/internal/errors"
)

// ExtractJSON recovers the first balanced JSON object from reasoning-service
// output. Responses routinely wrap the payload in markdown code fences or
// surround it with prose; both are tolerated. String literals and escapes are
// respected while balancing braces.
func ExtractJSON(s string) (string, error) {
	s = stripFences(s)

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", errors.New(errors.MalformedResponse, "no JSON object in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	return "", errors.New(errors.MalformedResponse, "unbalanced JSON object in response")
}

// stripFences removes a surrounding markdown code fence, if present, keeping
// any prose outside it from confusing the brace scan less than it otherwise
// would.
func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	fence := strings.Index(trimmed, "```")
	if fence < 0 {
		return trimmed
	}

	rest := trimmed[fence+3:]
	// Skip a language tag like "json" on the fence line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(rest[:nl])
		if len(firstLine) <= 10 && !strings.ContainsAny(firstLine, "{}") {
			rest = rest[nl+1:]
		}
	}
	if closing := strings.Index(rest, "```"); closing >= 0 {
		rest = rest[:closing]
	}
	return strings.TrimSpace(rest)
}
