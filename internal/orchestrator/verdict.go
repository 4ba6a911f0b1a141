package orchestrator

import "strings"

type verdict int

const (
	verdictUnclear verdict = iota
	verdictApprove
	verdictReject
)

var approveTokens = map[string]bool{
	"yes": true, "y": true, "approve": true, "approved": true,
	"ok": true, "okay": true, "confirm": true, "proceed": true,
	"lgtm": true, "go": true,
}

var rejectTokens = map[string]bool{
	"no": true, "n": true, "reject": true, "rejected": true,
	"cancel": true, "stop": true, "abort": true,
}

// parseVerdict reads an approval decision from the first token of a message,
// so "no, use the service layer instead" still counts as a rejection with
// feedback.
func parseVerdict(message string) verdict {
	fields := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(message)), func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == ':' || r == ';' || r == '\n'
	})
	if len(fields) == 0 {
		return verdictUnclear
	}
	first := fields[0]
	if approveTokens[first] {
		// a longer message starting with an approve token may still be a
		// counter-proposal; only a bare approval counts
		if len(fields) <= 3 {
			return verdictApprove
		}
		return verdictUnclear
	}
	if rejectTokens[first] {
		return verdictReject
	}
	return verdictUnclear
}

// rejectionFeedback strips the verdict token off a rejection so the rest can
// seed plan refinement. An empty result means the reviewer gave no direction.
func rejectionFeedback(message string) string {
	trimmed := strings.TrimSpace(message)
	lowered := strings.ToLower(trimmed)
	for token := range rejectTokens {
		if lowered == token {
			return ""
		}
		for _, sep := range []string{" ", ",", ".", ":", ";", "\n"} {
			prefix := token + sep
			if strings.HasPrefix(lowered, prefix) {
				return strings.TrimLeft(trimmed[len(prefix):], " ,.:;\n")
			}
		}
	}
	return trimmed
}
