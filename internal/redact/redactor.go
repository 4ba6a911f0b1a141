// Package redact masks secrets in retrieved file content before it leaves the
// system. Every chunk handed to the reasoning service or a client passes
// through here first.
package redact

import (
	"math"
	"regexp"
	"strings"

	"aide/internal/logging"
)

// Mask is the replacement written over a detected secret.
const Mask = "[REDACTED]"

// Pattern defines one secret detection pattern. When Group is positive, only
// that capture group is masked; otherwise the whole match is.
type Pattern struct {
	Name       string
	Regex      *regexp.Regexp
	Group      int
	MinEntropy float64 // 0 disables the entropy gate
}

// Redactor applies secret patterns to content.
type Redactor struct {
	patterns  []Pattern
	skipPaths []string
	logger    *logging.Logger
}

// NewRedactor creates a redactor with the builtin patterns.
func NewRedactor(logger *logging.Logger) *Redactor {
	return &Redactor{
		patterns:  builtinPatterns,
		skipPaths: []string{".env.example", "fixtures/", "testdata/"},
		logger:    logger,
	}
}

// Redact masks secrets in content. The path gates which patterns apply:
// example/fixture files are returned untouched, and env-style files get the
// assignment-value patterns in addition to the token formats.
func (r *Redactor) Redact(content, path string) string {
	if content == "" {
		return content
	}
	for _, skip := range r.skipPaths {
		if strings.Contains(path, skip) {
			return content
		}
	}

	masked := content
	hits := 0
	for _, p := range r.patterns {
		if !p.appliesTo(path) {
			continue
		}
		masked = p.apply(masked, &hits)
	}

	if hits > 0 {
		r.logger.Debug("Redacted secrets from retrieved content", map[string]interface{}{
			"path": path,
			"hits": hits,
		})
	}
	return masked
}

func (p Pattern) appliesTo(path string) bool {
	// Assignment-style patterns are noisy outside env/config files.
	if p.Name == "env_assignment" {
		base := strings.ToLower(path)
		return strings.Contains(base, ".env") ||
			strings.HasSuffix(base, ".ini") ||
			strings.HasSuffix(base, ".conf") ||
			strings.Contains(base, "config")
	}
	return true
}

func (p Pattern) apply(content string, hits *int) string {
	return p.Regex.ReplaceAllStringFunc(content, func(match string) string {
		secret := match
		if p.Group > 0 {
			groups := p.Regex.FindStringSubmatch(match)
			if len(groups) <= p.Group || groups[p.Group] == "" {
				return match
			}
			secret = groups[p.Group]
		}
		if p.MinEntropy > 0 && shannonEntropy(secret) < p.MinEntropy {
			return match
		}
		*hits++
		return strings.Replace(match, secret, Mask, 1)
	})
}

// shannonEntropy measures the randomness of a candidate secret. Values above
// ~3.5 are characteristic of generated keys rather than words.
func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	freq := make(map[rune]int)
	for _, r := range s {
		freq[r]++
	}
	length := float64(len(s))
	var entropy float64
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// builtinPatterns covers the well-known token formats plus a generic
// env-assignment catch-all gated by entropy.
var builtinPatterns = []Pattern{
	{
		Name:  "aws_access_key_id",
		Regex: regexp.MustCompile(`(?:A3T[A-Z0-9]|AKIA|ABIA|ACCA|AGPA|AIDA|AIPA|ANPA|ANVA|APKA|AROA|ASCA|ASIA)[A-Z0-9]{16}`),
	},
	{
		Name:       "aws_secret_key",
		Regex:      regexp.MustCompile(`(?i)(?:aws[_-]?)?secret[_-]?(?:access[_-]?)?key['":\s=]+['"]?([A-Za-z0-9/+=]{40})['"]?`),
		Group:      1,
		MinEntropy: 3.5,
	},
	{
		Name:  "github_token",
		Regex: regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36,}`),
	},
	{
		Name:  "stripe_key",
		Regex: regexp.MustCompile(`(?:sk|rk)_(?:live|test)_[A-Za-z0-9]{24,}`),
	},
	{
		Name:  "slack_token",
		Regex: regexp.MustCompile(`xox[baprs]-[A-Za-z0-9-]{10,}`),
	},
	{
		Name:  "google_api_key",
		Regex: regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`),
	},
	{
		Name:  "private_key_block",
		Regex: regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----[\s\S]*?-----END (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
	},
	{
		Name:  "jwt",
		Regex: regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	},
	{
		Name:       "env_assignment",
		Regex:      regexp.MustCompile(`(?im)^(?:[A-Z0-9_]*(?:KEY|SECRET|TOKEN|PASSWORD|PASSWD))\s*=\s*['"]?([^\s'"#]{8,})['"]?`),
		Group:      1,
		MinEntropy: 3.0,
	},
}
