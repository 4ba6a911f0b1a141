package diffutil

import (
	"fmt"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"
)

// ChangeType marks a parsed diff line as added or removed.
type ChangeType string

const (
	Added   ChangeType = "added"
	Removed ChangeType = "removed"
)

// LineChange is one added or removed line from a parsed diff.
type LineChange struct {
	Type ChangeType `json:"type"`
	Line string     `json:"line"`
}

// Stats summarizes a diff.
type Stats struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// Parse extracts the added and removed lines from a unified diff.
func Parse(diffText string) ([]LineChange, error) {
	if strings.TrimSpace(diffText) == "" {
		return nil, nil
	}

	fileDiffs, err := godiff.ParseMultiFileDiff([]byte(diffText))
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff: %w", err)
	}

	var changes []LineChange
	for _, fd := range fileDiffs {
		for _, h := range fd.Hunks {
			for _, line := range strings.Split(string(h.Body), "\n") {
				switch {
				case strings.HasPrefix(line, "+"):
					changes = append(changes, LineChange{Type: Added, Line: line[1:]})
				case strings.HasPrefix(line, "-"):
					changes = append(changes, LineChange{Type: Removed, Line: line[1:]})
				}
			}
		}
	}
	return changes, nil
}

// ComputeStats counts added and removed lines in a unified diff.
func ComputeStats(diffText string) (Stats, error) {
	changes, err := Parse(diffText)
	if err != nil {
		return Stats{}, err
	}
	var s Stats
	for _, c := range changes {
		if c.Type == Added {
			s.Added++
		} else {
			s.Removed++
		}
	}
	return s, nil
}
