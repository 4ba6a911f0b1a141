// Package diffutil generates and parses the unified diffs recorded for every
// file operation, the audit artifact a human reviews before and after
// execution.
package diffutil

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const contextLines = 3

// Generate produces a unified diff between two versions of a file. Empty
// oldText renders a creation diff; empty newText renders a deletion diff.
// Identical inputs produce an empty string.
func Generate(oldText, newText, path string) string {
	if oldText == newText {
		return ""
	}

	dmp := diffmatchpatch.New()
	chars1, chars2, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(chars1, chars2, false), lineArray)

	lines := flattenDiffs(diffs)
	hunks := groupHunks(lines)
	if len(hunks) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n", path)
	fmt.Fprintf(&b, "+++ b/%s\n", path)
	for _, h := range hunks {
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", h.oldStart, h.oldCount, h.newStart, h.newCount)
		for _, l := range h.lines {
			b.WriteString(l.marker())
			b.WriteString(l.text)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

type lineOp int

const (
	opEqual lineOp = iota
	opDelete
	opInsert
)

type diffLine struct {
	op   lineOp
	text string
}

func (l diffLine) marker() string {
	switch l.op {
	case opDelete:
		return "-"
	case opInsert:
		return "+"
	default:
		return " "
	}
}

// flattenDiffs converts diffmatchpatch blocks into per-line operations.
func flattenDiffs(diffs []diffmatchpatch.Diff) []diffLine {
	var lines []diffLine
	for _, d := range diffs {
		var op lineOp
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = opDelete
		case diffmatchpatch.DiffInsert:
			op = opInsert
		default:
			op = opEqual
		}
		text := strings.TrimSuffix(d.Text, "\n")
		if text == "" && d.Text != "\n" {
			continue
		}
		for _, line := range strings.Split(text, "\n") {
			lines = append(lines, diffLine{op: op, text: line})
		}
	}
	return lines
}

type hunk struct {
	oldStart, oldCount int
	newStart, newCount int
	lines              []diffLine
}

// groupHunks splits the line stream into unified-diff hunks with
// contextLines of surrounding context.
func groupHunks(lines []diffLine) []hunk {
	// Positions of changed lines.
	var changed []int
	for i, l := range lines {
		if l.op != opEqual {
			changed = append(changed, i)
		}
	}
	if len(changed) == 0 {
		return nil
	}

	// Merge change positions whose context windows overlap.
	type span struct{ start, end int }
	var spans []span
	cur := span{start: max(0, changed[0]-contextLines), end: min(len(lines)-1, changed[0]+contextLines)}
	for _, c := range changed[1:] {
		start := max(0, c-contextLines)
		if start <= cur.end+1 {
			cur.end = min(len(lines)-1, c+contextLines)
			continue
		}
		spans = append(spans, cur)
		cur = span{start: start, end: min(len(lines)-1, c+contextLines)}
	}
	spans = append(spans, cur)

	// Walk lines once, tracking old/new line numbers, and cut hunks at spans.
	var hunks []hunk
	oldLine, newLine := 1, 1
	spanIdx := 0
	var active *hunk
	for i, l := range lines {
		if spanIdx < len(spans) && i == spans[spanIdx].start {
			hunks = append(hunks, hunk{oldStart: oldLine, newStart: newLine})
			active = &hunks[len(hunks)-1]
		}
		if active != nil {
			active.lines = append(active.lines, l)
			if l.op != opInsert {
				active.oldCount++
			}
			if l.op != opDelete {
				active.newCount++
			}
		}
		if l.op != opInsert {
			oldLine++
		}
		if l.op != opDelete {
			newLine++
		}
		if spanIdx < len(spans) && i == spans[spanIdx].end {
			active = nil
			spanIdx++
		}
	}
	return hunks
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
