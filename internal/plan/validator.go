package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"aide/internal/logging"
)

// ValidationResult is the outcome of pre-execution validation. Warnings do
// not block execution; errors do.
type ValidationResult struct {
	IsValid              bool     `json:"isValid"`
	Errors               []string `json:"errors,omitempty"`
	Warnings             []string `json:"warnings,omitempty"`
	MissingFiles         []string `json:"missingFiles,omitempty"`
	CircularDependencies []string `json:"circularDependencies,omitempty"`
}

// Validator checks plans against the working copy before execution.
type Validator struct {
	root   string
	logger *logging.Logger
}

func NewValidator(root string, logger *logging.Logger) *Validator {
	if logger == nil {
		logger = logging.Silent()
	}
	return &Validator{root: root, logger: logger}
}

// Validate runs every structural and filesystem check. It never returns an
// error; all findings land in the result.
func (v *Validator) Validate(p *Plan) ValidationResult {
	res := ValidationResult{IsValid: true}

	if len(p.FileOperations) == 0 {
		res.fail("plan contains no file operations")
		return res
	}

	seen := make(map[string]int)
	for i := range p.FileOperations {
		op := &p.FileOperations[i]
		if err := op.Validate(); err != nil {
			res.fail(err.Error())
			continue
		}
		v.checkOperation(op, &res)
		if prev, dup := seen[op.Path]; dup && op.Type == p.FileOperations[prev].Type {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("duplicate %s operation for %s", op.Type, op.Path))
		}
		seen[op.Path] = i
	}

	if cycles := detectCycles(p.FileOperations); len(cycles) > 0 {
		res.CircularDependencies = cycles
		res.fail(fmt.Sprintf("circular dependencies: %s", strings.Join(cycles, "; ")))
	}

	return res
}

func (v *Validator) checkOperation(op *FileOperation, res *ValidationResult) {
	abs, inside := v.resolve(op.Path)
	if !inside {
		res.fail(fmt.Sprintf("%s path %s escapes the project root", op.Type, op.Path))
		return
	}
	_, statErr := os.Stat(abs)
	exists := statErr == nil

	switch op.Type {
	case OpCreate:
		if exists {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("create target %s already exists", op.Path))
		}
		if strings.TrimSpace(op.TemplateContent) == "" {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("create operation for %s has no template; content will be generated at execution", op.Path))
		}
	case OpModify, OpDelete, OpRename, OpMove:
		if !exists {
			res.MissingFiles = append(res.MissingFiles, op.Path)
			res.fail(fmt.Sprintf("%s operation targets missing file %s", op.Type, op.Path))
		}
	}

	if op.Type == OpRename || op.Type == OpMove {
		destAbs, inside := v.resolve(op.NewPath)
		if !inside {
			res.fail(fmt.Sprintf("%s destination %s escapes the project root", op.Type, op.NewPath))
			return
		}
		if _, err := os.Stat(destAbs); err == nil {
			res.fail(fmt.Sprintf("%s destination %s already exists", op.Type, op.NewPath))
		}
	}
}

// resolve joins a payload path under the root and reports whether the result
// stays inside it.
func (v *Validator) resolve(path string) (string, bool) {
	abs := filepath.Join(v.root, filepath.FromSlash(path))
	root := filepath.Clean(v.root)
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", false
	}
	return abs, true
}

// detectCycles runs a DFS over the declared dependency edges and reports
// each cycle found as a "a -> b -> a" path.
func detectCycles(ops []FileOperation) []string {
	deps := make(map[string][]string, len(ops))
	for _, op := range ops {
		deps[op.Path] = append(deps[op.Path], op.Dependencies...)
	}

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int)
	var cycles []string
	var stack []string

	var visit func(path string)
	visit = func(path string) {
		state[path] = inStack
		stack = append(stack, path)
		for _, dep := range deps[path] {
			switch state[dep] {
			case unvisited:
				if _, known := deps[dep]; known {
					visit(dep)
				}
			case inStack:
				// find where the cycle starts on the stack
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				cycle := append(append([]string{}, stack[start:]...), dep)
				cycles = append(cycles, strings.Join(cycle, " -> "))
			}
		}
		stack = stack[:len(stack)-1]
		state[path] = done
	}

	for _, op := range ops {
		if state[op.Path] == unvisited {
			visit(op.Path)
		}
	}
	return cycles
}

func (r *ValidationResult) fail(msg string) {
	r.IsValid = false
	r.Errors = append(r.Errors, msg)
}
