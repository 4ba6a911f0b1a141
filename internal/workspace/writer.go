// Package workspace is the only component that mutates the project's working
// tree. Every destructive write produces a restorable gzip backup first, so
// any completed operation can be rolled back from persisted state alone.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"aide/internal/errors"
	"aide/internal/logging"
)

// Result reports the outcome of one file operation.
type Result struct {
	Success         bool   `json:"success"`
	BackupPath      string `json:"backupPath,omitempty"`
	OriginalContent string `json:"originalContent,omitempty"`
	Err             error  `json:"-"`
}

func failure(err error) Result {
	return Result{Err: err}
}

// Writer is the file-writer collaborator the execution engine dispatches
// through.
type Writer interface {
	Read(path string) (string, bool, error)
	Create(planID string, opIndex int, path, content string) Result
	Modify(planID string, opIndex int, path, content string) Result
	Delete(planID string, opIndex int, path string) Result
	Move(planID string, opIndex int, path, newPath string) Result

	// Restore and Remove are the rollback primitives: direct writes with no
	// backup bookkeeping of their own.
	Restore(path, content string) error
	Remove(path string) error
}

// FSWriter implements Writer against a project root on disk.
type FSWriter struct {
	root    string
	backups *BackupStore
	logger  *logging.Logger
}

// NewFSWriter creates a writer rooted at the project working copy, keeping
// backups under backupDir (relative to the root).
func NewFSWriter(root, backupDir string, logger *logging.Logger) *FSWriter {
	if logger == nil {
		logger = logging.Silent()
	}
	return &FSWriter{
		root:    root,
		backups: NewBackupStore(filepath.Join(root, backupDir)),
		logger:  logger,
	}
}

// abs resolves path under the project root. Operation paths come from the
// reasoning-service payload, so traversal outside the root is rejected.
func (w *FSWriter) abs(path string) (string, error) {
	target := filepath.Join(w.root, filepath.FromSlash(path))
	root := filepath.Clean(w.root)
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", errors.Newf(errors.ValidationFailed, "path %s escapes the project root", path)
	}
	return target, nil
}

// Read returns the file's content and whether it exists.
func (w *FSWriter) Read(path string) (string, bool, error) {
	target, err := w.abs(path)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(target)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), true, nil
}

// Create writes a new file, creating parent directories. It refuses to
// overwrite an existing file.
func (w *FSWriter) Create(planID string, opIndex int, path, content string) Result {
	target, err := w.abs(path)
	if err != nil {
		return failure(err)
	}
	if _, err := os.Stat(target); err == nil {
		return failure(errors.Newf(errors.FileExists, "refusing to create over existing file %s", path))
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return failure(fmt.Errorf("failed to create parent directories for %s: %w", path, err))
	}
	if err := os.WriteFile(target, []byte(content), 0644); err != nil {
		return failure(fmt.Errorf("failed to write %s: %w", path, err))
	}

	w.logger.Debug("Created file", map[string]interface{}{"path": path, "bytes": len(content)})
	return Result{Success: true}
}

// Modify overwrites an existing file after backing up the previous version.
func (w *FSWriter) Modify(planID string, opIndex int, path, content string) Result {
	original, exists, err := w.Read(path)
	if err != nil {
		return failure(err)
	}
	if !exists {
		return failure(errors.Newf(errors.FileMissing, "cannot modify missing file %s", path))
	}

	backupPath, err := w.backups.Save(planID, opIndex, path, original)
	if err != nil {
		return failure(err)
	}
	target, err := w.abs(path)
	if err != nil {
		return failure(err)
	}
	if err := os.WriteFile(target, []byte(content), 0644); err != nil {
		return failure(fmt.Errorf("failed to write %s: %w", path, err))
	}

	w.logger.Debug("Modified file", map[string]interface{}{"path": path, "backup": backupPath})
	return Result{Success: true, BackupPath: backupPath, OriginalContent: original}
}

// Delete removes a file after backing it up.
func (w *FSWriter) Delete(planID string, opIndex int, path string) Result {
	original, exists, err := w.Read(path)
	if err != nil {
		return failure(err)
	}
	if !exists {
		return failure(errors.Newf(errors.FileMissing, "cannot delete missing file %s", path))
	}

	backupPath, err := w.backups.Save(planID, opIndex, path, original)
	if err != nil {
		return failure(err)
	}
	target, err := w.abs(path)
	if err != nil {
		return failure(err)
	}
	if err := os.Remove(target); err != nil {
		return failure(fmt.Errorf("failed to delete %s: %w", path, err))
	}

	w.logger.Debug("Deleted file", map[string]interface{}{"path": path, "backup": backupPath})
	return Result{Success: true, BackupPath: backupPath, OriginalContent: original}
}

// Move relocates a file, backing up the original and creating parent
// directories for the destination.
func (w *FSWriter) Move(planID string, opIndex int, path, newPath string) Result {
	original, exists, err := w.Read(path)
	if err != nil {
		return failure(err)
	}
	if !exists {
		return failure(errors.Newf(errors.FileMissing, "cannot move missing file %s", path))
	}

	backupPath, err := w.backups.Save(planID, opIndex, path, original)
	if err != nil {
		return failure(err)
	}

	target, err := w.abs(newPath)
	if err != nil {
		return failure(err)
	}
	source, err := w.abs(path)
	if err != nil {
		return failure(err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return failure(fmt.Errorf("failed to create parent directories for %s: %w", newPath, err))
	}
	if err := os.Rename(source, target); err != nil {
		return failure(fmt.Errorf("failed to move %s to %s: %w", path, newPath, err))
	}

	w.logger.Debug("Moved file", map[string]interface{}{"from": path, "to": newPath})
	return Result{Success: true, BackupPath: backupPath, OriginalContent: original}
}

// Restore writes content to a path unconditionally, for rollback.
func (w *FSWriter) Restore(path, content string) error {
	target, err := w.abs(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create parent directories for %s: %w", path, err)
	}
	return os.WriteFile(target, []byte(content), 0644)
}

// Remove deletes a path unconditionally, for rollback of creates. A missing
// file is not an error: the rollback goal state already holds.
func (w *FSWriter) Remove(path string) error {
	target, err := w.abs(path)
	if err != nil {
		return err
	}
	err = os.Remove(target)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Backups exposes the backup store for restore tooling.
func (w *FSWriter) Backups() *BackupStore {
	return w.backups
}

var _ Writer = (*FSWriter)(nil)
