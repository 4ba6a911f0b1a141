package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// BackupStore writes gzip-compressed backups of file content under
// <dir>/<planID>/<opIndex>-<basename>.gz.
type BackupStore struct {
	dir string
}

// NewBackupStore creates a backup store rooted at dir.
func NewBackupStore(dir string) *BackupStore {
	return &BackupStore{dir: dir}
}

// Save compresses and stores content, returning the backup path.
func (s *BackupStore) Save(planID string, opIndex int, path, content string) (string, error) {
	planDir := filepath.Join(s.dir, planID)
	if err := os.MkdirAll(planDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := fmt.Sprintf("%d-%s.gz", opIndex, sanitize(filepath.Base(path)))
	backupPath := filepath.Join(planDir, name)

	f, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	zw.Name = path
	if _, err := zw.Write([]byte(content)); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize backup: %w", err)
	}
	return backupPath, nil
}

// Load decompresses a backup and returns its content and the original path
// it was taken from.
func (s *BackupStore) Load(backupPath string) (content, originalPath string, err error) {
	f, err := os.Open(backupPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return "", "", fmt.Errorf("failed to read backup header: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return "", "", fmt.Errorf("failed to decompress backup: %w", err)
	}
	return string(data), zr.Name, nil
}

// sanitize keeps backup filenames flat.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		default:
			return r
		}
	}, name)
}
