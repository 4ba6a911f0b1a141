package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"aide/internal/errors"
	"aide/internal/logging"
)

// SQLiteReader reads the scan index from the scanner's SQLite database.
type SQLiteReader struct {
	conn   *sql.DB
	logger *logging.Logger
}

// OpenSQLite opens the scan database read-only. The database is produced by
// the scanning job and must already exist.
func OpenSQLite(dbPath string, logger *logging.Logger) (*SQLiteReader, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, errors.Wrap(errors.IndexMissing, "scan index not found", err).
			WithDetail("path", dbPath)
	}

	conn, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open scan index: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set pragma: %w", err)
	}

	return &SQLiteReader{conn: conn, logger: logger}, nil
}

// Close closes the underlying connection.
func (r *SQLiteReader) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// ScanID returns the most recent scan identifier for the project.
func (r *SQLiteReader) ScanID(ctx context.Context, projectID string) (string, error) {
	var scanID string
	err := r.conn.QueryRowContext(ctx, `
		SELECT scan_id FROM scans
		WHERE project_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, projectID).Scan(&scanID)
	if err == sql.ErrNoRows {
		return "", errors.Newf(errors.IndexMissing, "no scan recorded for project %s", projectID)
	}
	if err != nil {
		return "", fmt.Errorf("scan lookup failed: %w", err)
	}
	return scanID, nil
}

// ListFiles returns all indexed files for the project.
func (r *SQLiteReader) ListFiles(ctx context.Context, projectID string) ([]FileRecord, error) {
	rows, err := r.conn.QueryContext(ctx, `
		SELECT path, language, size_bytes, symbols_json, imports_json,
		       extends_json, implements_json, traits_json
		FROM files
		WHERE project_id = ?
		ORDER BY path
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("file listing failed: %w", err)
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		var f FileRecord
		var symbolsJSON, importsJSON, extendsJSON, implementsJSON, traitsJSON string
		if err := rows.Scan(&f.Path, &f.Language, &f.SizeBytes, &symbolsJSON, &importsJSON,
			&extendsJSON, &implementsJSON, &traitsJSON); err != nil {
			return nil, fmt.Errorf("file row scan failed: %w", err)
		}
		f.Symbols = decodeStrings(symbolsJSON)
		f.Imports = decodeStrings(importsJSON)
		f.Extends = decodeStrings(extendsJSON)
		f.Implements = decodeStrings(implementsJSON)
		f.Traits = decodeStrings(traitsJSON)
		files = append(files, f)
	}
	return files, rows.Err()
}

// ListChunks returns all indexed chunks for the project. Rows are decoded
// lazily as the cursor advances; content is not stored in the index.
func (r *SQLiteReader) ListChunks(ctx context.Context, projectID string) ([]ChunkRecord, error) {
	rows, err := r.conn.QueryContext(ctx, `
		SELECT path, start_line, end_line, symbols_json, used_symbols_json, imports_json
		FROM chunks
		WHERE project_id = ?
		ORDER BY path, start_line
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("chunk listing failed: %w", err)
	}
	defer rows.Close()

	var chunks []ChunkRecord
	for rows.Next() {
		var c ChunkRecord
		var symbolsJSON, usedJSON, importsJSON string
		if err := rows.Scan(&c.Path, &c.StartLine, &c.EndLine, &symbolsJSON, &usedJSON, &importsJSON); err != nil {
			return nil, fmt.Errorf("chunk row scan failed: %w", err)
		}
		c.Symbols = decodeStrings(symbolsJSON)
		c.UsedSymbols = decodeStrings(usedJSON)
		c.Imports = decodeStrings(importsJSON)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ListRoutes returns the project's route index.
func (r *SQLiteReader) ListRoutes(ctx context.Context, projectID string) ([]RouteRecord, error) {
	rows, err := r.conn.QueryContext(ctx, `
		SELECT uri, method, controller, action, name, view
		FROM routes
		WHERE project_id = ?
		ORDER BY uri
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("route listing failed: %w", err)
	}
	defer rows.Close()

	var routes []RouteRecord
	for rows.Next() {
		var rt RouteRecord
		if err := rows.Scan(&rt.URI, &rt.Method, &rt.Controller, &rt.Action, &rt.Name, &rt.View); err != nil {
			return nil, fmt.Errorf("route row scan failed: %w", err)
		}
		routes = append(routes, rt)
	}
	return routes, rows.Err()
}

func decodeStrings(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
