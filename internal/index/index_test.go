package index

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"aide/internal/errors"
	"aide/internal/logging"
)

func TestLoadRoutesYAML(t *testing.T) {
	manifest := `routes:
  - uri: /users
    method: GET
    controller: UserController@index
    name: users.index
  - uri: /users
    method: POST
    controller: UserController@store
  - uri: /about
    view: about
`
	path := filepath.Join(t.TempDir(), "routes.yaml")
	if err := os.WriteFile(path, []byte(manifest), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	routes, err := LoadRoutesYAML(path)
	if err != nil {
		t.Fatalf("LoadRoutesYAML: %v", err)
	}
	if len(routes) != 3 {
		t.Fatalf("routes = %d", len(routes))
	}
	if routes[0].Controller != "UserController@index" || routes[0].Name != "users.index" {
		t.Errorf("route 0 = %+v", routes[0])
	}
	if routes[2].Method != "GET" {
		t.Errorf("missing method should default to GET, got %q", routes[2].Method)
	}
	if routes[2].View != "about" {
		t.Errorf("route 2 = %+v", routes[2])
	}
}

func TestLoadRoutesYAMLMissingFile(t *testing.T) {
	if _, err := LoadRoutesYAML(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing manifest accepted")
	}
}

func TestLoadRoutesYAMLMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	if err := os.WriteFile(path, []byte("routes: [not: valid"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadRoutesYAML(path); err == nil {
		t.Error("malformed manifest accepted")
	}
}

func setupScanDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "scan.db")

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	stmts := []string{
		`CREATE TABLE scans (project_id TEXT, scan_id TEXT, created_at TEXT)`,
		`CREATE TABLE files (
			project_id TEXT, path TEXT, language TEXT, size_bytes INTEGER,
			symbols_json TEXT, imports_json TEXT, extends_json TEXT,
			implements_json TEXT, traits_json TEXT
		)`,
		`CREATE TABLE chunks (
			project_id TEXT, path TEXT, start_line INTEGER, end_line INTEGER,
			symbols_json TEXT, used_symbols_json TEXT, imports_json TEXT
		)`,
		`CREATE TABLE routes (
			project_id TEXT, uri TEXT, method TEXT, controller TEXT,
			action TEXT, name TEXT, view TEXT
		)`,
		`INSERT INTO scans VALUES ('p1', 'scan-old', '2026-08-01T00:00:00Z')`,
		`INSERT INTO scans VALUES ('p1', 'scan-new', '2026-08-20T00:00:00Z')`,
		`INSERT INTO files VALUES ('p1', 'app/Models/User.php', 'php', 240,
			'["User"]', '[]', '["Model"]', '[]', '["Notifiable"]')`,
		`INSERT INTO files VALUES ('p1', 'app/Models/Team.php', 'php', 120,
			'["Team"]', '[]', '[]', '[]', '[]')`,
		`INSERT INTO chunks VALUES ('p1', 'app/Models/User.php', 1, 40,
			'["User"]', '["Model"]', '[]')`,
		`INSERT INTO routes VALUES ('p1', '/users', 'GET', 'UserController', 'index', 'users.index', '')`,
	}
	for _, stmt := range stmts {
		if _, err := conn.Exec(stmt); err != nil {
			t.Fatalf("exec: %v", err)
		}
	}
	return dbPath
}

func TestOpenSQLiteMissingDatabase(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "absent.db"), logging.Silent())
	if !errors.HasCode(err, errors.IndexMissing) {
		t.Errorf("err = %v, want INDEX_MISSING", err)
	}
}

func TestSQLiteReader(t *testing.T) {
	r, err := OpenSQLite(setupScanDB(t), logging.Silent())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	scanID, err := r.ScanID(ctx, "p1")
	if err != nil {
		t.Fatalf("ScanID: %v", err)
	}
	if scanID != "scan-new" {
		t.Errorf("scan = %q, want most recent", scanID)
	}

	files, err := r.ListFiles(ctx, "p1")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %d", len(files))
	}
	user := files[1] // ordered by path
	if user.Path != "app/Models/User.php" || user.SizeBytes != 240 {
		t.Errorf("file = %+v", user)
	}
	if len(user.Symbols) != 1 || user.Symbols[0] != "User" {
		t.Errorf("symbols = %v", user.Symbols)
	}
	if len(user.Extends) != 1 || user.Extends[0] != "Model" {
		t.Errorf("extends = %v", user.Extends)
	}
	if len(user.Traits) != 1 || user.Traits[0] != "Notifiable" {
		t.Errorf("traits = %v", user.Traits)
	}

	chunks, err := r.ListChunks(ctx, "p1")
	if err != nil {
		t.Fatalf("ListChunks: %v", err)
	}
	if len(chunks) != 1 || chunks[0].StartLine != 1 || chunks[0].EndLine != 40 {
		t.Errorf("chunks = %+v", chunks)
	}
	if len(chunks[0].UsedSymbols) != 1 || chunks[0].UsedSymbols[0] != "Model" {
		t.Errorf("used = %v", chunks[0].UsedSymbols)
	}

	routes, err := r.ListRoutes(ctx, "p1")
	if err != nil {
		t.Fatalf("ListRoutes: %v", err)
	}
	if len(routes) != 1 || routes[0].URI != "/users" || routes[0].Controller != "UserController" {
		t.Errorf("routes = %+v", routes)
	}

	if _, err := r.ScanID(ctx, "unknown"); !errors.HasCode(err, errors.IndexMissing) {
		t.Errorf("unknown project err = %v", err)
	}

	empty, err := r.ListFiles(ctx, "unknown")
	if err != nil {
		t.Fatalf("ListFiles unknown: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("unknown project files = %v", empty)
	}
}

func TestChunkRecordHelpers(t *testing.T) {
	c := ChunkRecord{Path: "a.php", StartLine: 10, EndLine: 29}
	if c.ID() != "a.php:10-29" {
		t.Errorf("id = %s", c.ID())
	}
	if c.Lines() != 20 {
		t.Errorf("lines = %d", c.Lines())
	}
}
