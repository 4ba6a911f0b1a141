package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Cache is a read-through cache for retrieval results, keyed by project and
// scan so stale entries die with the scan they were computed against.
type Cache struct {
	db *DB
}

func NewCache(db *DB) *Cache {
	return &Cache{db: db}
}

// Get retrieves a cached value. Returns false when the key is missing or the
// entry expired; expired entries are deleted on read.
func (c *Cache) Get(key string) (string, bool, error) {
	var valueJSON string
	var expiresAt string

	err := c.db.QueryRow(`
		SELECT value_json, expires_at
		FROM context_cache
		WHERE key = ?
	`, key).Scan(&valueJSON, &expiresAt)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("context cache lookup failed: %w", err)
	}

	expiresAtTime, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return "", false, fmt.Errorf("invalid expires_at format: %w", err)
	}

	if time.Now().After(expiresAtTime) {
		c.db.Exec("DELETE FROM context_cache WHERE key = ?", key)
		return "", false, nil
	}

	return valueJSON, true, nil
}

// Set stores a value under a key scoped to one project and scan.
func (c *Cache) Set(key, projectID, scanID, valueJSON string, ttlSeconds int) error {
	now := time.Now()
	expiresAt := now.Add(time.Duration(ttlSeconds) * time.Second)

	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO context_cache (key, project_id, scan_id, value_json, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, key, projectID, scanID, valueJSON, expiresAt.Format(time.RFC3339), now.Format(time.RFC3339))

	if err != nil {
		return fmt.Errorf("failed to set context cache: %w", err)
	}
	return nil
}

// InvalidateScan drops every entry computed against one scan, called when a
// project is re-indexed.
func (c *Cache) InvalidateScan(projectID, scanID string) error {
	_, err := c.db.Exec(
		"DELETE FROM context_cache WHERE project_id = ? AND scan_id = ?",
		projectID, scanID)
	if err != nil {
		return fmt.Errorf("failed to invalidate scan cache: %w", err)
	}
	return nil
}

// CacheKey builds the canonical key for one retrieval request.
func CacheKey(projectID, scanID, request string) string {
	return fmt.Sprintf("%s:%s:%s", projectID, scanID, request)
}
