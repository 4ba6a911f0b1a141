package store

import (
	"database/sql"
	"fmt"
)

// Schema version tracking
const currentSchemaVersion = 1

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}

		if err := createConversationsTable(tx); err != nil {
			return err
		}
		if err := createMessagesTable(tx); err != nil {
			return err
		}
		if err := createIntentsTable(tx); err != nil {
			return err
		}
		if err := createPlansTable(tx); err != nil {
			return err
		}
		if err := createFileExecutionsTable(tx); err != nil {
			return err
		}
		if err := createContextCacheTable(tx); err != nil {
			return err
		}

		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("Database schema initialized", map[string]interface{}{
			"version": currentSchemaVersion,
		})

		return nil
	})
}

// runMigrations runs any pending schema migrations
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		db.logger.Debug("Database schema is up to date", map[string]interface{}{
			"version": version,
		})
		return nil
	}

	db.logger.Info("Running database migrations", map[string]interface{}{
		"from_version": version,
		"to_version":   currentSchemaVersion,
	})

	// Run migrations sequentially as the schema evolves

	return nil
}

// getSchemaVersion gets the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	var tableName string
	err := db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)

	if err == sql.ErrNoRows {
		// Table doesn't exist, this is a new database
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion sets the schema version
func setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec("DELETE FROM schema_version")
	if err != nil {
		return err
	}
	_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

// createSchemaVersionTable creates the schema_version tracking table
func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

func createConversationsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			phase TEXT NOT NULL,
			active_plan_id TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create conversations table: %w", err)
	}
	_, err = tx.Exec("CREATE INDEX IF NOT EXISTS idx_conversations_project ON conversations(project_id)")
	return err
}

func createMessagesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			role TEXT NOT NULL CHECK(role IN ('user', 'assistant', 'system')),
			content TEXT NOT NULL,
			intent_id TEXT,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create messages table: %w", err)
	}
	_, err = tx.Exec("CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)")
	return err
}

func createIntentsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS intents (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			type TEXT NOT NULL,
			confidence REAL NOT NULL,
			payload_json TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create intents table: %w", err)
	}
	_, err = tx.Exec("CREATE INDEX IF NOT EXISTS idx_intents_project ON intents(project_id, created_at)")
	return err
}

func createPlansTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS plans (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			conversation_id TEXT,
			intent_id TEXT,
			title TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN (
				'draft', 'pending_review', 'approved', 'rejected',
				'executing', 'completed', 'failed'
			)),
			payload_json TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create plans table: %w", err)
	}
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_plans_project ON plans(project_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_plans_conversation ON plans(conversation_id)",
		"CREATE INDEX IF NOT EXISTS idx_plans_status ON plans(status)",
	}
	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

func createFileExecutionsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS file_executions (
			id TEXT PRIMARY KEY,
			plan_id TEXT NOT NULL,
			op_index INTEGER NOT NULL,
			operation TEXT NOT NULL,
			path TEXT NOT NULL,
			new_path TEXT,
			status TEXT NOT NULL CHECK(status IN (
				'pending', 'in_progress', 'completed', 'failed',
				'skipped', 'rolled_back'
			)),
			diff TEXT,
			backup_path TEXT,
			original_content TEXT,
			error TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create file_executions table: %w", err)
	}
	_, err = tx.Exec("CREATE INDEX IF NOT EXISTS idx_file_executions_plan ON file_executions(plan_id, op_index)")
	return err
}

func createContextCacheTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS context_cache (
			key TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			scan_id TEXT NOT NULL,
			value_json TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create context_cache table: %w", err)
	}
	_, err = tx.Exec("CREATE INDEX IF NOT EXISTS idx_context_cache_scan ON context_cache(project_id, scan_id)")
	return err
}
