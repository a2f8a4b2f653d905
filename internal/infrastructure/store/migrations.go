package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// expectedSchemaVersion is the latest schema version the application
// expects after Migrate.
const expectedSchemaVersion = 3

// migration represents a database schema migration.
type migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial foods schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS foods (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					name_norm TEXT NOT NULL,
					manufacturer TEXT NOT NULL DEFAULT '',
					manufacturer_norm TEXT NOT NULL DEFAULT '',
					barcode TEXT UNIQUE,
					serving_size TEXT NOT NULL DEFAULT '',
					calories REAL NOT NULL DEFAULT 0,
					protein REAL NOT NULL DEFAULT 0,
					fat REAL NOT NULL DEFAULT 0,
					carbohydrate REAL NOT NULL DEFAULT 0,
					sugar REAL NOT NULL DEFAULT 0,
					sodium REAL NOT NULL DEFAULT 0,
					token_count INTEGER NOT NULL DEFAULT 0,
					trigram_count INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_foods_name_norm ON foods(name_norm)`,
				`CREATE INDEX idx_foods_manufacturer_norm ON foods(manufacturer_norm)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Inverted token and trigram indexes for candidate retrieval",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS food_tokens (
					token TEXT NOT NULL,
					food_id INTEGER NOT NULL,
					PRIMARY KEY (token, food_id),
					FOREIGN KEY (food_id) REFERENCES foods(id) ON DELETE CASCADE
				) WITHOUT ROWID`,
				`CREATE INDEX idx_food_tokens_food ON food_tokens(food_id)`,

				`CREATE TABLE IF NOT EXISTS food_trigrams (
					trigram TEXT NOT NULL,
					food_id INTEGER NOT NULL,
					PRIMARY KEY (trigram, food_id),
					FOREIGN KEY (food_id) REFERENCES foods(id) ON DELETE CASCADE
				) WITHOUT ROWID`,
				`CREATE INDEX idx_food_trigrams_food ON food_trigrams(food_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Match audit trail",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS match_audit (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id TEXT NOT NULL DEFAULT '',
					source TEXT NOT NULL,
					record_name TEXT NOT NULL DEFAULT '',
					record_manufacturer TEXT NOT NULL DEFAULT '',
					barcode TEXT NOT NULL DEFAULT '',
					product_id INTEGER NOT NULL DEFAULT 0,
					score REAL NOT NULL DEFAULT 0,
					tier TEXT NOT NULL DEFAULT '',
					outcome TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_match_audit_run ON match_audit(run_id)`,
				`CREATE INDEX idx_match_audit_barcode ON match_audit(barcode)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *Store) Migrate(ctx context.Context) error {
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := m.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", m.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", m.Version,
			"description", m.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if finalVersion != expectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", expectedSchemaVersion, finalVersion)
	}

	return nil
}
