package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Mopip77/pasteV/internal/domain"
	"github.com/Mopip77/pasteV/internal/fingerprint"
)

// migration is one additive schema step. apply must inspect the live
// schema before changing it so a step is safe to run against a database
// that already has its effect (for example one created by an older build
// that did not record versions).
type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sql.Tx) error
}

// migrations is append-only. Never reorder or edit a released step.
var migrations = []migration{
	{1, "create clipboard_history", createHistoryTable},
	{2, "add hash_key", addHashKey},
	{3, "add details", addDetails},
	{4, "add embedding", addEmbedding},
	{5, "create tag_relation", createTagRelation},
	{6, "create query_embedding_cache", createQueryEmbeddingCache},
	{7, "create recency indexes", createRecencyIndexes},
}

// migrate applies every migration not yet recorded in schema_migrations.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if err := m.apply(ctx, tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
				m.version, m.name, formatTime(time.Now()))
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		s.logger.Info("applied migration", "version", m.version, "name", m.name)
	}
	return nil
}

func (s *Store) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&v)
	if err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

// tableExists reports whether a table is present.
func tableExists(ctx context.Context, tx *sql.Tx, table string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	return n > 0, err
}

// columnExists reports whether table has the named column.
func columnExists(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	return n > 0, err
}

// addColumn adds a column unless it is already present.
func addColumn(ctx context.Context, tx *sql.Tx, table, column, definition string) error {
	exists, err := columnExists(ctx, tx, table, column)
	if err != nil {
		return fmt.Errorf("inspect %s.%s: %w", table, column, err)
	}
	if exists {
		return nil
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition))
	return err
}

func createHistoryTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS clipboard_history (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			type           TEXT NOT NULL,
			text           TEXT,
			blob           BLOB,
			create_time    DATETIME NOT NULL,
			last_read_time DATETIME NOT NULL
		)`)
	return err
}

// addHashKey adds the dedup column, fingerprints rows that predate it, and
// enforces uniqueness. Legacy duplicates collapse onto the most recently
// read row.
func addHashKey(ctx context.Context, tx *sql.Tx) error {
	if err := addColumn(ctx, tx, "clipboard_history", "hash_key", "TEXT"); err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, type, COALESCE(text, ''), blob
		FROM clipboard_history
		WHERE hash_key IS NULL
		ORDER BY last_read_time DESC`)
	if err != nil {
		return err
	}

	type legacyRow struct {
		id  int64
		key string
	}
	var pending []legacyRow
	for rows.Next() {
		var (
			id   int64
			typ  string
			text string
			blob []byte
		)
		if err := rows.Scan(&id, &typ, &text, &blob); err != nil {
			rows.Close()
			return err
		}
		e := &domain.ClipboardEntry{Type: domain.EntryType(typ), Text: text, Blob: blob}
		pending = append(pending, legacyRow{id: id, key: fingerprint.Entry(e)})
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, r := range pending {
		var taken int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM clipboard_history WHERE hash_key = ?`, r.key).Scan(&taken); err != nil {
			return err
		}
		if taken > 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM clipboard_history WHERE id = ?`, r.id); err != nil {
				return err
			}
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE clipboard_history SET hash_key = ? WHERE id = ?`, r.key, r.id); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS uidx_hash_key ON clipboard_history(hash_key)`)
	return err
}

func addDetails(ctx context.Context, tx *sql.Tx) error {
	if err := addColumn(ctx, tx, "clipboard_history", "details", "TEXT NOT NULL DEFAULT '{}'"); err != nil {
		return err
	}
	// Databases that grew the column as nullable may hold NULL or junk.
	_, err := tx.ExecContext(ctx, `
		UPDATE clipboard_history SET details = '{}'
		WHERE details IS NULL
		   OR CASE WHEN json_valid(details) THEN json_type(details) != 'object' ELSE 1 END`)
	return err
}

func addEmbedding(ctx context.Context, tx *sql.Tx) error {
	return addColumn(ctx, tx, "clipboard_history", "embedding", "BLOB")
}

func createTagRelation(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tag_relation (
			id                         INTEGER PRIMARY KEY AUTOINCREMENT,
			name                       TEXT NOT NULL,
			clipboard_history_hash_key TEXT NOT NULL,
			create_time                DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_name ON tag_relation(name);
		CREATE INDEX IF NOT EXISTS idx_clipboard_history_hash_key ON tag_relation(clipboard_history_hash_key);`)
	if err != nil {
		return err
	}

	// Drop duplicate pairs before the unique index; older builds inserted
	// tags without checking.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM tag_relation WHERE id NOT IN (
			SELECT MIN(id) FROM tag_relation GROUP BY name, clipboard_history_hash_key
		)`); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS uidx_tag_pair
		ON tag_relation(name, clipboard_history_hash_key)`)
	return err
}

func createQueryEmbeddingCache(ctx context.Context, tx *sql.Tx) error {
	exists, err := tableExists(ctx, tx, "query_embedding_cache")
	if err != nil || exists {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE query_embedding_cache (
			query_text  TEXT PRIMARY KEY,
			embedding   BLOB NOT NULL,
			create_time DATETIME NOT NULL
		)`)
	return err
}

func createRecencyIndexes(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_last_read_time ON clipboard_history(last_read_time);
		CREATE INDEX IF NOT EXISTS idx_type_last_read ON clipboard_history(type, last_read_time DESC);`)
	return err
}
