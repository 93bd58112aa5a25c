package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AddTagRelations links tag names to an entry. Pairs that already exist
// are left alone.
func (s *Store) AddTagRelations(ctx context.Context, hashKey string, names []string) error {
	if len(names) == 0 {
		return nil
	}

	now := formatTime(time.Now())
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, name := range names {
			_, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO tag_relation (name, clipboard_history_hash_key, create_time)
				VALUES (?, ?, ?)`,
				name, hashKey, now)
			if err != nil {
				return fmt.Errorf("insert tag_relation: %w", err)
			}
		}
		return nil
	})
}

// TagsForEntry returns the tag names linked to an entry, sorted.
func (s *Store) TagsForEntry(ctx context.Context, hashKey string) ([]string, error) {
	return s.queryNames(ctx, `
		SELECT name FROM tag_relation
		WHERE clipboard_history_hash_key = ?
		ORDER BY name ASC`, hashKey)
}

// QueryTags returns distinct tag names containing substr, sorted by name.
// An empty substr matches every tag. limit <= 0 means no limit.
func (s *Store) QueryTags(ctx context.Context, substr string, limit int) ([]string, error) {
	query := `SELECT DISTINCT name FROM tag_relation`
	var args []any
	if substr != "" {
		query += ` WHERE name LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(substr)+"%")
	}
	query += ` ORDER BY name ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryNames(ctx, query, args...)
}

// DeleteOrphanTagRelations removes relations whose entry no longer exists.
func (s *Store) DeleteOrphanTagRelations(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `
		DELETE FROM tag_relation
		WHERE clipboard_history_hash_key NOT IN (
			SELECT hash_key FROM clipboard_history WHERE hash_key IS NOT NULL
		)`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) queryNames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
