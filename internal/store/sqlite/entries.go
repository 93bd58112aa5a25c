package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Mopip77/pasteV/internal/domain"
	"github.com/Mopip77/pasteV/internal/store"
)

var _ store.Store = (*Store)(nil)

// metaColumns selects the list projection. Text is cut one character past
// the list limit so the scanner can tell whether truncation happened
// without loading multi-megabyte values.
var metaColumns = fmt.Sprintf(
	`id, type, substr(COALESCE(text, ''), 1, %d), hash_key, create_time, last_read_time, COALESCE(details, '{}')`,
	domain.MaxListTextLength+1,
)

// entryColumns selects a full row. Must match the scan order in scanEntry.
const entryColumns = `id, type, COALESCE(text, ''), blob, hash_key, create_time, last_read_time, COALESCE(details, '{}'), embedding`

// scanMeta scans a row selected with metaColumns.
func scanMeta(scanner interface{ Scan(dest ...any) error }) (*domain.ClipboardMeta, error) {
	var (
		m            domain.ClipboardMeta
		typ          string
		text         string
		createTime   string
		lastReadTime string
		details      string
	)

	if err := scanner.Scan(&m.ID, &typ, &text, &m.HashKey, &createTime, &lastReadTime, &details); err != nil {
		return nil, err
	}

	var err error
	m.Type = domain.EntryType(typ)
	m.Text, m.TextTruncated = domain.TruncateText(text, domain.MaxListTextLength)
	if m.CreateTime, err = parseTime(createTime); err != nil {
		return nil, fmt.Errorf("parse create_time: %w", err)
	}
	if m.LastReadTime, err = parseTime(lastReadTime); err != nil {
		return nil, fmt.Errorf("parse last_read_time: %w", err)
	}
	m.Details = decodeDetails(details)

	return &m, nil
}

// scanEntry scans a row selected with entryColumns.
func scanEntry(scanner interface{ Scan(dest ...any) error }) (*domain.ClipboardEntry, error) {
	var (
		e            domain.ClipboardEntry
		typ          string
		createTime   string
		lastReadTime string
		details      string
		embedding    []byte
	)

	err := scanner.Scan(&e.ID, &typ, &e.Text, &e.Blob, &e.HashKey,
		&createTime, &lastReadTime, &details, &embedding)
	if err != nil {
		return nil, err
	}

	e.Type = domain.EntryType(typ)
	if e.CreateTime, err = parseTime(createTime); err != nil {
		return nil, fmt.Errorf("parse create_time: %w", err)
	}
	if e.LastReadTime, err = parseTime(lastReadTime); err != nil {
		return nil, fmt.Errorf("parse last_read_time: %w", err)
	}
	e.Details = decodeDetails(details)
	if e.Embedding, err = decodeEmbedding(embedding); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}

	return &e, nil
}

// decodeDetails never fails; a malformed document reads as empty.
func decodeDetails(raw string) domain.Details {
	var d domain.Details
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return domain.Details{}
	}
	return d
}

// InsertEntry inserts a novel entry and sets its ID.
// Returns store.ErrAlreadyExists when the hash key is already stored.
func (s *Store) InsertEntry(ctx context.Context, e *domain.ClipboardEntry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	res, err := s.exec(ctx, `
		INSERT INTO clipboard_history
			(type, text, blob, hash_key, create_time, last_read_time, details, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.Type),
		e.Text,
		e.Blob,
		e.HashKey,
		formatTime(e.CreateTime),
		formatTime(e.LastReadTime),
		string(details),
		encodeEmbedding(e.Embedding),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return err
	}

	if e.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// GetEntry returns the full entry, blob and embedding included.
// Returns store.ErrNotFound if the key is unknown.
func (s *Store) GetEntry(ctx context.Context, hashKey string) (*domain.ClipboardEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM clipboard_history WHERE hash_key = ?`, hashKey)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ExistsByHashKey reports whether an entry with the key is stored.
func (s *Store) ExistsByHashKey(ctx context.Context, hashKey string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM clipboard_history WHERE hash_key = ?)`, hashKey).Scan(&exists)
	return exists, err
}

// updateColumn runs a single-column update by hash key.
// Returns store.ErrNotFound when no row matched.
func (s *Store) updateColumn(ctx context.Context, query string, args ...any) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpdateLastReadTime bumps an entry's recency.
func (s *Store) UpdateLastReadTime(ctx context.Context, hashKey string, t time.Time) error {
	return s.updateColumn(ctx,
		`UPDATE clipboard_history SET last_read_time = ? WHERE hash_key = ?`,
		formatTime(t), hashKey)
}

// UpdateText replaces an entry's text (OCR output for images).
func (s *Store) UpdateText(ctx context.Context, hashKey, text string) error {
	return s.updateColumn(ctx,
		`UPDATE clipboard_history SET text = ? WHERE hash_key = ?`,
		text, hashKey)
}

// MergeDetails merges patch into the stored details document. The merge
// runs inside SQLite as one statement, so keys written by other steps are
// never lost.
func (s *Store) MergeDetails(ctx context.Context, hashKey string, patch domain.Details) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal details patch: %w", err)
	}
	return s.updateColumn(ctx, `
		UPDATE clipboard_history
		SET details = json_patch(COALESCE(details, '{}'), ?)
		WHERE hash_key = ?`,
		string(raw), hashKey)
}

// UpdateEmbedding stores the entry's embedding vector.
func (s *Store) UpdateEmbedding(ctx context.Context, hashKey string, vec []float32) error {
	return s.updateColumn(ctx,
		`UPDATE clipboard_history SET embedding = ? WHERE hash_key = ?`,
		encodeEmbedding(vec), hashKey)
}

// DeleteLastReadBefore deletes every entry last read before t and returns
// how many rows were removed.
func (s *Store) DeleteLastReadBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.exec(ctx,
		`DELETE FROM clipboard_history WHERE last_read_time < ?`, formatTime(t))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListRecent returns the n most recently read entries, newest first.
func (s *Store) ListRecent(ctx context.Context, n int) ([]*domain.ClipboardMeta, error) {
	return s.queryMetas(ctx,
		`SELECT `+metaColumns+` FROM clipboard_history ORDER BY last_read_time DESC LIMIT ?`, n)
}

// ListEntries runs a filtered, cursor-paginated query ordered by
// last_read_time descending. The keyword is a case-insensitive substring
// match, or with Regex set a pattern evaluated by the regexp SQL function.
// Callers must have validated the pattern.
func (s *Store) ListEntries(ctx context.Context, f domain.Filter) ([]*domain.ClipboardMeta, error) {
	var (
		where []string
		args  []any
	)

	if f.Cursor != nil {
		where = append(where, `last_read_time < ?`)
		args = append(args, formatTime(*f.Cursor))
	}

	if f.Keyword != "" {
		if f.Regex {
			where = append(where, `regexp(?, text)`)
			args = append(args, "(?i)"+f.Keyword)
		} else {
			where = append(where, `text LIKE ? ESCAPE '\'`)
			args = append(args, "%"+escapeLike(f.Keyword)+"%")
		}
	}

	if f.Type != "" {
		where = append(where, `type = ?`)
		args = append(args, string(f.Type))
	}

	if tags := dedupe(f.Tags); len(tags) > 0 {
		where = append(where, `hash_key IN (
			SELECT clipboard_history_hash_key
			FROM tag_relation
			WHERE name IN (`+placeholders(len(tags))+`)
			GROUP BY clipboard_history_hash_key
			HAVING COUNT(DISTINCT name) = ?)`)
		for _, t := range tags {
			args = append(args, t)
		}
		args = append(args, len(tags))
	}

	query := `SELECT ` + metaColumns + ` FROM clipboard_history`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY last_read_time DESC LIMIT ?`
	args = append(args, f.PageSize())

	return s.queryMetas(ctx, query, args...)
}

// GetMetas returns list projections for the given keys. Unknown keys are
// absent from the map.
func (s *Store) GetMetas(ctx context.Context, hashKeys []string) (map[string]*domain.ClipboardMeta, error) {
	out := make(map[string]*domain.ClipboardMeta, len(hashKeys))
	if len(hashKeys) == 0 {
		return out, nil
	}

	args := make([]any, len(hashKeys))
	for i, k := range hashKeys {
		args[i] = k
	}
	metas, err := s.queryMetas(ctx,
		`SELECT `+metaColumns+` FROM clipboard_history WHERE hash_key IN (`+placeholders(len(hashKeys))+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	for _, m := range metas {
		out[m.HashKey] = m
	}
	return out, nil
}

// GetBlob returns the binary payload of an entry; nil for non-image rows.
// Returns store.ErrNotFound if the key is unknown.
func (s *Store) GetBlob(ctx context.Context, hashKey string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM clipboard_history WHERE hash_key = ?`, hashKey).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return blob, err
}

// GetFullText returns the untruncated text of an entry.
// Returns store.ErrNotFound if the key is unknown.
func (s *Store) GetFullText(ctx context.Context, hashKey string) (string, error) {
	var text sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT text FROM clipboard_history WHERE hash_key = ?`, hashKey).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	return text.String, err
}

// Stats counts entries by type, distinct tags, and embedded entries.
func (s *Store) Stats(ctx context.Context) (*store.Stats, error) {
	st := &store.Stats{Entries: make(map[domain.EntryType]int64)}

	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM clipboard_history GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			typ string
			n   int64
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		st.Entries[domain.EntryType(typ)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT name) FROM tag_relation`).Scan(&st.Tags); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM clipboard_history WHERE embedding IS NOT NULL`).Scan(&st.Embedded); err != nil {
		return nil, err
	}
	if st.SchemaVersion, err = s.SchemaVersion(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) queryMetas(ctx context.Context, query string, args ...any) ([]*domain.ClipboardMeta, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metas := []*domain.ClipboardMeta{}
	for rows.Next() {
		m, err := scanMeta(rows)
		if err != nil {
			return nil, err
		}
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// escapeLike escapes LIKE wildcards so the keyword matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, v := range in {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
