package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Mopip77/pasteV/internal/domain"
	"github.com/Mopip77/pasteV/internal/store"
)

// encodeEmbedding packs a vector as little-endian float32s. A nil or empty
// vector encodes as SQL NULL.
func encodeEmbedding(vec []float32) any {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding reverses encodeEmbedding. A JSON array is also accepted
// for vectors written as text by external tools.
func decodeEmbedding(raw []byte) ([]float32, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if raw[0] == '[' {
		var vec []float32
		if err := json.Unmarshal(raw, &vec); err != nil {
			return nil, err
		}
		return vec, nil
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("embedding length %d is not a multiple of 4", len(raw))
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return vec, nil
}

// ListEmbeddings returns every stored embedding, optionally restricted to
// one entry type. Rows whose vector cannot be decoded are skipped.
func (s *Store) ListEmbeddings(ctx context.Context, typ domain.EntryType) ([]store.EmbeddedEntry, error) {
	query := `SELECT hash_key, embedding FROM clipboard_history WHERE embedding IS NOT NULL`
	var args []any
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, string(typ))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.EmbeddedEntry
	for rows.Next() {
		var (
			key string
			raw []byte
		)
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		vec, err := decodeEmbedding(raw)
		if err != nil {
			s.logger.Warn("skipping undecodable embedding", "hash_key", key, "error", err)
			continue
		}
		out = append(out, store.EmbeddedEntry{HashKey: key, Embedding: vec})
	}
	return out, rows.Err()
}

// GetQueryEmbedding returns a memoized query embedding.
// Returns store.ErrNotFound on a miss.
func (s *Store) GetQueryEmbedding(ctx context.Context, queryText string) ([]float32, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT embedding FROM query_embedding_cache WHERE query_text = ?`, queryText).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeEmbedding(raw)
}

// PutQueryEmbedding memoizes the embedding of a search phrase.
func (s *Store) PutQueryEmbedding(ctx context.Context, queryText string, vec []float32) error {
	if len(vec) == 0 {
		return store.ErrInvalidInput.WithMessage("empty embedding")
	}
	_, err := s.exec(ctx, `
		INSERT INTO query_embedding_cache (query_text, embedding, create_time)
		VALUES (?, ?, ?)
		ON CONFLICT(query_text) DO UPDATE SET embedding = excluded.embedding`,
		queryText, encodeEmbedding(vec), formatTime(time.Now()))
	return err
}
