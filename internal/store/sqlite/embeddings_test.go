package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/Mopip77/pasteV/internal/domain"
)

func TestEmbeddingCodec(t *testing.T) {
	vec := []float32{0, 1.5, -2.25, 3e-8}

	raw, ok := encodeEmbedding(vec).([]byte)
	if !ok {
		t.Fatal("expected []byte encoding")
	}
	if len(raw) != 16 {
		t.Fatalf("encoded length: got %d, want 16", len(raw))
	}

	got, err := decodeEmbedding(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("index %d: got %v, want %v", i, got[i], vec[i])
		}
	}

	if encodeEmbedding(nil) != nil {
		t.Error("nil vector should encode as NULL")
	}
	if _, err := decodeEmbedding([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated vector")
	}

	fromJSON, err := decodeEmbedding([]byte(`[0.25, 0.5]`))
	if err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(fromJSON) != 2 || fromJSON[1] != 0.5 {
		t.Errorf("JSON decode: got %v", fromJSON)
	}
}

func TestListEmbeddings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	withVec := makeTextEntry("embedded", 0)
	withVec.Embedding = []float32{1, 0}
	without := makeTextEntry("plain", time.Second)
	mustInsert(t, s, withVec)
	mustInsert(t, s, without)

	got, err := s.ListEmbeddings(ctx, "")
	if err != nil {
		t.Fatalf("ListEmbeddings: %v", err)
	}
	if len(got) != 1 || got[0].HashKey != withVec.HashKey {
		t.Fatalf("got %+v, want only %s", got, withVec.HashKey)
	}

	images, err := s.ListEmbeddings(ctx, domain.EntryTypeImage)
	if err != nil {
		t.Fatalf("ListEmbeddings(image): %v", err)
	}
	if len(images) != 0 {
		t.Errorf("type filter: got %d, want 0", len(images))
	}
}
