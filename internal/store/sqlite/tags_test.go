package sqlite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Mopip77/pasteV/internal/domain"
	"github.com/Mopip77/pasteV/internal/store"
)

func TestAddTagRelations_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := makeTextEntry("tagged", 0)
	mustInsert(t, s, e)

	for range 2 {
		if err := s.AddTagRelations(ctx, e.HashKey, []string{"ui", "screenshot"}); err != nil {
			t.Fatalf("AddTagRelations: %v", err)
		}
	}

	got, err := s.TagsForEntry(ctx, e.HashKey)
	if err != nil {
		t.Fatalf("TagsForEntry: %v", err)
	}
	if strings.Join(got, ",") != "screenshot,ui" {
		t.Errorf("tags: got %v", got)
	}
}

func TestListEntries_TagSuperset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	both := makeTextEntry("dialog screenshot", 0)
	single := makeTextEntry("desktop screenshot", time.Second)
	mustInsert(t, s, both)
	mustInsert(t, s, single)
	if err := s.AddTagRelations(ctx, both.HashKey, []string{"screenshot", "ui"}); err != nil {
		t.Fatalf("AddTagRelations: %v", err)
	}
	if err := s.AddTagRelations(ctx, single.HashKey, []string{"screenshot"}); err != nil {
		t.Fatalf("AddTagRelations: %v", err)
	}

	tests := []struct {
		name string
		tags []string
		want []string
	}{
		{name: "one tag matches both", tags: []string{"screenshot"}, want: []string{single.HashKey, both.HashKey}},
		{name: "two tags require both", tags: []string{"screenshot", "ui"}, want: []string{both.HashKey}},
		{name: "repeated tag counts once", tags: []string{"ui", "ui"}, want: []string{both.HashKey}},
		{name: "unknown tag matches nothing", tags: []string{"screenshot", "cat"}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metas, err := s.ListEntries(ctx, domain.Filter{Tags: tt.tags})
			if err != nil {
				t.Fatalf("ListEntries: %v", err)
			}
			var got []string
			for _, m := range metas {
				got = append(got, m.HashKey)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQueryTags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := makeTextEntry("a", 0)
	b := makeTextEntry("b", time.Second)
	mustInsert(t, s, a)
	mustInsert(t, s, b)
	if err := s.AddTagRelations(ctx, a.HashKey, []string{"screenshot", "code"}); err != nil {
		t.Fatalf("AddTagRelations: %v", err)
	}
	if err := s.AddTagRelations(ctx, b.HashKey, []string{"screenshot", "receipt"}); err != nil {
		t.Fatalf("AddTagRelations: %v", err)
	}

	all, err := s.QueryTags(ctx, "", 0)
	if err != nil {
		t.Fatalf("QueryTags: %v", err)
	}
	if strings.Join(all, ",") != "code,receipt,screenshot" {
		t.Errorf("all tags: got %v", all)
	}

	filtered, err := s.QueryTags(ctx, "e", 2)
	if err != nil {
		t.Fatalf("QueryTags: %v", err)
	}
	if strings.Join(filtered, ",") != "code,receipt" {
		t.Errorf("filtered tags: got %v", filtered)
	}
}

func TestDeleteOrphanTagRelations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := makeTextEntry("old", -40*24*time.Hour)
	kept := makeTextEntry("kept", 0)
	mustInsert(t, s, old)
	mustInsert(t, s, kept)
	if err := s.AddTagRelations(ctx, old.HashKey, []string{"stale", "shared"}); err != nil {
		t.Fatalf("AddTagRelations: %v", err)
	}
	if err := s.AddTagRelations(ctx, kept.HashKey, []string{"shared"}); err != nil {
		t.Fatalf("AddTagRelations: %v", err)
	}

	if _, err := s.DeleteLastReadBefore(ctx, baseTime.Add(-30*24*time.Hour)); err != nil {
		t.Fatalf("DeleteLastReadBefore: %v", err)
	}
	n, err := s.DeleteOrphanTagRelations(ctx)
	if err != nil {
		t.Fatalf("DeleteOrphanTagRelations: %v", err)
	}
	if n != 2 {
		t.Errorf("orphans removed: got %d, want 2", n)
	}

	tags, err := s.QueryTags(ctx, "", 0)
	if err != nil {
		t.Fatalf("QueryTags: %v", err)
	}
	if strings.Join(tags, ",") != "shared" {
		t.Errorf("remaining tags: got %v", tags)
	}
}

func TestQueryEmbeddingCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetQueryEmbedding(ctx, "cats"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on miss, got %v", err)
	}

	if err := s.PutQueryEmbedding(ctx, "cats", []float32{1, 2}); err != nil {
		t.Fatalf("PutQueryEmbedding: %v", err)
	}
	if err := s.PutQueryEmbedding(ctx, "cats", []float32{3, 4}); err != nil {
		t.Fatalf("PutQueryEmbedding (overwrite): %v", err)
	}

	got, err := s.GetQueryEmbedding(ctx, "cats")
	if err != nil {
		t.Fatalf("GetQueryEmbedding: %v", err)
	}
	if len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Errorf("got %v, want [3 4]", got)
	}

	if err := s.PutQueryEmbedding(ctx, "empty", nil); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("empty vector: expected ErrInvalidInput, got %v", err)
	}
}
