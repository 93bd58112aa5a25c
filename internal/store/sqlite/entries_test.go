package sqlite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Mopip77/pasteV/internal/domain"
	"github.com/Mopip77/pasteV/internal/fingerprint"
	"github.com/Mopip77/pasteV/internal/store"
)

func TestInsertAndGetEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	blob := []byte{0x89, 'P', 'N', 'G'}
	e := &domain.ClipboardEntry{
		Type:         domain.EntryTypeImage,
		Blob:         blob,
		HashKey:      fingerprint.Compute(domain.EntryTypeImage, blob),
		CreateTime:   baseTime,
		LastReadTime: baseTime,
	}
	mustInsert(t, s, e)
	if e.ID == 0 {
		t.Fatal("InsertEntry should assign an id")
	}

	got, err := s.GetEntry(ctx, e.HashKey)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.Type != domain.EntryTypeImage {
		t.Errorf("Type: got %q", got.Type)
	}
	if string(got.Blob) != string(blob) {
		t.Errorf("Blob: got %v, want %v", got.Blob, blob)
	}
	if got.Text != "" {
		t.Errorf("Text: got %q, want empty", got.Text)
	}
	if !got.CreateTime.Equal(baseTime) || !got.LastReadTime.Equal(baseTime) {
		t.Errorf("timestamps: got %v / %v", got.CreateTime, got.LastReadTime)
	}
	if !got.Details.IsEmpty() {
		t.Errorf("Details: got %+v, want empty", got.Details)
	}
}

func TestInsertEntry_DuplicateHashKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustInsert(t, s, makeTextEntry("same", 0))
	err := s.InsertEntry(ctx, makeTextEntry("same", time.Minute))
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM clipboard_history`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}
}

func TestGetEntry_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetEntry(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetEntry: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetBlob(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetBlob: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetFullText(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetFullText: expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateLastReadTime(ctx, "missing", baseTime); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UpdateLastReadTime: expected ErrNotFound, got %v", err)
	}
}

func TestSingleColumnUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := makeTextEntry("hello world", 0)
	mustInsert(t, s, e)

	later := baseTime.Add(time.Hour)
	if err := s.UpdateLastReadTime(ctx, e.HashKey, later); err != nil {
		t.Fatalf("UpdateLastReadTime: %v", err)
	}
	if err := s.UpdateText(ctx, e.HashKey, "replaced"); err != nil {
		t.Fatalf("UpdateText: %v", err)
	}
	if err := s.UpdateEmbedding(ctx, e.HashKey, []float32{0.5, -1, 2}); err != nil {
		t.Fatalf("UpdateEmbedding: %v", err)
	}

	got, err := s.GetEntry(ctx, e.HashKey)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if !got.LastReadTime.Equal(later) {
		t.Errorf("LastReadTime: got %v, want %v", got.LastReadTime, later)
	}
	if !got.CreateTime.Equal(baseTime) {
		t.Errorf("CreateTime must not change: got %v", got.CreateTime)
	}
	if got.Text != "replaced" {
		t.Errorf("Text: got %q", got.Text)
	}
	if len(got.Embedding) != 3 || got.Embedding[0] != 0.5 || got.Embedding[1] != -1 || got.Embedding[2] != 2 {
		t.Errorf("Embedding: got %v", got.Embedding)
	}
}

func TestMergeDetails_PreservesOtherKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := makeTextEntry("merge me", 0)
	mustInsert(t, s, e)

	if err := s.MergeDetails(ctx, e.HashKey, domain.Details{Width: domain.IntPtr(10), Height: domain.IntPtr(20)}); err != nil {
		t.Fatalf("MergeDetails(size): %v", err)
	}
	if err := s.MergeDetails(ctx, e.HashKey, domain.Details{Tags: []string{"ui"}, Description: "a dialog"}); err != nil {
		t.Fatalf("MergeDetails(tags): %v", err)
	}

	got, err := s.GetEntry(ctx, e.HashKey)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	d := got.Details
	if d.Width == nil || *d.Width != 10 || d.Height == nil || *d.Height != 20 {
		t.Errorf("size lost after second merge: %+v", d)
	}
	if len(d.Tags) != 1 || d.Tags[0] != "ui" || d.Description != "a dialog" {
		t.Errorf("tags/description not merged: %+v", d)
	}
}

func TestListEntries_TruncationRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	long := strings.Repeat("x", domain.MaxListTextLength+500)
	e := makeTextEntry(long, 0)
	mustInsert(t, s, e)
	short := makeTextEntry("short", time.Second)
	mustInsert(t, s, short)

	metas, err := s.ListEntries(ctx, domain.Filter{Size: 10})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(metas))
	}

	byKey := map[string]*domain.ClipboardMeta{}
	for _, m := range metas {
		byKey[m.HashKey] = m
	}
	if m := byKey[e.HashKey]; len(m.Text) != domain.MaxListTextLength || !m.TextTruncated {
		t.Errorf("long entry: len=%d truncated=%v", len(m.Text), m.TextTruncated)
	}
	if m := byKey[short.HashKey]; m.Text != "short" || m.TextTruncated {
		t.Errorf("short entry: %q truncated=%v", m.Text, m.TextTruncated)
	}

	full, err := s.GetFullText(ctx, e.HashKey)
	if err != nil {
		t.Fatalf("GetFullText: %v", err)
	}
	if full != long {
		t.Errorf("GetFullText returned %d chars, want %d", len(full), len(long))
	}
}

func TestListEntries_CursorPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Five entries with distinct last_read_time, e0 oldest.
	var want []string
	for i := range 5 {
		e := makeTextEntry("entry "+string(rune('a'+i)), time.Duration(i)*time.Minute)
		mustInsert(t, s, e)
		want = append([]string{e.HashKey}, want...)
	}

	var (
		got    []string
		sizes  []int
		cursor *time.Time
	)
	for {
		page, err := s.ListEntries(ctx, domain.Filter{Size: 2, Cursor: cursor})
		if err != nil {
			t.Fatalf("ListEntries: %v", err)
		}
		if len(page) == 0 {
			break
		}
		sizes = append(sizes, len(page))
		for _, m := range page {
			got = append(got, m.HashKey)
		}
		last := page[len(page)-1].LastReadTime
		cursor = &last
	}

	if len(sizes) != 3 || sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 {
		t.Errorf("page sizes: got %v, want [2 2 1]", sizes)
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("enumeration order:\n got %v\nwant %v", got, want)
	}
}

func TestListEntries_KeywordAndType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustInsert(t, s, makeTextEntry("Hello World", 0))
	mustInsert(t, s, makeTextEntry("100% done", time.Second))
	mustInsert(t, s, makeTextEntry("snake_case", 2*time.Second))
	file := makeTextEntry("/home/me/hello.txt", 3*time.Second)
	file.Type = domain.EntryTypeFile
	file.HashKey = fingerprint.Text(domain.EntryTypeFile, file.Text)
	mustInsert(t, s, file)

	tests := []struct {
		name   string
		filter domain.Filter
		want   int
	}{
		{name: "substring ignores ascii case", filter: domain.Filter{Keyword: "hello"}, want: 2},
		{name: "percent is literal", filter: domain.Filter{Keyword: "0%"}, want: 1},
		{name: "underscore is literal", filter: domain.Filter{Keyword: "e_c"}, want: 1},
		{name: "type restricts", filter: domain.Filter{Keyword: "hello", Type: domain.EntryTypeFile}, want: 1},
		{name: "regex is case-insensitive", filter: domain.Filter{Keyword: "^hello w", Regex: true}, want: 1},
		{name: "regex alternation", filter: domain.Filter{Keyword: "done|snake", Regex: true}, want: 2},
		{name: "no filter", filter: domain.Filter{}, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListEntries(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListEntries: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d results, want %d", len(got), tt.want)
			}
		})
	}
}

func TestListEntries_NeverReturnsBlob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	blob := []byte("image-bytes")
	mustInsert(t, s, &domain.ClipboardEntry{
		Type:         domain.EntryTypeImage,
		Blob:         blob,
		HashKey:      fingerprint.Compute(domain.EntryTypeImage, blob),
		CreateTime:   baseTime,
		LastReadTime: baseTime,
	})

	metas, err := s.ListEntries(ctx, domain.Filter{})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(metas))
	}
	// ClipboardMeta has no blob field; the payload is only reachable by key.
	got, err := s.GetBlob(ctx, metas[0].HashKey)
	if err != nil {
		t.Fatalf("GetBlob: %v", err)
	}
	if string(got) != string(blob) {
		t.Errorf("GetBlob: got %q", got)
	}
}

func TestDeleteLastReadBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := baseTime
	old := makeTextEntry("forty days old", -40*24*time.Hour)
	recent := makeTextEntry("one day old", -24*time.Hour)
	mustInsert(t, s, old)
	mustInsert(t, s, recent)

	n, err := s.DeleteLastReadBefore(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteLastReadBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted: got %d, want 1", n)
	}

	if ok, _ := s.ExistsByHashKey(ctx, old.HashKey); ok {
		t.Error("old entry should be deleted")
	}
	if ok, _ := s.ExistsByHashKey(ctx, recent.HashKey); !ok {
		t.Error("recent entry should remain")
	}
}

func TestListRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := range 4 {
		mustInsert(t, s, makeTextEntry("recent "+string(rune('a'+i)), time.Duration(i)*time.Second))
	}

	got, err := s.ListRecent(ctx, 3)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3, got %d", len(got))
	}
	if got[0].Text != "recent d" || got[2].Text != "recent b" {
		t.Errorf("order: got %q..%q", got[0].Text, got[2].Text)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := makeTextEntry("counted", 0)
	mustInsert(t, s, e)
	if err := s.AddTagRelations(ctx, e.HashKey, []string{"a", "b"}); err != nil {
		t.Fatalf("AddTagRelations: %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Entries[domain.EntryTypeText] != 1 || st.Tags != 2 || st.Embedded != 0 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if st.SchemaVersion != len(migrations) {
		t.Errorf("schema version: got %d", st.SchemaVersion)
	}
}
