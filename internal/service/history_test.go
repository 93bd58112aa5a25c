package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mopip77/pasteV/internal/domain"
	"github.com/Mopip77/pasteV/internal/enrich"
	domainerrors "github.com/Mopip77/pasteV/internal/errors"
	"github.com/Mopip77/pasteV/internal/fingerprint"
	"github.com/Mopip77/pasteV/internal/hotcache"
	"github.com/Mopip77/pasteV/internal/logger"
	"github.com/Mopip77/pasteV/internal/query"
	"github.com/Mopip77/pasteV/internal/settings"
	"github.com/Mopip77/pasteV/internal/store/sqlite"
)

type fixture struct {
	store   *sqlite.Store
	cache   *hotcache.Cache
	history *HistoryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "clipboard.db"), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cache := hotcache.New(st, hotcache.DefaultCapacity, logger.Discard())
	engine := query.NewEngine(st, nil, settings.Static(settings.Defaults()), nil, query.Options{}, logger.Discard())
	return &fixture{
		store:   st,
		cache:   cache,
		history: NewHistoryService(st, cache, engine, 1<<20, logger.Discard()),
	}
}

func (f *fixture) insert(t *testing.T, text string, lastRead time.Time) {
	t.Helper()
	e := &domain.ClipboardEntry{
		Type:         domain.EntryTypeText,
		Text:         text,
		HashKey:      fingerprint.Text(domain.EntryTypeText, text),
		CreateTime:   lastRead,
		LastReadTime: lastRead,
	}
	_, err := f.cache.Add(context.Background(), e)
	require.NoError(t, err)
}

func TestHistoryService_AddDeduplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.history.Add(ctx, Capture{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, hotcache.OutcomeInserted, first.Outcome)
	assert.Equal(t, "hello", first.Entry.Text)
	assert.NotZero(t, first.Entry.ID)

	again, err := f.history.Add(ctx, Capture{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, hotcache.OutcomeUnchanged, again.Outcome)

	_, err = f.history.Add(ctx, Capture{Text: "world"})
	require.NoError(t, err)
	back, err := f.history.Add(ctx, Capture{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, hotcache.OutcomeTouched, back.Outcome)
	assert.Equal(t, first.Entry.ID, back.Entry.ID)

	page, err := f.history.Query(ctx, domain.Filter{})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "hello", page[0].Text)
}

func TestHistoryService_AddRejectsEmptyAndOversized(t *testing.T) {
	f := newFixture(t)
	f.history.maxTextBytes = 4

	_, err := f.history.Add(context.Background(), Capture{})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = f.history.Add(context.Background(), Capture{Text: "too long"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestHistoryService_FileCaptureWinsOverText(t *testing.T) {
	f := newFixture(t)

	res, err := f.history.Add(context.Background(), Capture{
		Text:     "report.pdf",
		FileURIs: []string{"file:///home/u/report.pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryTypeFile, res.Entry.Type)
	assert.Equal(t, "file:///home/u/report.pdf", res.Entry.Text)
}

func TestHistoryService_GetFullTextAndBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.history.Add(ctx, Capture{Text: "plain"})
	require.NoError(t, err)

	text, err := f.history.GetFullText(ctx, res.Entry.HashKey)
	require.NoError(t, err)
	assert.Equal(t, "plain", text)

	_, err = f.history.GetBlob(ctx, res.Entry.HashKey)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound, "text entries have no blob")

	_, err = f.history.GetFullText(ctx, "missing")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestHistoryService_DeleteOlderThan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	f.insert(t, "old", now.Add(-40*24*time.Hour))
	f.insert(t, "recent", now.Add(-24*time.Hour))
	old := fingerprint.Text(domain.EntryTypeText, "old")
	require.NoError(t, f.store.AddTagRelations(ctx, old, []string{"stale"}))

	var swept []*SweepResult
	f.history.OnSwept(func(r *SweepResult) { swept = append(swept, r) })

	res, err := f.history.DeleteOlderThan(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, swept, 1)
	assert.Same(t, res, swept[0])
	assert.Equal(t, int64(1), res.Deleted)
	assert.Equal(t, int64(1), res.OrphanTags)
	assert.Equal(t, 1, res.CachePruned)
	assert.False(t, f.cache.Contains(old))

	tags, err := f.history.QueryTags(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, tags)

	_, err = f.history.DeleteOlderThan(ctx, time.Time{})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	assert.Len(t, swept, 1)
}

func TestHistoryService_QueryTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.history.Add(ctx, Capture{Text: "tagged"})
	require.NoError(t, err)
	require.NoError(t, f.store.AddTagRelations(ctx, res.Entry.HashKey, []string{"receipt", "coffee"}))

	tags, err := f.history.QueryTags(ctx, "rec", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"receipt"}, tags)
}

func TestHistoryService_InvalidRegexIsEmpty(t *testing.T) {
	f := newFixture(t)
	_, err := f.history.Add(context.Background(), Capture{Text: "("})
	require.NoError(t, err)

	page, err := f.history.Query(context.Background(), domain.Filter{Keyword: "(", Regex: true})
	require.NoError(t, err)
	assert.Empty(t, page)
}

// heldStore holds enrichment writes until release is closed.
type heldStore struct {
	enrich.Store
	release <-chan struct{}
}

func (h heldStore) MergeDetails(ctx context.Context, hashKey string, patch domain.Details) error {
	if err := h.wait(ctx); err != nil {
		return err
	}
	return h.Store.MergeDetails(ctx, hashKey, patch)
}

func (h heldStore) UpdateText(ctx context.Context, hashKey, text string) error {
	if err := h.wait(ctx); err != nil {
		return err
	}
	return h.Store.UpdateText(ctx, hashKey, text)
}

func (h heldStore) wait(ctx context.Context) error {
	select {
	case <-h.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// slowOCR blocks until release is closed.
type slowOCR struct {
	release <-chan struct{}
	text    string
}

func (o slowOCR) Recognize(ctx context.Context, _ []byte) (string, error) {
	select {
	case <-o.release:
		return o.text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x * 20), G: uint8(y * 20), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHistoryService_ImageListedBeforeEnrichment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	release := make(chan struct{})
	pipeline := enrich.New(
		heldStore{Store: f.store, release: release},
		slowOCR{release: release, text: "invoice 42"},
		nil, nil,
		settings.Static(settings.Defaults()),
		enrich.Options{},
		logger.Discard(),
	)
	f.cache.OnInserted(func(e *domain.ClipboardEntry) { pipeline.Submit(e) })
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pipeline.Stop(stopCtx)
	})

	res, err := f.history.Add(ctx, Capture{Image: pngBytes(t, 8, 6), ImageMime: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, hotcache.OutcomeInserted, res.Outcome)

	page, err := f.history.Query(ctx, domain.Filter{})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, domain.EntryTypeImage, page[0].Type)
	assert.Equal(t, res.Entry.HashKey, page[0].HashKey)
	assert.Empty(t, page[0].Text)
	assert.True(t, page[0].Details.IsEmpty(), "details are filled in later")

	close(release)
	assert.Eventually(t, func() bool {
		page, err := f.history.Query(ctx, domain.Filter{})
		return err == nil && len(page) == 1 &&
			page[0].Text == "invoice 42" && page[0].Details.Width != nil
	}, 5*time.Second, 10*time.Millisecond)
}
