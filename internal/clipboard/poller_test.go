package clipboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Mopip77/pasteV/internal/domain"
	"github.com/Mopip77/pasteV/internal/hotcache"
	"github.com/Mopip77/pasteV/internal/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type staticReader struct {
	mu   sync.Mutex
	snap Snapshot
	err  error
}

func (r *staticReader) Read(context.Context) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap, r.err
}

type recordingAdder struct {
	mu      sync.Mutex
	added   []*domain.ClipboardEntry
	outcome hotcache.Outcome
	err     error
}

func (a *recordingAdder) Add(_ context.Context, e *domain.ClipboardEntry) (hotcache.Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.added = append(a.added, e)
	return a.outcome, a.err
}

func (a *recordingAdder) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.added)
}

type countingRecorder struct {
	mu      sync.Mutex
	results map[string]int
}

func (c *countingRecorder) RecordPoll(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results == nil {
		c.results = make(map[string]int)
	}
	c.results[result]++
}

func TestPoller_Tick(t *testing.T) {
	tests := []struct {
		name     string
		reader   *staticReader
		adder    *recordingAdder
		want     string
		wantErr  bool
		wantAdds int
	}{
		{"inserted", &staticReader{snap: Snapshot{Text: "hi"}}, &recordingAdder{outcome: hotcache.OutcomeInserted}, "inserted", false, 1},
		{"unchanged", &staticReader{snap: Snapshot{Text: "hi"}}, &recordingAdder{outcome: hotcache.OutcomeUnchanged}, "unchanged", false, 1},
		{"empty clipboard", &staticReader{}, &recordingAdder{}, "empty", false, 0},
		{"oversized text", &staticReader{snap: Snapshot{Text: "0123456789abcdef"}}, &recordingAdder{}, "too_large", false, 0},
		{"read failure", &staticReader{err: errors.New("boom")}, &recordingAdder{}, "read_error", true, 0},
		{"store failure", &staticReader{snap: Snapshot{Text: "hi"}}, &recordingAdder{err: errors.New("disk full")}, "store_error", true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &countingRecorder{}
			p := NewPoller(tt.reader, tt.adder, PollerOptions{
				MaxTextBytes: 8,
				Recorder:     rec,
				Now:          func() time.Time { return now },
			}, logger.Discard())

			got, err := p.Tick(context.Background())
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.wantAdds, tt.adder.count())
			assert.Equal(t, 1, rec.results[tt.want])
		})
	}
}

func TestPoller_StartStop(t *testing.T) {
	reader := &staticReader{snap: Snapshot{Text: "tick"}}
	adder := &recordingAdder{outcome: hotcache.OutcomeUnchanged}
	p := NewPoller(reader, adder, PollerOptions{Interval: 5 * time.Millisecond, MaxTextBytes: 1024}, logger.Discard())

	p.Start(context.Background())
	p.Start(context.Background()) // second start is a no-op

	require.Eventually(t, func() bool { return adder.count() >= 3 }, time.Second, 5*time.Millisecond)

	p.Stop()
	n := adder.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, adder.count(), "no ticks after Stop")

	p.Stop() // idempotent
}

func TestPoller_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPoller(&staticReader{}, &recordingAdder{}, PollerOptions{Interval: time.Millisecond}, logger.Discard())

	p.Start(ctx)
	cancel()
	p.Stop()
}
