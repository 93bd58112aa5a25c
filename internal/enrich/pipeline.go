// Package enrich derives metadata, OCR text, tags, and embeddings for new
// clipboard entries in the background.
package enrich

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Mopip77/pasteV/internal/domain"
	domainerrors "github.com/Mopip77/pasteV/internal/errors"
	"github.com/Mopip77/pasteV/internal/id"
	"github.com/Mopip77/pasteV/internal/ocr"
	"github.com/Mopip77/pasteV/internal/settings"
)

// DefaultConcurrency bounds concurrently running chains.
const DefaultConcurrency = 4

// Store is the subset of persistence the pipeline writes to. Every write
// touches one column of one entry.
type Store interface {
	MergeDetails(ctx context.Context, hashKey string, patch domain.Details) error
	UpdateText(ctx context.Context, hashKey, text string) error
	UpdateEmbedding(ctx context.Context, hashKey string, vec []float32) error
	AddTagRelations(ctx context.Context, hashKey string, names []string) error
}

// Chatter asks a language model for a JSON reply.
type Chatter interface {
	ChatJSON(ctx context.Context, prompt string) (string, error)
	ChatJSONWithImage(ctx context.Context, prompt string, image []byte, mime string) (string, error)
}

// Embedder computes text embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Publisher is told about chains that changed an entry.
type Publisher interface {
	EntryEnriched(r Result)
}

// Recorder observes step outcomes.
type Recorder interface {
	RecordEnrichStep(step, status string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordEnrichStep(string, string, time.Duration) {}

// Options configures a Pipeline.
type Options struct {
	Concurrency int
	OCRTimeout  time.Duration
	AITimeout   time.Duration
	Recorder    Recorder
	Publisher   Publisher
}

// Pipeline runs enrichment chains. Each submitted entry gets its own chain;
// steps within a chain run in order, and no step failure propagates.
type Pipeline struct {
	store    Store
	ocr      ocr.Recognizer
	chat     Chatter
	embed    Embedder
	settings settings.Provider
	opts     Options
	logger   *slog.Logger

	sem      *semaphore.Weighted
	inFlight *keySet

	mu      sync.Mutex // guards stopped and wg.Add
	wg      sync.WaitGroup
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a running pipeline. recognizer, chat, and embed may be nil;
// their steps are then skipped.
func New(
	st Store,
	recognizer ocr.Recognizer,
	chat Chatter,
	embed Embedder,
	sp settings.Provider,
	opts Options,
	logger *slog.Logger,
) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.OCRTimeout <= 0 {
		opts.OCRTimeout = 30 * time.Second
	}
	if opts.AITimeout <= 0 {
		opts.AITimeout = 60 * time.Second
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		store:    st,
		ocr:      recognizer,
		chat:     chat,
		embed:    embed,
		settings: sp,
		opts:     opts,
		logger:   logger,
		sem:      semaphore.NewWeighted(int64(opts.Concurrency)),
		inFlight: newKeySet(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit schedules a chain for e and returns immediately. It returns false
// when the pipeline is stopped or a chain for the same key is already running.
func (p *Pipeline) Submit(e *domain.ClipboardEntry) bool {
	if e == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	if !p.inFlight.claim(e.HashKey) {
		p.logger.Debug("enrichment already running", "hash_key", e.HashKey)
		return false
	}

	entry := *e
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.release(entry.HashKey)

		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)

		p.Run(p.ctx, &entry)
	}()
	return true
}

// InFlight returns the number of chains submitted and not yet finished.
func (p *Pipeline) InFlight() int {
	return p.inFlight.len()
}

// Stop rejects new submissions and waits for running chains. If ctx ends
// first, running chains are canceled and ctx's error is returned.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// Run executes the chain for e synchronously and returns every step result.
func (p *Pipeline) Run(ctx context.Context, e *domain.ClipboardEntry) []StepResult {
	start := time.Now()
	log := p.logger.With("run_id", id.MustGenerate(id.PrefixRun), "hash_key", e.HashKey)
	j := &job{entry: e, text: e.Text, details: e.Details, settings: p.settings.Load()}

	steps := []step{
		{name: StepMetadata, run: p.metadata},
		{name: StepOCR, run: p.recognize},
		{name: StepWordCount, run: p.wordCount},
		{name: StepTagging, run: p.tag},
		{name: StepEmbedding, run: p.embedding},
	}

	results := make([]StepResult, 0, len(steps))
	for _, s := range steps {
		if ctx.Err() != nil {
			break
		}
		stepStart := time.Now()
		r := s.run(ctx, j)
		r.Step = s.name
		r.Duration = time.Since(stepStart)
		results = append(results, r)

		p.opts.Recorder.RecordEnrichStep(r.Step, string(r.Status), r.Duration)
		if r.Status == StatusFailed {
			attrs := []any{"step", r.Step, "error", r.Err}
			if provider := domainerrors.Provider(r.Err); provider != "" {
				attrs = append(attrs, "provider", provider)
			}
			log.Warn("enrichment step failed", attrs...)
		}
		if r.Wrote {
			j.wrote = true
		}
	}

	log.Debug("enrichment finished", "type", e.Type, "duration", time.Since(start))

	if j.wrote && p.opts.Publisher != nil {
		p.opts.Publisher.EntryEnriched(Result{
			HashKey: e.HashKey,
			Type:    e.Type,
			Text:    j.text,
			Details: j.details,
			Steps:   results,
		})
	}
	return results
}

// isUnavailable reports whether err means a provider is absent rather than broken.
func isUnavailable(err error) bool {
	return errors.Is(err, ocr.ErrUnavailable)
}
