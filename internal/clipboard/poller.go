package clipboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Mopip77/pasteV/internal/domain"
	"github.com/Mopip77/pasteV/internal/hotcache"
)

// Adder receives classified candidates; *hotcache.Cache implements it.
type Adder interface {
	Add(ctx context.Context, candidate *domain.ClipboardEntry) (hotcache.Outcome, error)
}

// Recorder counts poll results. Result is an Outcome string or one of
// "empty", "too_large", "read_error", "store_error".
type Recorder interface {
	RecordPoll(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordPoll(string) {}

// PollerOptions configures a Poller.
type PollerOptions struct {
	Interval     time.Duration
	MaxTextBytes int
	Recorder     Recorder
	Now          func() time.Time // defaults to time.Now
}

// Poller reads the clipboard on a fixed interval and hands every candidate to
// an Adder. Failures are logged and retried on the next tick.
type Poller struct {
	reader Reader
	adder  Adder
	opts   PollerOptions
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a stopped poller.
func NewPoller(reader Reader, adder Adder, opts PollerOptions, logger *slog.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Poller{reader: reader, adder: adder, opts: opts, logger: logger}
}

// Start launches the polling goroutine. Calling Start on a running poller
// does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(ctx, p.done)
	p.logger.Info("clipboard poller started", "interval", p.opts.Interval)
}

// Stop cancels polling and waits for the in-progress tick to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Info("clipboard poller stopped")
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = p.Tick(ctx)
		}
	}
}

// Tick performs one read-classify-add cycle and returns what happened.
func (p *Poller) Tick(ctx context.Context) (string, error) {
	snap, err := p.reader.Read(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("clipboard read failed", "error", err)
		}
		p.opts.Recorder.RecordPoll("read_error")
		return "read_error", err
	}

	candidate, err := Classify(snap, p.opts.Now().UTC(), p.opts.MaxTextBytes)
	switch {
	case errors.Is(err, ErrEmpty):
		p.opts.Recorder.RecordPoll("empty")
		return "empty", nil
	case errors.Is(err, ErrTooLarge):
		p.logger.Debug("clipboard text over size limit, skipped", "limit", p.opts.MaxTextBytes)
		p.opts.Recorder.RecordPoll("too_large")
		return "too_large", nil
	}

	outcome, err := p.adder.Add(ctx, candidate)
	if err != nil {
		p.logger.Warn("failed to record clipboard entry",
			"type", candidate.Type,
			"hash_key", candidate.HashKey,
			"error", err,
		)
		p.opts.Recorder.RecordPoll("store_error")
		return "store_error", err
	}

	if outcome != hotcache.OutcomeUnchanged {
		p.logger.Debug("clipboard entry recorded",
			"outcome", outcome.String(),
			"type", candidate.Type,
			"hash_key", candidate.HashKey,
		)
	}
	p.opts.Recorder.RecordPoll(outcome.String())
	return outcome.String(), nil
}
