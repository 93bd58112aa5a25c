package providers

import (
	"github.com/Mopip77/pasteV/internal/domain"
	"github.com/Mopip77/pasteV/internal/enrich"
	"github.com/Mopip77/pasteV/internal/service"
	"github.com/Mopip77/pasteV/internal/sse"
)

// ssePublisher forwards history changes to connected SSE clients.
type ssePublisher struct {
	manager *sse.Manager
}

// EntryEnriched implements enrich.Publisher.
func (p ssePublisher) EntryEnriched(r enrich.Result) {
	steps := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		if s.Wrote {
			steps = append(steps, s.Step)
		}
	}
	p.manager.Emit(sse.NewClipEnrichedEvent(sse.EnrichedEventData{
		HashKey: r.HashKey,
		Type:    r.Type,
		Text:    r.Text,
		Details: r.Details,
		Steps:   steps,
	}))
}

func (p ssePublisher) entryInserted(e *domain.ClipboardEntry) {
	p.manager.Emit(sse.NewClipCreatedEvent(e.Meta()))
}

func (p ssePublisher) entryTouched(m *domain.ClipboardMeta) {
	p.manager.Emit(sse.NewClipTouchedEvent(m))
}

func (p ssePublisher) historySwept(r *service.SweepResult) {
	if r.Deleted == 0 {
		return
	}
	p.manager.Emit(sse.NewHistorySweptEvent(r.Horizon, r.Deleted))
}
