// Package sse streams clipboard history changes to local clients as
// server-sent events.
package sse

import (
	"fmt"
	"strings"
	"time"

	"github.com/Mopip77/pasteV/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventClipCreated is sent when a new entry is stored.
	EventClipCreated EventType = "clip.created"
	// EventClipTouched is sent when a repeated copy moves an entry to the top.
	EventClipTouched EventType = "clip.touched"
	// EventClipEnriched is sent when background enrichment changed an entry.
	EventClipEnriched EventType = "clip.enriched"
	// EventHistorySwept is sent after retention deleted entries.
	EventHistorySwept EventType = "history.swept"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// subscribable lists the types a client may filter on.
var subscribable = map[EventType]bool{
	EventClipCreated:  true,
	EventClipTouched:  true,
	EventClipEnriched: true,
	EventHistorySwept: true,
}

// ParseEventTypes parses a comma-separated list of event types.
// An empty string yields nil, meaning every type.
func ParseEventTypes(s string) ([]EventType, error) {
	var out []EventType
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t := EventType(part)
		if !subscribable[t] {
			return nil, fmt.Errorf("unknown event type %q", part)
		}
		out = append(out, t)
	}
	return out, nil
}

// Event represents an SSE event to be sent to clients.
// ID is assigned by the Manager when the event is emitted.
type Event struct {
	ID        uint64    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// ClipEventData carries the list projection of an entry, so clients can
// render it without a follow-up request.
type ClipEventData struct {
	Entry *domain.ClipboardMeta `json:"entry"`
}

// EnrichedEventData is the payload for clip.enriched events.
type EnrichedEventData struct {
	HashKey string           `json:"hash_key"`
	Type    domain.EntryType `json:"type"`
	Text    string           `json:"text,omitempty"`
	Details domain.Details   `json:"details"`
	Steps   []string         `json:"steps"` // steps that changed the entry
}

// SweptEventData is the payload for history.swept events.
type SweptEventData struct {
	Horizon time.Time `json:"horizon"`
	Deleted int64     `json:"deleted"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewClipCreatedEvent creates a clip.created event.
func NewClipCreatedEvent(meta *domain.ClipboardMeta) Event {
	return Event{
		Type:      EventClipCreated,
		Data:      ClipEventData{Entry: meta},
		Timestamp: time.Now(),
	}
}

// NewClipTouchedEvent creates a clip.touched event.
func NewClipTouchedEvent(meta *domain.ClipboardMeta) Event {
	return Event{
		Type:      EventClipTouched,
		Data:      ClipEventData{Entry: meta},
		Timestamp: time.Now(),
	}
}

// NewClipEnrichedEvent creates a clip.enriched event. Text is truncated to
// the list length.
func NewClipEnrichedEvent(data EnrichedEventData) Event {
	data.Text, _ = domain.TruncateText(data.Text, domain.MaxListTextLength)
	return Event{
		Type:      EventClipEnriched,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// NewHistorySweptEvent creates a history.swept event.
func NewHistorySweptEvent(horizon time.Time, deleted int64) Event {
	return Event{
		Type:      EventHistorySwept,
		Data:      SweptEventData{Horizon: horizon, Deleted: deleted},
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: now},
		Timestamp: now,
	}
}
