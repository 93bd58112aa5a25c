package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	// writeTimeout bounds a single frame write; heartbeats keep idle streams under it.
	writeTimeout = 60 * time.Second
	// retryMillis is the reconnect delay suggested to clients.
	retryMillis = 3000
)

// Handler streams events to one client per request.
//
// Query parameters:
//
//	types          comma-separated event types to receive (default: all)
//	last_event_id  resume after this id, same as the Last-Event-ID header
type Handler struct {
	manager *Manager
	logger  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sub, err := subscriptionFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.Context().Err() != nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		h.logger.Error("streaming unsupported", slog.String("error", err.Error()))
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	client, err := h.manager.Connect(sub)
	if err != nil {
		h.logger.Error("register event client", slog.String("error", err.Error()))
		http.Error(w, "failed to establish stream", http.StatusInternalServerError)
		return
	}
	defer h.manager.Disconnect(client.ID)

	log := h.logger.With(slog.String("client_id", client.ID))

	if _, err := fmt.Fprintf(w, "retry: %d\n", retryMillis); err != nil {
		return
	}
	hello := map[string]any{"client_id": client.ID, "last_event_id": h.manager.LastEventID()}
	if err := h.write(w, rc, 0, "connected", hello); err != nil {
		log.Debug("client gone before hello", slog.String("error", err.Error()))
		return
	}

	for {
		select {
		case ev, ok := <-client.EventChan:
			if !ok {
				return
			}
			if err := h.write(w, rc, ev.ID, string(ev.Type), ev); err != nil {
				log.Debug("client gone during send", slog.String("error", err.Error()))
				return
			}
		case <-client.Done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func subscriptionFrom(r *http.Request) (Subscription, error) {
	var sub Subscription

	types, err := ParseEventTypes(r.URL.Query().Get("types"))
	if err != nil {
		return sub, err
	}
	sub.Types = types

	last := r.Header.Get("Last-Event-ID")
	if last == "" {
		last = r.URL.Query().Get("last_event_id")
	}
	if last != "" {
		n, err := strconv.ParseUint(last, 10, 64)
		if err != nil {
			return sub, fmt.Errorf("invalid last event id %q", last)
		}
		sub.LastEventID = n
	}
	return sub, nil
}

// write emits one frame. An id of zero omits the id line so connection
// frames do not move the client's resume point.
func (h *Handler) write(w io.Writer, rc *http.ResponseController, id uint64, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	if id > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}
	// Not every ResponseWriter supports deadlines.
	_ = rc.SetWriteDeadline(time.Now().Add(writeTimeout))
	return nil
}
