package sse

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Mopip77/pasteV/internal/id"
)

const (
	defaultHeartbeat = 30 * time.Second
	queueSize        = 256
	clientBuffer     = 64
	// replaySize bounds how many past events a reconnecting client can catch up on.
	replaySize = 128
)

// Client is one connected event stream.
type Client struct {
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}
	ID          string

	types map[EventType]bool // nil means every type
}

// wants reports whether the client subscribed to the event type.
// Heartbeats go to everyone.
func (c *Client) wants(t EventType) bool {
	return c.types == nil || t == EventHeartbeat || c.types[t]
}

// Subscription narrows what a client receives.
type Subscription struct {
	// Types limits delivery to these event types. Empty means all.
	Types []EventType
	// LastEventID replays retained events newer than this id.
	LastEventID uint64
}

// Manager fans history events out to connected clients.
type Manager struct {
	logger    *slog.Logger
	heartbeat time.Duration

	events chan Event
	seq    atomic.Uint64
	drops  atomic.Uint64

	mu      sync.RWMutex
	clients map[string]*Client
	replay  []Event // ring, oldest first once full
	next    int

	closeMu sync.RWMutex
	closed  bool
	running sync.WaitGroup
}

// NewManager creates a Manager. Call Start to begin broadcasting.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:    logger,
		heartbeat: defaultHeartbeat,
		events:    make(chan Event, queueSize),
		clients:   make(map[string]*Client),
		replay:    make([]Event, 0, replaySize),
	}
}

// Start runs the broadcast loop until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	m.running.Add(1)
	defer m.running.Done()

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-m.events:
			if !ok {
				return
			}
			m.broadcast(ev)
		case <-ticker.C:
			m.broadcast(NewHeartbeatEvent())
		case <-ctx.Done():
			m.closeAllClients()
			return
		}
	}
}

// Shutdown stops accepting events, flushes what is queued and closes every
// client. Safe to call more than once.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.closeMu.Lock()
	if m.closed {
		m.closeMu.Unlock()
		return nil
	}
	m.closed = true
	close(m.events)
	m.closeMu.Unlock()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range m.events {
			m.broadcast(ev)
		}
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		m.logger.Warn("event drain timed out", slog.Int("pending", len(m.events)))
	}

	m.running.Wait()
	m.closeAllClients()
	return nil
}

// Emit stamps the event with the next id and queues it. It never blocks:
// when the queue is full the event is counted as dropped.
func (m *Manager) Emit(ev Event) {
	m.closeMu.RLock()
	defer m.closeMu.RUnlock()
	if m.closed {
		return
	}

	ev.ID = m.seq.Add(1)
	select {
	case m.events <- ev:
	default:
		m.drops.Add(1)
		m.logger.Error("event queue full, dropping event",
			slog.String("event_type", string(ev.Type)),
			slog.Uint64("event_id", ev.ID))
	}
}

func (m *Manager) broadcast(ev Event) {
	var delivered, dropped int

	m.mu.Lock()
	defer m.mu.Unlock()

	if ev.Type != EventHeartbeat {
		m.remember(ev)
	}

	for _, c := range m.clients {
		if !c.wants(ev.Type) {
			continue
		}
		select {
		case c.EventChan <- ev:
			delivered++
		default:
			dropped++
		}
	}

	if dropped > 0 {
		m.drops.Add(uint64(dropped))
		m.logger.Warn("slow clients missed event",
			slog.String("event_type", string(ev.Type)),
			slog.Int("clients", dropped))
	}
	if ev.Type != EventHeartbeat {
		m.logger.Debug("event broadcast",
			slog.String("event_type", string(ev.Type)),
			slog.Uint64("event_id", ev.ID),
			slog.Int("delivered", delivered))
	}
}

// remember appends to the replay ring. Caller holds mu.
func (m *Manager) remember(ev Event) {
	if len(m.replay) < replaySize {
		m.replay = append(m.replay, ev)
		return
	}
	m.replay[m.next] = ev
	m.next = (m.next + 1) % replaySize
}

// missed returns retained events newer than after, oldest first. Caller holds mu.
func (m *Manager) missed(after uint64, c *Client) []Event {
	var out []Event
	for i := range len(m.replay) {
		ev := m.replay[(m.next+i)%len(m.replay)]
		if ev.ID > after && c.wants(ev.Type) {
			out = append(out, ev)
		}
	}
	return out
}

// Connect registers a client. Retained events the client missed since
// sub.LastEventID are queued ahead of live ones; if more were missed than
// fit in its buffer, the oldest are skipped.
func (m *Manager) Connect(sub Subscription) (*Client, error) {
	clientID, err := id.Generate(id.PrefixSubscriber)
	if err != nil {
		return nil, err
	}

	c := &Client{
		ID:          clientID,
		EventChan:   make(chan Event, clientBuffer),
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}
	if len(sub.Types) > 0 {
		c.types = make(map[EventType]bool, len(sub.Types))
		for _, t := range sub.Types {
			c.types[t] = true
		}
	}

	m.mu.Lock()
	var replayed int
	if sub.LastEventID > 0 {
		backlog := m.missed(sub.LastEventID, c)
		if len(backlog) > clientBuffer {
			backlog = backlog[len(backlog)-clientBuffer:]
		}
		for _, ev := range backlog {
			c.EventChan <- ev
		}
		replayed = len(backlog)
	}
	m.clients[c.ID] = c
	total := len(m.clients)
	m.mu.Unlock()

	m.logger.Info("event client connected",
		slog.String("client_id", c.ID),
		slog.Int("replayed", replayed),
		slog.Int("total_clients", total))
	return c, nil
}

// Disconnect removes a client and closes its channels.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	c, ok := m.clients[clientID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.clients, clientID)
	total := len(m.clients)
	m.mu.Unlock()

	close(c.Done)
	close(c.EventChan)

	m.logger.Info("event client disconnected",
		slog.String("client_id", clientID),
		slog.Duration("duration", time.Since(c.ConnectedAt)),
		slog.Int("total_clients", total))
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Dropped returns how many deliveries were lost to a full queue or a slow client.
func (m *Manager) Dropped() uint64 {
	return m.drops.Load()
}

// LastEventID returns the id of the most recently emitted event.
func (m *Manager) LastEventID() uint64 {
	return m.seq.Load()
}

func (m *Manager) closeAllClients() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.clients {
		close(c.Done)
		close(c.EventChan)
	}
	clear(m.clients)
}
