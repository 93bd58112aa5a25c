package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns daemon health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// Component states.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
	Entries    map[string]int64           `json:"entries,omitempty" doc:"Entry counts by type"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	resp := HealthResponse{
		Status:     statusHealthy,
		Components: make(map[string]ComponentHealth),
	}

	db, entries := s.checkDatabase(ctx)
	resp.add("database", db)
	resp.Entries = entries

	resp.add("enrichment", s.checkEnrichment())
	resp.add("sse", s.checkSSEManager())

	return &HealthOutput{Body: resp}, nil
}

// add records a component and folds its status into the overall one.
func (r *HealthResponse) add(name string, c ComponentHealth) {
	r.Components[name] = c
	switch {
	case c.Status == statusUnhealthy:
		r.Status = statusUnhealthy
	case c.Status == statusDegraded && r.Status == statusHealthy:
		r.Status = statusDegraded
	}
}

// checkDatabase verifies SQLite is readable and reports entry counts.
func (s *Server) checkDatabase(ctx context.Context) (ComponentHealth, map[string]int64) {
	if s.services == nil || s.services.History == nil {
		return ComponentHealth{Status: statusDegraded, Message: "database not configured"}, nil
	}

	start := time.Now()
	stats, err := s.services.History.Stats(ctx)
	latency := time.Since(start)
	if err != nil {
		return ComponentHealth{
			Status:  statusUnhealthy,
			Latency: latency.String(),
			Message: "database read failed",
		}, nil
	}

	entries := make(map[string]int64, len(stats.Entries))
	for typ, n := range stats.Entries {
		entries[string(typ)] = n
	}
	return ComponentHealth{
		Status:  statusHealthy,
		Latency: latency.String(),
		Message: fmt.Sprintf("schema v%d, %d tags, %d embedded", stats.SchemaVersion, stats.Tags, stats.Embedded),
	}, entries
}

func (s *Server) checkEnrichment() ComponentHealth {
	if s.services == nil || s.services.Enrich == nil {
		return ComponentHealth{Status: statusHealthy, Message: "enrichment not running"}
	}
	return ComponentHealth{
		Status:  statusHealthy,
		Message: plural(s.services.Enrich.InFlight(), "entry", "entries") + " in flight",
	}
}

// checkSSEManager reports connected event stream clients.
func (s *Server) checkSSEManager() ComponentHealth {
	if s.sseManager == nil {
		return ComponentHealth{Status: statusDegraded, Message: "SSE manager not configured"}
	}
	msg := plural(s.sseManager.ClientCount(), "connected client", "connected clients")
	if dropped := s.sseManager.Dropped(); dropped > 0 {
		msg += fmt.Sprintf(", %d deliveries dropped", dropped)
	}
	return ComponentHealth{Status: statusHealthy, Message: msg}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
