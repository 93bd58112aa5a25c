package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/Mopip77/pasteV/internal/api"
	"github.com/Mopip77/pasteV/internal/config"
	"github.com/Mopip77/pasteV/internal/logger"
	"github.com/Mopip77/pasteV/internal/metrics"
	"github.com/Mopip77/pasteV/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
// Server is nil when the API is disabled.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	if h.Server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the local API server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Server.Enabled {
		log.Info("HTTP API disabled by configuration")
		return &HTTPServerHandle{}, nil
	}

	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	pipelineHandle := do.MustInvoke[*EnrichPipelineHandle](i)

	services := &api.Services{
		History:  do.MustInvoke[*service.HistoryService](i),
		Settings: do.MustInvoke[*service.SettingsService](i),
		Enrich:   pipelineHandle.Pipeline,
	}

	handler := api.NewServer(services, sseHandle.Manager, m.Handler(), log.Component("api"))

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Bind now so a taken port fails startup instead of a background log line.
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}

	// Start in background
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}
