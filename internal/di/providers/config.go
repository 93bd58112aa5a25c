// Package providers contains dependency injection providers for the pasteV daemon.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/Mopip77/pasteV/internal/config"
	"github.com/Mopip77/pasteV/internal/logger"
	"github.com/Mopip77/pasteV/internal/metrics"
	"github.com/Mopip77/pasteV/internal/validation"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Format:      cfg.Logger.Format,
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
		ShowContent: cfg.Logger.ShowContent,
	})

	log.Info("Starting pasteV",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Storage.DataPath,
		"clipboard_backend", cfg.Poller.Backend,
	)

	return log, nil
}

// ProvideMetrics provides the Prometheus collectors.
func ProvideMetrics(i do.Injector) (*metrics.Metrics, error) {
	return metrics.New()
}

// ProvideValidator provides the shared struct validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}
