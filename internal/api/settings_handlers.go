package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Mopip77/pasteV/internal/settings"
)

func (s *Server) registerSettingsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getSettings",
		Method:      http.MethodGet,
		Path:        "/api/v1/settings",
		Summary:     "Get settings",
		Description: "Returns the current feature settings",
		Tags:        []string{"Settings"},
	}, s.handleGetSettings)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateSettings",
		Method:      http.MethodPut,
		Path:        "/api/v1/settings",
		Summary:     "Update settings",
		Description: "Replaces the settings file. Changes apply to the next poll, enrichment, and query.",
		Tags:        []string{"Settings"},
	}, s.handleUpdateSettings)
}

// SettingsOutput wraps settings for Huma.
type SettingsOutput struct {
	Body settings.Settings
}

// UpdateSettingsInput wraps a full settings document for Huma.
type UpdateSettingsInput struct {
	Body settings.Settings
}

func (s *Server) handleGetSettings(_ context.Context, _ *struct{}) (*SettingsOutput, error) {
	return &SettingsOutput{Body: s.services.Settings.Get()}, nil
}

func (s *Server) handleUpdateSettings(_ context.Context, input *UpdateSettingsInput) (*SettingsOutput, error) {
	updated, err := s.services.Settings.Update(input.Body)
	if err != nil {
		return nil, err
	}
	return &SettingsOutput{Body: updated}, nil
}
