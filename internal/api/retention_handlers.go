package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/Mopip77/pasteV/internal/errors"
	"github.com/Mopip77/pasteV/internal/retention"
	"github.com/Mopip77/pasteV/internal/service"
)

func (s *Server) registerRetentionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "sweepHistory",
		Method:      http.MethodPost,
		Path:        "/api/v1/retention/sweep",
		Summary:     "Delete old history",
		Description: "Deletes entries last used before a horizon. Without before or days, the configured historyClearDays is used.",
		Tags:        []string{"Retention"},
	}, s.handleSweepHistory)
}

// SweepRequest selects the retention horizon.
type SweepRequest struct {
	Before *FlexTime `json:"before,omitempty" doc:"Delete entries last used before this time"`
	Days   int       `json:"days,omitempty" minimum:"0" maximum:"36500" doc:"Delete entries not used in this many days"`
}

// SweepInput wraps the sweep request for Huma.
type SweepInput struct {
	Body SweepRequest
}

// SweepOutput wraps the sweep result for Huma.
type SweepOutput struct {
	Body service.SweepResult
}

func (s *Server) handleSweepHistory(ctx context.Context, input *SweepInput) (*SweepOutput, error) {
	horizon, err := s.sweepHorizon(input.Body, time.Now())
	if err != nil {
		return nil, err
	}

	res, err := s.services.History.DeleteOlderThan(ctx, horizon)
	if err != nil {
		return nil, err
	}
	return &SweepOutput{Body: *res}, nil
}

func (s *Server) sweepHorizon(req SweepRequest, now time.Time) (time.Time, error) {
	switch {
	case req.Before != nil && req.Days > 0:
		return time.Time{}, domainerrors.Validation("set either before or days, not both")
	case req.Before != nil:
		if req.Before.IsZero() {
			return time.Time{}, domainerrors.Validation("before must be a valid time")
		}
		return req.Before.Time, nil
	case req.Days > 0:
		return now.AddDate(0, 0, -req.Days), nil
	}

	if s.services.Settings == nil {
		return time.Time{}, domainerrors.Validation("before or days is required")
	}
	horizon, ok := retention.Horizon(now, s.services.Settings.Get())
	if !ok {
		return time.Time{}, domainerrors.Validation("retention is disabled; pass before or days")
	}
	return horizon, nil
}
