package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "queryTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags",
		Summary:     "Suggest tags",
		Description: "Returns distinct tag names containing the query, for filter autocompletion",
		Tags:        []string{"Tags"},
	}, s.handleQueryTags)
}

// QueryTagsInput contains parameters for tag suggestions.
type QueryTagsInput struct {
	Q     string `query:"q" maxLength:"64" doc:"Substring to match"`
	Limit int    `query:"limit" minimum:"0" maximum:"100" doc:"Maximum names (0 means 20)"`
}

// QueryTagsResponse contains matching tag names.
type QueryTagsResponse struct {
	Tags []string `json:"tags" doc:"Tag names"`
}

// QueryTagsOutput wraps the tag response for Huma.
type QueryTagsOutput struct {
	Body QueryTagsResponse
}

func (s *Server) handleQueryTags(ctx context.Context, input *QueryTagsInput) (*QueryTagsOutput, error) {
	names, err := s.services.History.QueryTags(ctx, input.Q, input.Limit)
	if err != nil {
		return nil, err
	}
	return &QueryTagsOutput{Body: QueryTagsResponse{Tags: names}}, nil
}
