package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Mopip77/pasteV/internal/domain"
	domainerrors "github.com/Mopip77/pasteV/internal/errors"
	"github.com/Mopip77/pasteV/internal/hotcache"
	"github.com/Mopip77/pasteV/internal/service"
	"github.com/Mopip77/pasteV/internal/store"
)

func (s *Server) registerClipRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listClips",
		Method:      http.MethodGet,
		Path:        "/api/v1/clips",
		Summary:     "List clipboard history",
		Description: "Returns one page of history, most recently used first. Pass next_cursor back as cursor for the next page.",
		Tags:        []string{"Clips"},
	}, s.handleListClips)

	huma.Register(s.api, huma.Operation{
		OperationID: "semanticSearchClips",
		Method:      http.MethodPost,
		Path:        "/api/v1/clips/semantic-search",
		Summary:     "Semantic search",
		Description: "Ranks text and image entries by embedding similarity to the query text",
		Tags:        []string{"Clips"},
	}, s.handleSemanticSearch)

	huma.Register(s.api, huma.Operation{
		OperationID:  "captureClip",
		Method:       http.MethodPost,
		Path:         "/api/v1/clips",
		Summary:      "Capture clipboard content",
		Description:  "Records a payload through the same dedup path as the clipboard poller",
		Tags:         []string{"Clips"},
		MaxBodyBytes: MaxCaptureSize,
	}, s.handleCaptureClip)

	huma.Register(s.api, huma.Operation{
		OperationID: "getClipBlob",
		Method:      http.MethodGet,
		Path:        "/api/v1/clips/{hashKey}/blob",
		Summary:     "Get image bytes",
		Description: "Returns the raw image of an image entry",
		Tags:        []string{"Clips"},
	}, s.handleGetClipBlob)

	huma.Register(s.api, huma.Operation{
		OperationID: "getClipText",
		Method:      http.MethodGet,
		Path:        "/api/v1/clips/{hashKey}/text",
		Summary:     "Get full text",
		Description: "Returns the untruncated text of an entry",
		Tags:        []string{"Clips"},
	}, s.handleGetClipText)
}

// === DTOs ===

// ListClipsInput contains filter and pagination parameters.
type ListClipsInput struct {
	Keyword string   `query:"keyword" maxLength:"1024" doc:"Substring to match, or a pattern when regex is set"`
	Regex   bool     `query:"regex" doc:"Treat keyword as a case-insensitive regular expression"`
	Type    string   `query:"type" doc:"Entry type: text, image, or file"`
	Tags    []string `query:"tags" doc:"Entries must carry every listed tag"`
	Cursor  string   `query:"cursor" doc:"last_read_time of the previous page's last item"`
	Size    int      `query:"size" minimum:"0" maximum:"200" doc:"Page size (0 means 50)"`
}

// ClipListResponse is one page of history.
type ClipListResponse struct {
	Items      []*domain.ClipboardMeta `json:"items" doc:"Entries, most recently used first"`
	NextCursor string                  `json:"next_cursor,omitempty" doc:"Cursor for the next page, absent on the last page"`
	HasMore    bool                    `json:"has_more" doc:"Whether another page may follow"`
}

// ClipListOutput wraps the list response for Huma.
type ClipListOutput struct {
	Body ClipListResponse
}

// SemanticSearchRequest is the request body for semantic search.
type SemanticSearchRequest struct {
	Text      string  `json:"text" maxLength:"8000" doc:"Query text"`
	Threshold float64 `json:"threshold,omitempty" minimum:"0" maximum:"1" doc:"Minimum similarity (defaults to the configured threshold)"`
	Size      int     `json:"size,omitempty" minimum:"0" maximum:"200" doc:"Maximum results (0 means 50)"`
}

// SemanticSearchInput wraps the semantic search request for Huma.
type SemanticSearchInput struct {
	Body SemanticSearchRequest
}

// SemanticSearchOutput wraps ranked results for Huma.
type SemanticSearchOutput struct {
	Body ClipListResponse
}

// CaptureRequest is a manually pushed clipboard payload.
type CaptureRequest struct {
	Text      string   `json:"text,omitempty" doc:"Plain text"`
	HTML      string   `json:"html,omitempty" doc:"HTML, converted to text when no plain text is given"`
	FileURIs  []string `json:"file_uris,omitempty" maxItems:"1000" doc:"file:// URIs"`
	Image     []byte   `json:"image,omitempty" doc:"Base64 encoded image bytes"`
	ImageMime string   `json:"image_mime,omitempty" doc:"Image MIME type"`
}

// CaptureInput wraps the capture request for Huma.
type CaptureInput struct {
	Body CaptureRequest
}

// CaptureResponse reports what a capture did.
type CaptureResponse struct {
	Outcome string                `json:"outcome" enum:"unchanged,touched,inserted" doc:"What happened to the history"`
	Entry   *domain.ClipboardMeta `json:"entry" doc:"The stored entry"`
}

// CaptureOutput wraps the capture response for Huma.
type CaptureOutput struct {
	Status int
	Body   CaptureResponse
}

// ClipKeyInput identifies an entry by hash key.
type ClipKeyInput struct {
	HashKey string `path:"hashKey" minLength:"1" maxLength:"256" doc:"Entry hash key"`
}

// ClipBlobOutput carries raw image bytes.
type ClipBlobOutput struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}

// ClipTextResponse contains the untruncated text of an entry.
type ClipTextResponse struct {
	HashKey string `json:"hash_key" doc:"Entry hash key"`
	Text    string `json:"text" doc:"Full text"`
}

// ClipTextOutput wraps the text response for Huma.
type ClipTextOutput struct {
	Body ClipTextResponse
}

// === Handlers ===

func (s *Server) handleListClips(ctx context.Context, input *ListClipsInput) (*ClipListOutput, error) {
	f := domain.Filter{
		Keyword: input.Keyword,
		Regex:   input.Regex,
		Tags:    compactTags(input.Tags),
		Size:    input.Size,
	}
	if input.Type != "" {
		typ, err := domain.ParseEntryType(input.Type)
		if err != nil {
			return nil, domainerrors.Validation(err.Error())
		}
		f.Type = typ
	}
	if input.Cursor != "" {
		t, err := ParseFlexTime(input.Cursor)
		if err != nil {
			return nil, domainerrors.Validation("cursor must be an RFC3339 timestamp or epoch milliseconds")
		}
		f.Cursor = &t
	}

	metas, err := s.services.History.Query(ctx, f)
	if err != nil {
		return nil, err
	}

	page := store.NewPage(metas, f.PageSize())
	resp := ClipListResponse{Items: page.Items, HasMore: page.HasMore}
	if page.NextCursor != nil {
		resp.NextCursor = page.NextCursor.Format(time.RFC3339Nano)
	}
	return &ClipListOutput{Body: resp}, nil
}

func (s *Server) handleSemanticSearch(ctx context.Context, input *SemanticSearchInput) (*SemanticSearchOutput, error) {
	metas, err := s.services.History.SemanticQuery(ctx, input.Body.Text, input.Body.Threshold, input.Body.Size)
	if err != nil {
		return nil, err
	}
	return &SemanticSearchOutput{Body: ClipListResponse{Items: metas}}, nil
}

func (s *Server) handleCaptureClip(ctx context.Context, input *CaptureInput) (*CaptureOutput, error) {
	res, err := s.services.History.Add(ctx, service.Capture{
		Text:      input.Body.Text,
		HTML:      input.Body.HTML,
		FileURIs:  input.Body.FileURIs,
		Image:     input.Body.Image,
		ImageMime: input.Body.ImageMime,
	})
	if err != nil {
		return nil, err
	}

	status := http.StatusOK
	if res.Outcome == hotcache.OutcomeInserted {
		status = http.StatusCreated
	}
	return &CaptureOutput{
		Status: status,
		Body: CaptureResponse{
			Outcome: res.Outcome.String(),
			Entry:   res.Entry,
		},
	}, nil
}

func (s *Server) handleGetClipBlob(ctx context.Context, input *ClipKeyInput) (*ClipBlobOutput, error) {
	blob, err := s.services.History.GetBlob(ctx, input.HashKey)
	if err != nil {
		return nil, err
	}
	return &ClipBlobOutput{
		ContentType:  http.DetectContentType(blob),
		CacheControl: CacheImmutable,
		Body:         blob,
	}, nil
}

func (s *Server) handleGetClipText(ctx context.Context, input *ClipKeyInput) (*ClipTextOutput, error) {
	text, err := s.services.History.GetFullText(ctx, input.HashKey)
	if err != nil {
		return nil, err
	}
	return &ClipTextOutput{Body: ClipTextResponse{HashKey: input.HashKey, Text: text}}, nil
}

// compactTags trims tag names and drops empty ones.
func compactTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
