package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/Mopip77/pasteV/internal/errors"
	"github.com/Mopip77/pasteV/internal/logger"
)

const testHost = "https://llm.example.test/v1"

type callRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *callRecorder) RecordProviderCall(endpoint, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, endpoint+":"+status)
}

func newTestClient(t *testing.T, cfg Config) (*Client, *httpmock.MockTransport, *callRecorder) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	rec := &callRecorder{}
	c := NewClient(func() Config { return cfg }, Options{
		HTTPClient: &http.Client{Transport: transport},
		Timeout:    time.Second,
		Recorder:   rec,
	}, logger.Discard())
	return c, transport, rec
}

func configured() Config {
	return Config{APIHost: testHost, APIKey: "sk-test", Model: "gpt-4o-mini"}
}

func TestChatJSON(t *testing.T) {
	c, transport, rec := newTestClient(t, configured())

	var got chatRequest
	transport.RegisterResponder(http.MethodPost, testHost+"/chat/completions",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
			if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
				return nil, err
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"model":   "gpt-4o-mini",
				"choices": []any{map[string]any{"message": map[string]any{"content": `{"tags":["go"]}`}}},
			})
		})

	reply, err := c.ChatJSON(context.Background(), "tag this")
	require.NoError(t, err)
	assert.Equal(t, `{"tags":["go"]}`, reply)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "tag this", got.Messages[0].Content)
	assert.Equal(t, []string{"chat:ok"}, rec.calls)
}

func TestChatJSONWithImage_SendsDataURL(t *testing.T) {
	c, transport, _ := newTestClient(t, configured())

	var raw map[string]any
	transport.RegisterResponder(http.MethodPost, testHost+"/chat/completions",
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&raw); err != nil {
				return nil, err
			}
			return httpmock.NewStringResponse(http.StatusOK,
				`{"choices":[{"message":{"content":"{}"}}]}`), nil
		})

	_, err := c.ChatJSONWithImage(context.Background(), "describe", []byte{0xff, 0xd8}, "image/jpeg")
	require.NoError(t, err)

	parts := raw["messages"].([]any)[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].(map[string]any)["type"])
	img := parts[1].(map[string]any)["image_url"].(map[string]any)["url"]
	assert.Equal(t, "data:image/jpeg;base64,/9g=", img)
}

func TestEmbed(t *testing.T) {
	c, transport, _ := newTestClient(t, configured())

	var got embeddingRequest
	transport.RegisterResponder(http.MethodPost, testHost+"/embeddings",
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
				return nil, err
			}
			return httpmock.NewStringResponse(http.StatusOK,
				`{"model":"text-embedding-3-small","data":[{"embedding":[0.5,-0.25,1]}]}`), nil
		})

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25, 1}, vec)
	assert.Equal(t, DefaultEmbeddingModel, got.Model)
	assert.Equal(t, "hello", got.Input)
}

func TestNotConfigured(t *testing.T) {
	c, transport, _ := newTestClient(t, Config{APIHost: testHost, Model: "m"})
	assert.False(t, c.Configured())

	_, err := c.ChatJSON(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Zero(t, transport.GetTotalCallCount())
}

func TestProviderErrors(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
	}{
		{"server error", httpmock.NewStringResponder(http.StatusInternalServerError, `{"error":"overloaded"}`)},
		{"unauthorized", httpmock.NewStringResponder(http.StatusUnauthorized, `{"error":"bad key"}`)},
		{"garbage body", httpmock.NewStringResponder(http.StatusOK, `not json`)},
		{"no choices", httpmock.NewStringResponder(http.StatusOK, `{"choices":[]}`)},
		{"transport failure", httpmock.NewErrorResponder(assert.AnError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, transport, _ := newTestClient(t, configured())
			transport.RegisterResponder(http.MethodPost, testHost+"/chat/completions", tt.responder)

			_, err := c.ChatJSON(context.Background(), "x")
			require.Error(t, err)
			assert.ErrorIs(t, err, domainerrors.ErrProviderUnavailable)
		})
	}
}

func TestTimeout(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost, testHost+"/embeddings",
		func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		})

	rec := &callRecorder{}
	c := NewClient(configured, Options{
		HTTPClient: &http.Client{Transport: transport},
		Timeout:    30 * time.Millisecond,
		Recorder:   rec,
	}, logger.Discard())

	_, err := c.Embed(context.Background(), "slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrProviderUnavailable)
	assert.Equal(t, []string{"embed:timeout"}, rec.calls)
}

func TestParseTagResult(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    TagResult
		wantErr bool
	}{
		{"plain", `{"tags":["a","b"],"description":" text "}`, TagResult{Tags: []string{"a", "b"}, Description: "text"}, false},
		{"fenced", "```json\n{\"tags\":[\"a\"]}\n```", TagResult{Tags: []string{"a"}}, false},
		{"empty", "", TagResult{}, false},
		{"invalid", "tags: a", TagResult{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTagResult(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrompts(t *testing.T) {
	assert.Contains(t, TagPromptFromText("invoice #42"), "invoice #42")
	assert.Contains(t, TagPromptForImage(""), "(no text)")
	assert.Contains(t, TagPromptForImage(""), "50 to 100 characters")
}
