// Package ai talks to OpenAI-compatible chat completion and embedding APIs.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainerrors "github.com/Mopip77/pasteV/internal/errors"
	"github.com/Mopip77/pasteV/internal/ratelimit"
)

// DefaultEmbeddingModel is used for every embedding request.
const DefaultEmbeddingModel = "text-embedding-3-small"

// maxResponseBytes bounds provider responses.
const maxResponseBytes = 8 << 20

// ErrNotConfigured is returned when host, key, or model is missing.
var ErrNotConfigured = errors.New("ai provider not configured")

// Config identifies a provider endpoint. It is resolved on every call so a
// settings change takes effect without a restart.
type Config struct {
	APIHost string
	APIKey  string
	Model   string
}

// Configured reports whether all required fields are present.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.APIHost) != "" && c.APIKey != "" && c.Model != ""
}

// ConfigFunc returns the current provider config.
type ConfigFunc func() Config

// Recorder observes provider calls. Status is "ok", "error", or "timeout".
type Recorder interface {
	RecordProviderCall(endpoint, status string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordProviderCall(string, string, time.Duration) {}

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client // defaults to a client without its own timeout
	Timeout    time.Duration
	Limiter    *ratelimit.KeyedRateLimiter
	Recorder   Recorder
}

// Client issues chat and embedding requests.
type Client struct {
	config   ConfigFunc
	http     *http.Client
	timeout  time.Duration
	limiter  *ratelimit.KeyedRateLimiter
	recorder Recorder
	logger   *slog.Logger
}

// NewClient creates a client that reads its provider config from fn.
func NewClient(fn ConfigFunc, opts Options, logger *slog.Logger) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New(0, 1)
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &Client{
		config:   fn,
		http:     opts.HTTPClient,
		timeout:  opts.Timeout,
		limiter:  opts.Limiter,
		recorder: opts.Recorder,
		logger:   logger,
	}
}

// Configured reports whether the current settings name a usable provider.
func (c *Client) Configured() bool {
	return c.config().Configured()
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []contentPart
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage json.RawMessage `json:"usage"`
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Model string `json:"model"`
	Data  []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// ChatJSON asks for a JSON object reply.
func (c *Client) ChatJSON(ctx context.Context, prompt string) (string, error) {
	return c.chat(ctx, prompt, nil, "")
}

// ChatJSONWithImage asks for a JSON object reply about an image, attached as
// a data URL with the given MIME type.
func (c *Client) ChatJSONWithImage(ctx context.Context, prompt string, image []byte, mime string) (string, error) {
	return c.chat(ctx, prompt, image, mime)
}

func (c *Client) chat(ctx context.Context, prompt string, image []byte, mime string) (string, error) {
	cfg := c.config()
	if !cfg.Configured() {
		return "", ErrNotConfigured
	}

	msg := chatMessage{Role: "user", Content: prompt}
	if len(image) > 0 {
		if mime == "" {
			mime = "image/jpeg"
		}
		msg.Content = []contentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &imageURL{
				URL: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image),
			}},
		}
	}

	req := chatRequest{
		Model:          cfg.Model,
		Messages:       []chatMessage{msg},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var resp chatResponse
	if err := c.post(ctx, cfg, "chat", "chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", domainerrors.ProviderUnavailable(errors.New("response has no choices"), "chat")
	}

	c.logger.Debug("chat completed", "model", resp.Model, "usage", string(resp.Usage))
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	cfg := c.config()
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	var resp embeddingResponse
	if err := c.post(ctx, cfg, "embed", "embeddings", embeddingRequest{Model: DefaultEmbeddingModel, Input: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, domainerrors.ProviderUnavailable(errors.New("response has no embedding"), "embed")
	}
	return resp.Data[0].Embedding, nil
}

// post sends body to {apiHost}/{path} and decodes the JSON reply into out.
func (c *Client) post(ctx context.Context, cfg Config, endpoint, path string, body, out any) error {
	endpointURL, err := url.JoinPath(strings.TrimSpace(cfg.APIHost), path)
	if err != nil {
		return domainerrors.Validationf("invalid api host %q", cfg.APIHost)
	}

	// One bucket per provider host and endpoint.
	if err := c.limiter.Wait(ctx, hostKey(cfg.APIHost)+"/"+endpoint); err != nil {
		return domainerrors.ProviderUnavailable(err, endpoint)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", endpoint, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		status := "error"
		if ctx.Err() != nil {
			status = "timeout"
		}
		c.recorder.RecordProviderCall(endpoint, status, time.Since(start))
		return domainerrors.ProviderUnavailable(err, endpoint)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.recorder.RecordProviderCall(endpoint, "error", time.Since(start))
		return domainerrors.ProviderUnavailable(err, endpoint)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.recorder.RecordProviderCall(endpoint, "error", time.Since(start))
		return domainerrors.ProviderUnavailable(
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 200)), endpoint)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		c.recorder.RecordProviderCall(endpoint, "error", time.Since(start))
		return domainerrors.ProviderUnavailable(fmt.Errorf("decode response: %w", err), endpoint)
	}

	c.recorder.RecordProviderCall(endpoint, "ok", time.Since(start))
	return nil
}

func hostKey(apiHost string) string {
	if u, err := url.Parse(strings.TrimSpace(apiHost)); err == nil && u.Host != "" {
		return u.Host
	}
	return apiHost
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
