package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pagelens/pkg/provider"
	"pagelens/pkg/settings"
)

// DefaultBaseURL is the public generation endpoint root.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// DefaultOutputTokenBound applies when no bound has been persisted.
const DefaultOutputTokenBound = 1000

// Static generation tuning shared by this backend class.
var staticConfig = provider.GenerationConfig{
	Temperature: 0.7,
	TopP:        0.95,
	TopK:        40,
}

// Client calls one Gemini model over its REST generation endpoint. Two
// instances with different identifiers cover the flash and pro variants.
type Client struct {
	id          provider.ModelIdentifier
	baseURL     string
	httpClient  *http.Client
	credentials provider.CredentialSource
	builder     *provider.ConfigBuilder
	log         *slog.Logger
}

// Options tunes a Client beyond its identifier.
type Options struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// New builds a client for the given model identifier. creds supplies the
// API key per call; bounds feeds the dynamic output-length bound.
func New(id provider.ModelIdentifier, creds provider.CredentialSource, bounds provider.BoundSource, opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		id:          id,
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: timeout},
		credentials: creds,
		builder:     provider.NewConfigBuilder(staticConfig, DefaultOutputTokenBound, bounds),
		log:         slog.Default().With("component", "provider.gemini", "model", id.String()),
	}
}

// NewFlash builds the designated default backend.
func NewFlash(creds provider.CredentialSource, bounds provider.BoundSource, opts Options) *Client {
	return New(provider.NewModelIdentifier("gemini-2.5-flash", "v1"), creds, bounds, opts)
}

// NewPro builds the larger, slower variant.
func NewPro(creds provider.CredentialSource, bounds provider.BoundSource, opts Options) *Client {
	return New(provider.NewModelIdentifier("gemini-2.5-pro", "v1"), creds, bounds, opts)
}

// Identifier implements provider.Provider.
func (c *Client) Identifier() provider.ModelIdentifier {
	return c.id
}

// Wire shapes for the generation endpoint.

type generateRequest struct {
	Contents         []content                 `json:"contents"`
	GenerationConfig provider.GenerationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content       content        `json:"content"`
	FinishReason  string         `json:"finishReason"`
	SafetyRatings []safetyRating `json:"safetyRatings"`
}

type safetyRating struct {
	Category string `json:"category"`
	Blocked  bool   `json:"blocked"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements provider.Provider. Every expected failure mode is
// classified into a Result variant; the call makes exactly one network
// attempt.
func (c *Client) Generate(ctx context.Context, prompt string) provider.Result {
	startedAt := time.Now()
	log := c.log.With("operation", "generate")
	log.Debug("Generation started", "prompt_length", len(prompt))

	apiKey, err := c.credentials.APIKey(ctx)
	if err != nil {
		if errors.Is(err, settings.ErrCredentialMissing) {
			log.Debug("Generation failed", "error", "credential missing")
			return provider.TransportFailed(0, fmt.Sprintf("credential missing for backend %s", c.id))
		}
		log.Debug("Generation failed", "error", err)
		return provider.TransportFailed(0, fmt.Sprintf("resolve credential for backend %s: %v", c.id, err))
	}

	genConfig, err := c.builder.Build(ctx)
	if err != nil {
		log.Debug("Generation failed", "error", err)
		return provider.TransportFailed(0, err.Error())
	}

	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: genConfig,
	})
	if err != nil {
		return provider.TransportFailed(0, fmt.Sprintf("encode request: %v", err))
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.id.Name, url.QueryEscape(apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return provider.TransportFailed(0, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug("Generation failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return provider.TransportFailed(0, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Debug("Generation failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return provider.TransportFailed(resp.StatusCode, fmt.Sprintf("read response: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := httpErrorDetail(resp.StatusCode, raw)
		log.Debug("Generation failed", "duration_ms", time.Since(startedAt).Milliseconds(), "status", resp.StatusCode, "error", detail)
		return provider.TransportFailed(resp.StatusCode, detail)
	}

	result := classify(raw)
	log.Debug("Generation completed",
		"duration_ms", time.Since(startedAt).Milliseconds(),
		"kind", result.Kind,
		"response_length", len(result.Text),
	)

	return result
}

// httpErrorDetail prefers the structured message from the error body and
// falls back to a generic HTTP status string.
func httpErrorDetail(status int, raw []byte) string {
	var body errorResponse
	if err := json.Unmarshal(raw, &body); err == nil {
		if msg := strings.TrimSpace(body.Error.Message); msg != "" {
			return msg
		}
	}

	return fmt.Sprintf("HTTP %d", status)
}

// classify maps a 2xx body onto the result taxonomy. Only the first
// candidate is considered; later candidates are ignored.
func classify(raw []byte) provider.Result {
	var body generateResponse
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Candidates) == 0 {
		return provider.Malformed(json.RawMessage(raw))
	}

	first := body.Candidates[0]

	if text := candidateText(first); text != "" {
		return provider.Success(text)
	}

	if reason := strings.TrimSpace(first.FinishReason); reason != "" {
		return provider.Blocked(reason, blockedCategories(first.SafetyRatings))
	}

	return provider.Malformed(json.RawMessage(raw))
}

func candidateText(c candidate) string {
	if len(c.Content.Parts) == 0 {
		return ""
	}

	return c.Content.Parts[0].Text
}

// blockedCategories collects the categories explicitly flagged blocked,
// preserving response order. May be empty.
func blockedCategories(ratings []safetyRating) []string {
	categories := make([]string, 0, len(ratings))
	for _, rating := range ratings {
		if rating.Blocked {
			categories = append(categories, rating.Category)
		}
	}

	return categories
}
