package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pagelens/pkg/provider"
	"pagelens/pkg/settings"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultOutputTokenBound applies when no bound has been persisted.
const DefaultOutputTokenBound = 1000

var staticConfig = provider.GenerationConfig{
	Temperature: 0.7,
	TopP:        1.0,
}

// Client is an OpenAI-backed generation provider. It speaks through the
// official SDK and maps its outcomes onto the shared result taxonomy.
type Client struct {
	id          provider.ModelIdentifier
	baseURL     string
	credentials provider.CredentialSource
	builder     *provider.ConfigBuilder
	timeout     time.Duration
	log         *slog.Logger
}

// Options tunes a Client beyond its identifier.
type Options struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// New builds a client for the given chat model.
func New(id provider.ModelIdentifier, creds provider.CredentialSource, bounds provider.BoundSource, opts Options) *Client {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		id:          id,
		baseURL:     strings.TrimSpace(opts.BaseURL),
		credentials: creds,
		builder:     provider.NewConfigBuilder(staticConfig, DefaultOutputTokenBound, bounds),
		timeout:     timeout,
		log:         slog.Default().With("component", "provider.openai", "model", id.String()),
	}
}

// Identifier implements provider.Provider.
func (c *Client) Identifier() provider.ModelIdentifier {
	return c.id
}

// Generate implements provider.Provider. SDK and HTTP failures become
// transport-failure results; a content-filter finish becomes a blocked
// result; an empty completion is malformed.
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
		return provider.TransportFailed(0, fmt.Sprintf("resolve credential for backend %s: %v", c.id, err))
	}

	genConfig, err := c.builder.Build(ctx)
	if err != nil {
		log.Debug("Generation failed", "error", err)
		return provider.TransportFailed(0, err.Error())
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if c.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(c.baseURL))
	}
	sdk := osdk.NewClient(clientOpts...)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	completion, err := sdk.Chat.Completions.New(ctx, osdk.ChatCompletionNewParams{
		Model: osdk.ChatModel(c.id.Name),
		Messages: []osdk.ChatCompletionMessageParamUnion{
			osdk.UserMessage(prompt),
		},
		MaxCompletionTokens: osdk.Int(int64(genConfig.MaxOutputTokens)),
		Temperature:         osdk.Float(genConfig.Temperature),
		TopP:                osdk.Float(genConfig.TopP),
	})
	if err != nil {
		status := 0
		var apiErr *osdk.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		log.Debug("Generation failed", "duration_ms", time.Since(startedAt).Milliseconds(), "status", status, "error", err)
		return provider.TransportFailed(status, err.Error())
	}

	if len(completion.Choices) == 0 {
		return provider.Malformed(json.RawMessage(completion.RawJSON()))
	}

	choice := completion.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)

	if text != "" {
		log.Debug("Generation completed", "duration_ms", time.Since(startedAt).Milliseconds(), "response_length", len(text))
		return provider.Success(text)
	}

	if reason := strings.TrimSpace(choice.FinishReason); reason != "" {
		log.Debug("Generation blocked", "duration_ms", time.Since(startedAt).Milliseconds(), "reason", reason)
		return provider.Blocked(reason, nil)
	}

	return provider.Malformed(json.RawMessage(completion.RawJSON()))
}
