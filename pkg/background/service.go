package background

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"pagelens/pkg/bus"
	"pagelens/pkg/prompts"
	"pagelens/pkg/provider"
	"pagelens/pkg/settings"
)

// Bus actions the background context answers.
const (
	ActionGenerate       = "generate"
	ActionGetCredential  = "get-credential"
	ActionSaveCredential = "save-credential"
	ActionGetSettings    = "get-settings"
	ActionSaveSetting    = "save-setting"
	ActionListTemplates  = "list-templates"
)

// GeneratePayload is the inbound body for ActionGenerate. When Template is
// set, Prompt is treated as page content and rendered through it; otherwise
// Prompt is sent to the backend as-is.
type GeneratePayload struct {
	Prompt   string `json:"prompt"`
	Template string `json:"template,omitempty"`
}

// GenerateReply is the outbound body for ActionGenerate. Error carries the
// user-visible explanation when Success is false.
type GenerateReply struct {
	Success           bool     `json:"success"`
	Text              string   `json:"text,omitempty"`
	Error             string   `json:"error,omitempty"`
	BlockedCategories []string `json:"blockedCategories,omitempty"`
}

// CredentialReply is the outbound body for ActionGetCredential.
type CredentialReply struct {
	Present bool   `json:"present"`
	Value   string `json:"value,omitempty"`
}

// SettingsReply is the outbound body for ActionGetSettings, with defaults
// already applied.
type SettingsReply struct {
	SelectedModel   string   `json:"selectedModel"`
	MaxOutputTokens int      `json:"maxOutputTokens"`
	Models          []string `json:"models"`
}

// Service is the background execution context: it owns the provider
// registry and capability stores, and answers every inbound bus action.
type Service struct {
	registry    *provider.Registry
	credentials *settings.Credentials
	settings    *settings.Settings
	templates   *prompts.Library
	log         *slog.Logger
}

// NewService wires the background context's collaborators.
func NewService(
	registry *provider.Registry,
	credentials *settings.Credentials,
	st *settings.Settings,
	templates *prompts.Library,
	log *slog.Logger,
) (*Service, error) {
	if registry == nil {
		return nil, errors.New("provider registry is required")
	}
	if credentials == nil || st == nil || templates == nil {
		return nil, errors.New("credential, settings, and template capabilities are required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		registry:    registry,
		credentials: credentials,
		settings:    st,
		templates:   templates,
		log:         log.With("component", "background.service"),
	}, nil
}

// Attach installs the service as the context's single inbound handler.
func (s *Service) Attach(endpoint *bus.Bus) {
	endpoint.RegisterHandler(s.Handle)
}

// Handle dispatches one inbound message by action.
func (s *Service) Handle(ctx context.Context, msg bus.Message) (json.RawMessage, error) {
	switch msg.Action {
	case ActionGenerate:
		return s.handleGenerate(ctx, msg)
	case ActionGetCredential:
		return s.handleGetCredential(ctx)
	case ActionSaveCredential:
		return s.handleSaveCredential(ctx, msg)
	case ActionGetSettings:
		return s.handleGetSettings(ctx)
	case ActionSaveSetting:
		return s.handleSaveSetting(ctx, msg)
	case ActionListTemplates:
		return s.handleListTemplates(ctx)
	default:
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
}

func (s *Service) handleGenerate(ctx context.Context, msg bus.Message) (json.RawMessage, error) {
	var payload GeneratePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode generate payload: %w", err)
	}
	if strings.TrimSpace(payload.Prompt) == "" {
		return nil, errors.New("prompt is required")
	}

	prompt := payload.Prompt
	if payload.Template != "" {
		templateText, err := s.templates.Resolve(ctx, payload.Template)
		if err != nil {
			return nil, err
		}
		prompt, err = prompts.Render(templateText, payload.Prompt)
		if err != nil {
			return nil, err
		}
	}

	preference, err := s.settings.GetString(ctx, settings.KeySelectedModel, "")
	if err != nil {
		return nil, err
	}
	backend, err := s.registry.Resolve(preference)
	if err != nil {
		return nil, err
	}

	s.log.Info("Generation requested",
		"request_id", msg.RequestID,
		"model", backend.Identifier().String(),
		"prompt_length", len(prompt),
	)

	result := backend.Generate(ctx, prompt)
	reply := replyFor(result)
	if !reply.Success {
		s.log.Warn("Generation did not produce text",
			"request_id", msg.RequestID,
			"model", backend.Identifier().String(),
			"kind", result.Kind,
			"detail", result.Detail,
		)
	}

	return json.Marshal(reply)
}

// replyFor renders a classified result as the user-facing wire reply.
func replyFor(result provider.Result) GenerateReply {
	switch result.Kind {
	case provider.KindSuccess:
		return GenerateReply{Success: true, Text: result.Text}
	case provider.KindBlocked:
		message := fmt.Sprintf("Generation was blocked by the model (reason: %s).", result.Reason)
		if len(result.Categories) > 0 {
			message = fmt.Sprintf("Generation was blocked by the model (reason: %s; categories: %s).",
				result.Reason, strings.Join(result.Categories, ", "))
		}
		return GenerateReply{Error: message, BlockedCategories: result.Categories}
	case provider.KindMalformed:
		return GenerateReply{Error: "The model returned an unexpected response."}
	default:
		return GenerateReply{Error: "The request failed. Please try again."}
	}
}

func (s *Service) handleGetCredential(ctx context.Context) (json.RawMessage, error) {
	value, err := s.credentials.APIKey(ctx)
	if errors.Is(err, settings.ErrCredentialMissing) {
		return json.Marshal(CredentialReply{Present: false})
	}
	if err != nil {
		return nil, err
	}

	return json.Marshal(CredentialReply{Present: true, Value: value})
}

func (s *Service) handleSaveCredential(ctx context.Context, msg bus.Message) (json.RawMessage, error) {
	var payload struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode credential payload: %w", err)
	}

	if err := s.credentials.SetAPIKey(ctx, payload.Value); err != nil {
		return nil, err
	}

	return json.Marshal(map[string]bool{"saved": true})
}

func (s *Service) handleGetSettings(ctx context.Context) (json.RawMessage, error) {
	model, err := s.settings.GetString(ctx, settings.KeySelectedModel, s.registry.Default())
	if err != nil {
		return nil, err
	}

	bound, err := s.settings.GetInt(ctx, settings.KeyMaxOutputTokens, 1000)
	if err != nil {
		return nil, err
	}

	return json.Marshal(SettingsReply{
		SelectedModel:   model,
		MaxOutputTokens: bound,
		Models:          s.registry.Names(),
	})
}

func (s *Service) handleSaveSetting(ctx context.Context, msg bus.Message) (json.RawMessage, error) {
	var payload struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode setting payload: %w", err)
	}

	switch payload.Key {
	case settings.KeySelectedModel:
		if err := s.settings.SetString(ctx, payload.Key, strings.TrimSpace(payload.Value)); err != nil {
			return nil, err
		}
	case settings.KeyMaxOutputTokens:
		bound, err := strconv.Atoi(strings.TrimSpace(payload.Value))
		if err != nil || bound <= 0 {
			return nil, fmt.Errorf("setting %s must be a positive integer", payload.Key)
		}
		if err := s.settings.SetInt(ctx, payload.Key, bound); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown setting %q", payload.Key)
	}

	return json.Marshal(map[string]bool{"saved": true})
}

func (s *Service) handleListTemplates(ctx context.Context) (json.RawMessage, error) {
	merged, err := s.templates.List(ctx)
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]any{"templates": merged})
}
