package prompts

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"pagelens/pkg/settings"
	"pagelens/pkg/store"
)

//go:embed defaults.yaml
var defaultsRaw []byte

// ErrUnknownTemplate reports a template name with neither an override nor
// a default.
var ErrUnknownTemplate = errors.New("unknown prompt template")

// Library resolves prompt templates: user overrides persisted in the store
// shadow a read-only compiled-in default set.
type Library struct {
	store    store.Store
	defaults map[string]string
}

// NewLibrary parses the embedded default set and wraps the store for
// overrides.
func NewLibrary(st store.Store) (*Library, error) {
	defaults := make(map[string]string)
	if err := yaml.Unmarshal(defaultsRaw, &defaults); err != nil {
		return nil, fmt.Errorf("parse default templates: %w", err)
	}

	return &Library{store: st, defaults: defaults}, nil
}

// overrides reads the persisted template map. An absent key means no
// overrides exist yet.
func (l *Library) overrides(ctx context.Context) (map[string]string, error) {
	raw, err := l.store.Get(ctx, settings.KeyPromptTemplates)
	if errors.Is(err, store.ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read template overrides: %w", err)
	}

	parsed := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("decode template overrides: %w", err)
	}

	return parsed, nil
}

// Resolve returns the template text for name, preferring a stored override
// over the default set.
func (l *Library) Resolve(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)

	stored, err := l.overrides(ctx)
	if err != nil {
		return "", err
	}
	if text, ok := stored[name]; ok {
		return text, nil
	}
	if text, ok := l.defaults[name]; ok {
		return text, nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
}

// Save persists one override. Defaults are never modified.
func (l *Library) Save(ctx context.Context, name, text string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("template name is required")
	}

	stored, err := l.overrides(ctx)
	if err != nil {
		return err
	}
	stored[name] = text

	encoded, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode template overrides: %w", err)
	}

	return l.store.Set(ctx, settings.KeyPromptTemplates, string(encoded))
}

// List merges defaults and overrides, overrides winning, sorted by name.
func (l *Library) List(ctx context.Context) (map[string]string, error) {
	stored, err := l.overrides(ctx)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]string, len(l.defaults)+len(stored))
	for name, text := range l.defaults {
		merged[name] = text
	}
	for name, text := range stored {
		merged[name] = text
	}

	return merged, nil
}

// Names returns the sorted merged template names.
func (l *Library) Names(ctx context.Context) ([]string, error) {
	merged, err := l.List(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// Render substitutes the page content into a template's {{.Page}} slot.
func Render(templateText, page string) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateText)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, struct{ Page string }{Page: page}); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}

	return out.String(), nil
}
