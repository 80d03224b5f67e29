package provider

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// Registry maps a persisted model preference to a concrete Provider.
// Registration happens once at process start; Resolve never fails, falling
// back to the designated default backend for unknown preferences.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	fallback  string
	log       *slog.Logger
}

// NewRegistry creates a registry whose designated default is the first
// registered provider.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}

	return &Registry{
		providers: make(map[string]Provider),
		log:       log.With("component", "provider.registry"),
	}
}

// Register adds a provider under its canonical identifier. The first
// registration becomes the fallback default.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return errors.New("provider must not be nil")
	}

	key := p.Identifier().String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[key]; exists {
		return errors.New("provider already registered: " + key)
	}

	r.providers[key] = p
	if r.fallback == "" {
		r.fallback = key
	}

	return nil
}

// Resolve returns the provider for the stored preference name, or the
// default backend when the preference is empty or unknown.
func (r *Registry) Resolve(preference string) (Provider, error) {
	preference = strings.TrimSpace(preference)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.providers) == 0 {
		return nil, errors.New("no providers registered")
	}

	if p, ok := r.providers[preference]; ok {
		return p, nil
	}

	if preference != "" {
		r.log.Debug("Unknown model preference, using default", "preference", preference, "default", r.fallback)
	}

	return r.providers[r.fallback], nil
}

// Default returns the canonical name of the fallback backend.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// Names lists the registered canonical names, fallback first.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	if r.fallback != "" {
		names = append(names, r.fallback)
	}
	for name := range r.providers {
		if name != r.fallback {
			names = append(names, name)
		}
	}

	return names
}
