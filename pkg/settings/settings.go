package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"pagelens/pkg/store"
)

// Persisted key names. These spellings are load-bearing: stored data
// written by one release must stay readable by the next.
const (
	KeyAPIKey          = "apiKey"
	KeySelectedModel   = "selectedModel"
	KeyMaxOutputTokens = "maxOutputTokens"
	KeyPromptTemplates = "promptTemplates"
)

// ErrCredentialMissing reports that no API credential has been configured.
var ErrCredentialMissing = errors.New("credential missing")

// Credentials stores and retrieves the opaque API secret. The secret is
// never written to logs in full.
type Credentials struct {
	store store.Store
	log   *slog.Logger
}

// NewCredentials wraps the persistent store.
func NewCredentials(st store.Store, log *slog.Logger) *Credentials {
	if log == nil {
		log = slog.Default()
	}

	return &Credentials{
		store: st,
		log:   log.With("component", "settings.credentials"),
	}
}

// APIKey returns the stored credential, or ErrCredentialMissing when none
// has been configured. Absence is distinct from an empty string.
func (c *Credentials) APIKey(ctx context.Context) (string, error) {
	value, err := c.store.Get(ctx, KeyAPIKey)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrCredentialMissing
	}
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}

	return value, nil
}

// SetAPIKey persists the credential. Blank values are rejected so absence
// stays a distinct, detectable state.
func (c *Credentials) SetAPIKey(ctx context.Context, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("credential must not be empty")
	}

	if err := c.store.Set(ctx, KeyAPIKey, value); err != nil {
		return fmt.Errorf("write credential: %w", err)
	}
	c.log.Info("Credential saved", "length", len(value))

	return nil
}

// EnvCredential resolves an API secret from an environment variable
// instead of the persistent store. Used by backends whose keys live in the
// process environment.
type EnvCredential string

// APIKey reads the variable, treating unset and blank as missing.
func (e EnvCredential) APIKey(context.Context) (string, error) {
	value := strings.TrimSpace(os.Getenv(string(e)))
	if value == "" {
		return "", ErrCredentialMissing
	}

	return value, nil
}

// Settings reads and writes small persisted scalars with built-in
// defaults. Absence is never an error.
type Settings struct {
	store store.Store
}

// NewSettings wraps the persistent store.
func NewSettings(st store.Store) *Settings {
	return &Settings{store: st}
}

// GetString returns the stored value for key, or def when unset.
func (s *Settings) GetString(ctx context.Context, key, def string) (string, error) {
	value, err := s.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}

	return value, nil
}

// GetInt returns the stored integer for key, or def when unset.
func (s *Settings) GetInt(ctx context.Context, key string, def int) (int, error) {
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read setting %s: %w", key, err)
	}

	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("setting %s is not an integer: %w", key, err)
	}

	return value, nil
}

// SetString persists value under key.
func (s *Settings) SetString(ctx context.Context, key, value string) error {
	if err := s.store.Set(ctx, key, value); err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}

	return nil
}

// SetInt persists an integer value under key.
func (s *Settings) SetInt(ctx context.Context, key string, value int) error {
	return s.SetString(ctx, key, strconv.Itoa(value))
}

// OutputTokenBound reads the persisted output-length bound. ok is false
// when the bound is unset; err reports only genuine store outages.
func (s *Settings) OutputTokenBound(ctx context.Context) (int, bool, error) {
	raw, err := s.store.Get(ctx, KeyMaxOutputTokens)
	if errors.Is(err, store.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read setting %s: %w", KeyMaxOutputTokens, err)
	}

	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false, fmt.Errorf("setting %s is not an integer: %w", KeyMaxOutputTokens, err)
	}

	return value, true, nil
}
