// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Setting keys as stored in a Store.
const (
	KeyBaseURL      = "base_url"
	KeyAPIKey       = "api_key"
	KeyDefaultModel = "default_model"
	KeyMaxTokens    = "max_tokens"
	KeyTemperature  = "temperature"
	KeyTopP         = "top_p"
	KeyPenalty      = "penalty"
)

// Defaults applied when a key is absent from the store.
const (
	DefaultModel       = "llama3"
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
	DefaultPenalty     = 0.0
)

// Settings is a typed read-through view over a Store. Reads fall back to
// in-memory defaults when a key is absent or unparseable; writes validate
// ranges before touching the store. No transactional guarantee is given
// across a read-modify cycle.
type Settings struct {
	store Store
}

// NewSettings wraps a store. A nil store gets a fresh MemStore.
func NewSettings(store Store) *Settings {
	if store == nil {
		store = NewMemStore()
	}
	return &Settings{store: store}
}

// Store returns the underlying store.
func (s *Settings) Store() Store {
	return s.store
}

func (s *Settings) str(key, def string) string {
	v, ok, err := s.store.Get(key)
	if err != nil || !ok {
		return def
	}
	return v
}

func (s *Settings) float(key string, def float64) float64 {
	v, ok, err := s.store.Get(key)
	if err != nil || !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// =============================================================================
// GETTERS
// =============================================================================

// BaseURL returns the configured API endpoint, without trailing slash.
// Empty when unconfigured; the client treats that as a precondition
// failure, so there is deliberately no default.
func (s *Settings) BaseURL() string {
	return strings.TrimSuffix(strings.TrimSpace(s.str(KeyBaseURL, "")), "/")
}

// APIKey returns the remote credential, trimmed. Empty when unconfigured.
func (s *Settings) APIKey() string {
	return strings.TrimSpace(s.str(KeyAPIKey, ""))
}

// DefaultModel returns the fallback model ID.
func (s *Settings) DefaultModel() string {
	return s.str(KeyDefaultModel, DefaultModel)
}

// MaxTokens returns the maximum output length.
func (s *Settings) MaxTokens() int {
	v, ok, err := s.store.Get(KeyMaxTokens)
	if err != nil || !ok {
		return DefaultMaxTokens
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return DefaultMaxTokens
	}
	return n
}

// Temperature returns the sampling temperature in [0,1].
func (s *Settings) Temperature() float64 {
	return s.float(KeyTemperature, DefaultTemperature)
}

// TopP returns the nucleus-sampling threshold in [0,1].
func (s *Settings) TopP() float64 {
	return s.float(KeyTopP, DefaultTopP)
}

// Penalty returns the repetition penalty in [-2,2]. The one value is sent
// as both frequency_penalty and presence_penalty on the wire.
func (s *Settings) Penalty() float64 {
	return s.float(KeyPenalty, DefaultPenalty)
}

// =============================================================================
// SETTERS
// =============================================================================

// SetBaseURL stores the API endpoint.
func (s *Settings) SetBaseURL(url string) error {
	return s.store.Set(KeyBaseURL, strings.TrimSpace(url))
}

// SetAPIKey stores the remote credential.
func (s *Settings) SetAPIKey(key string) error {
	return s.store.Set(KeyAPIKey, strings.TrimSpace(key))
}

// SetDefaultModel stores the fallback model ID.
func (s *Settings) SetDefaultModel(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("default model must not be empty")
	}
	return s.store.Set(KeyDefaultModel, id)
}

// SetMaxTokens stores the maximum output length.
func (s *Settings) SetMaxTokens(n int) error {
	if n <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", n)
	}
	return s.store.Set(KeyMaxTokens, strconv.Itoa(n))
}

// SetTemperature stores the sampling temperature.
func (s *Settings) SetTemperature(f float64) error {
	if f < 0 || f > 1 {
		return fmt.Errorf("temperature must be in [0,1], got %g", f)
	}
	return s.store.Set(KeyTemperature, strconv.FormatFloat(f, 'f', -1, 64))
}

// SetTopP stores the nucleus-sampling threshold.
func (s *Settings) SetTopP(f float64) error {
	if f < 0 || f > 1 {
		return fmt.Errorf("top_p must be in [0,1], got %g", f)
	}
	return s.store.Set(KeyTopP, strconv.FormatFloat(f, 'f', -1, 64))
}

// SetPenalty stores the repetition penalty.
func (s *Settings) SetPenalty(f float64) error {
	if f < -2 || f > 2 {
		return fmt.Errorf("penalty must be in [-2,2], got %g", f)
	}
	return s.store.Set(KeyPenalty, strconv.FormatFloat(f, 'f', -1, 64))
}

// SetKey stores an arbitrary key after routing it through the typed setter
// when one exists, so range validation still applies. Used by the CLI.
func (s *Settings) SetKey(key, value string) error {
	switch key {
	case KeyBaseURL:
		return s.SetBaseURL(value)
	case KeyAPIKey:
		return s.SetAPIKey(value)
	case KeyDefaultModel:
		return s.SetDefaultModel(value)
	case KeyMaxTokens:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer for %s: %q", key, value)
		}
		return s.SetMaxTokens(n)
	case KeyTemperature, KeyTopP, KeyPenalty:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number for %s: %q", key, value)
		}
		switch key {
		case KeyTemperature:
			return s.SetTemperature(f)
		case KeyTopP:
			return s.SetTopP(f)
		default:
			return s.SetPenalty(f)
		}
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
}

// AllKeys returns every recognized setting key.
func AllKeys() []string {
	return []string{
		KeyBaseURL,
		KeyAPIKey,
		KeyDefaultModel,
		KeyMaxTokens,
		KeyTemperature,
		KeyTopP,
		KeyPenalty,
	}
}
