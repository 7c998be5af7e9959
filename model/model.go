// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"os"
	"path/filepath"
)

// =============================================================================
// MODEL DESCRIPTOR
// =============================================================================

// Descriptor identifies a generation target.
//
// A descriptor with RequiresCredential set is served by the hosted
// chat-completions API; everything else is served by the local generation
// API, with LocalPath used only to probe whether the model weights are
// present on disk. Descriptors are immutable value data.
type Descriptor struct {
	// ID is the model identifier used in API calls.
	ID string `json:"id"`

	// Name is the human-readable display name.
	Name string `json:"name"`

	// RequiresCredential selects the remote code path when true.
	RequiresCredential bool `json:"requires_credential"`

	// LocalPath is the backing weights file for credential-free models.
	// Only its existence is ever checked.
	LocalPath string `json:"local_path,omitempty"`
}

// IsLocal reports whether the descriptor targets the local generation API.
func (d Descriptor) IsLocal() bool {
	return !d.RequiresCredential
}

// PathExists reports whether the descriptor's backing file is present.
// Always false for remote descriptors, which have no backing file.
func (d Descriptor) PathExists() bool {
	if d.LocalPath == "" {
		return false
	}
	_, err := os.Stat(d.LocalPath)
	return err == nil
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry enumerates the known model descriptors in registration order.
type Registry struct {
	order []Descriptor
	byID  map[string]int
}

// NewRegistry creates a registry holding the given descriptors.
func NewRegistry(descriptors ...Descriptor) *Registry {
	r := &Registry{byID: make(map[string]int, len(descriptors))}
	for _, d := range descriptors {
		r.Register(d)
	}
	return r
}

// Register adds a descriptor. Re-registering an ID replaces the earlier
// entry in place, keeping its position.
func (r *Registry) Register(d Descriptor) {
	if i, ok := r.byID[d.ID]; ok {
		r.order[i] = d
		return
	}
	r.byID[d.ID] = len(r.order)
	r.order = append(r.order, d)
}

// Lookup returns the descriptor with the given ID.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return r.order[i], true
}

// All returns the descriptors in registration order. The slice is a copy.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered descriptors.
func (r *Registry) Len() int {
	return len(r.order)
}

// DefaultRegistry returns the built-in model set. Local descriptors point
// at weights files under modelsDir.
func DefaultRegistry(modelsDir string) *Registry {
	return NewRegistry(
		Descriptor{
			ID:                 "gpt-4",
			Name:               "GPT-4",
			RequiresCredential: true,
		},
		Descriptor{
			ID:                 "gpt-3.5-turbo",
			Name:               "GPT-3.5 Turbo",
			RequiresCredential: true,
		},
		Descriptor{
			ID:        "llama3",
			Name:      "Llama 3 8B",
			LocalPath: filepath.Join(modelsDir, "llama-3-8b.gguf"),
		},
		Descriptor{
			ID:        "mistral",
			Name:      "Mistral 7B",
			LocalPath: filepath.Join(modelsDir, "mistral-7b.gguf"),
		},
		Descriptor{
			ID:        "phi3",
			Name:      "Phi-3 Mini",
			LocalPath: filepath.Join(modelsDir, "phi-3-mini.gguf"),
		},
	)
}
