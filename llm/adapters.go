// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"

	"github.com/alexandra767/localllm/model"
)

// =============================================================================
// DELIVERY ADAPTERS
// =============================================================================
//
// Both adapters are thin wrappers over Generate: same dispatch, same
// payloads, same errors. They differ only in how the single outcome is
// handed back.

// Result is the outcome of one generation: the full response text, or
// the error that prevented it.
type Result struct {
	Text string
	Err  error
}

// GenerateWithCallback resolves modelName against the registry, falling
// back to the configured default model when the name is unknown, and
// invokes cb exactly once with the outcome. cb runs on a separate
// goroutine.
func (c *Client) GenerateWithCallback(ctx context.Context, message, modelName string, history []model.Message, cb func(Result)) {
	desc, ok := c.registry.Lookup(modelName)
	if !ok {
		desc, ok = c.registry.Lookup(c.settings.DefaultModel())
	}
	if !ok {
		go cb(Result{Err: errf(KindInvalidModel, "unknown model %q and no usable default", modelName)})
		return
	}
	hist := model.Snapshot(history)
	go func() {
		text, err := c.Generate(ctx, message, desc, "", hist)
		cb(Result{Text: text, Err: err})
	}()
}

// GenerateAsync starts a generation and returns a channel that delivers
// exactly one Result and is then closed. The history is snapshotted at
// call time, so the caller may keep appending to its own slice while the
// request is in flight.
func (c *Client) GenerateAsync(ctx context.Context, message string, history []model.Message, systemPrompt string, desc model.Descriptor) <-chan Result {
	hist := model.Snapshot(history)
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		text, err := c.Generate(ctx, message, desc, systemPrompt, hist)
		out <- Result{Text: text, Err: err}
	}()
	return out
}
