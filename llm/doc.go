// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm implements the client for local and remote language-model
// backends.
//
// A single Client serves both kinds of model. Descriptors that require a
// credential are sent to a chat-completions endpoint with bearer auth;
// the rest go to an Ollama-style generate endpoint on the same base URL.
// All failures are reported as *Error with a Kind from a closed set, so
// callers can decide between retrying, fixing settings, and switching
// models without string matching.
//
// # Key Types
//
//   - Client: dispatching HTTP client, configured through injected settings
//   - Error / Kind: the failure taxonomy for every operation
//   - Result: outcome delivered by the callback and channel adapters
//   - Chunk: one piece of an incremental streaming response
//
// # Usage
//
// Build a client and stream a response:
//
//	client := llm.New(settings, registry)
//	desc, _ := registry.Lookup("llama3")
//	for chunk := range client.StreamChunks(ctx, "hello", desc, "", 0.7) {
//		if chunk.Err != nil {
//			log.Printf("stream failed: %v", chunk.Err)
//			break
//		}
//		fmt.Print(chunk.Text)
//	}
//
// Generate, GenerateWithCallback, GenerateAsync, and StreamChunks share
// one dispatch path; they differ only in delivery. CancelAll aborts
// everything in flight.
package llm
