// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for model descriptors and
// chat messages.
//
// This package defines the core domain types shared by the client and any
// front end: the registry of generation targets and the messages a
// conversation is made of.
//
// # Key Types
//
//   - Descriptor: a generation target and whether it needs a remote credential
//   - Registry: ordered enumeration of known descriptors
//   - Message: single chat message with identity, content, and delivery status
//   - Status: delivery state (pending, delivered, failed)
//
// # Usage
//
// Look up a model and build a history snapshot:
//
//	reg := model.DefaultRegistry("/var/lib/localllm/models")
//	desc, ok := reg.Lookup("llama3")
//	history := model.Snapshot(conversation)
package model
