// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides the key/value settings store the client reads
// its configuration through.
//
// The client never touches ambient preference storage directly; it is
// handed a Store, so tests can substitute a MemStore and applications can
// pick a durable backend.
//
// # Key Types
//
//   - Store: get/set/keys abstraction over persisted settings
//   - MemStore: map-backed store for tests and defaults
//   - FileStore: TOML file store with atomic 0600 writes and hot reload
//   - SQLiteStore: database-backed store that survives process restarts
//   - Settings: typed read-through view with defaults and range validation
//
// # Usage
//
//	store, err := config.OpenSQLiteStore(path)
//	if err != nil {
//	    return err
//	}
//	settings := config.NewSettings(store)
//	settings.SetTemperature(0.4)
package config
