// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"

	"github.com/alexandra767/localllm/internal/util"
)

// FileStore is a Store persisted as a flat TOML file. The file is written
// atomically with 0600 permissions since it can hold an API key. Watch
// re-reads the file when something else edits it.
type FileStore struct {
	path string

	mu     sync.RWMutex
	values map[string]string
}

// OpenFileStore loads (or initializes) a TOML settings file at path.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, values: make(map[string]string)}
	if _, err := os.Stat(path); err == nil {
		if err := s.Reload(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Reload replaces the in-memory view with the file's current contents.
func (s *FileStore) Reload() error {
	// Settings files hold credentials; clamp permissions before reading.
	if info, err := os.Stat(s.path); err == nil && info.Mode().Perm() != 0600 {
		if err := os.Chmod(s.path, 0600); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not fix permissions on %s: %v\n", s.path, err)
		}
	}

	values := make(map[string]string)
	if _, err := toml.DecodeFile(s.path, &values); err != nil {
		return fmt.Errorf("decode settings file: %w", err)
	}

	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

// Get implements Store.
func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set implements Store. The whole file is rewritten on every write; the
// settings set is tiny and atomic replacement keeps concurrent readers
// consistent.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.save()
}

// Keys implements Store.
func (s *FileStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// save writes the current values. Caller holds the lock.
func (s *FileStore) save() error {
	var buf bytes.Buffer
	buf.WriteString("# localllm settings file\n")
	buf.WriteString("# Edit with care, or use `llmchat config set`.\n\n")

	if err := toml.NewEncoder(&buf).Encode(s.values); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := util.AtomicWriteFile(s.path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}

// Watch reloads the store whenever the backing file changes and emits on
// the returned channel after each successful reload. The watcher stops
// when ctx is cancelled. The parent directory is watched, not the file,
// because atomic saves replace the inode.
func (s *FileStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch settings directory: %w", err)
	}

	reloads := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		defer close(reloads)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
					continue
				}
				if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
					continue
				}
				if err := s.Reload(); err != nil {
					continue
				}
				select {
				case reloads <- struct{}{}:
				default:
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return reloads, nil
}
