// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists chat transcripts between sessions.
package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alexandra767/localllm/internal/util"
	"github.com/alexandra767/localllm/model"
)

// ErrTranscriptNotFound is returned when no transcript has the given ID.
var ErrTranscriptNotFound = errors.New("transcript not found")

// =============================================================================
// TRANSCRIPT TYPES
// =============================================================================

// Transcript is one saved conversation: the model it ran against and
// the messages exchanged, in order.
type Transcript struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Model     string          `json:"model"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Messages  []model.Message `json:"messages"`
}

// Meta is the listing view of a transcript, cheap enough to render
// without loading the full message history.
type Meta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// =============================================================================
// TRANSCRIPT STORE
// =============================================================================

// Store keeps transcripts as JSON files under a single directory, one
// file per conversation. Writes are atomic so a crash mid-save never
// corrupts an existing transcript.
type Store struct {
	dir string

	// MaxTranscripts bounds how many conversations are kept; the
	// oldest are dropped past the limit. Zero means unlimited.
	MaxTranscripts int
}

// Open creates the directory if needed and returns a store over it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &Store{dir: dir, MaxTranscripts: 100}, nil
}

// Dir returns the directory transcripts are stored in.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save persists the transcript and returns its ID, assigning one on
// first save. The title defaults to the first user message.
func (s *Store) Save(tr *Transcript) (string, error) {
	if tr.ID == "" {
		tr.ID = uuid.NewString()
	}
	if tr.Title == "" {
		tr.Title = titleFor(tr)
	}
	tr.UpdatedAt = time.Now()
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = tr.UpdatedAt
	}

	data, err := json.MarshalIndent(tr, "", "  ")
	if err != nil {
		return "", err
	}
	if err := util.AtomicWriteFile(s.path(tr.ID), data, 0o600); err != nil {
		return "", err
	}

	if s.MaxTranscripts > 0 {
		s.enforceLimit()
	}
	return tr.ID, nil
}

// Load retrieves a transcript by ID.
func (s *Store) Load(id string) (*Transcript, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTranscriptNotFound
		}
		return nil, err
	}
	var tr Transcript
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// Delete removes a transcript. Deleting an unknown ID is not an error.
func (s *Store) Delete(id string) error {
	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// List returns metadata for every saved transcript, most recent first.
// Unreadable files are skipped.
func (s *Store) List() ([]Meta, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Meta{}, nil
		}
		return nil, err
	}

	var metas []Meta
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		tr, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		metas = append(metas, Meta{
			ID:           tr.ID,
			Title:        tr.Title,
			Model:        tr.Model,
			UpdatedAt:    tr.UpdatedAt,
			MessageCount: len(tr.Messages),
		})
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// Search returns transcripts whose title matches the query,
// case-insensitively, most recent first.
func (s *Store) Search(query string) ([]Meta, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(query)
	var results []Meta
	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Title), query) {
			results = append(results, meta)
		}
	}
	return results, nil
}

// enforceLimit drops the oldest transcripts past MaxTranscripts.
func (s *Store) enforceLimit() {
	metas, err := s.List()
	if err != nil || len(metas) <= s.MaxTranscripts {
		return
	}
	for _, meta := range metas[s.MaxTranscripts:] {
		_ = s.Delete(meta.ID)
	}
}

// titleFor derives a one-line title from the first user message.
func titleFor(tr *Transcript) string {
	for _, msg := range tr.Messages {
		if msg.FromUser && msg.Content != "" {
			line := strings.ReplaceAll(msg.Content, "\n", " ")
			line = strings.ReplaceAll(line, "\r", "")
			return util.TruncateRunes(line, 50)
		}
	}
	return "New conversation"
}
