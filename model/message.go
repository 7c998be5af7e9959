// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// DELIVERY STATUS
// =============================================================================

// Status is the delivery state of a chat message.
type Status string

const (
	// StatusPending marks a message awaiting a reply or still in flight.
	StatusPending Status = "pending"
	// StatusDelivered marks a message whose request resolved successfully.
	StatusDelivered Status = "delivered"
	// StatusFailed marks a message whose request resolved with an error.
	// Failed messages stay in the transcript as a visible record.
	StatusFailed Status = "failed"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// =============================================================================
// MESSAGE
// =============================================================================

// FailureText replaces a pending placeholder's content when its request
// fails. The underlying error is surfaced separately, never written into
// the transcript.
const FailureText = "Something went wrong. Please try again."

// Message is a single entry in a conversation. Only Content and Status are
// mutable, and only by the client after a request resolves.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	FromUser  bool      `json:"from_user"`
	Status    Status    `json:"status"`
}

// NewUserMessage creates a delivered message authored by the end user.
func NewUserMessage(content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Content:   content,
		CreatedAt: time.Now(),
		FromUser:  true,
		Status:    StatusDelivered,
	}
}

// NewPendingMessage creates an empty assistant-side placeholder that a
// generation request will later resolve.
func NewPendingMessage() *Message {
	return &Message{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Status:    StatusPending,
	}
}

// Deliver resolves the message with the reply text.
func (m *Message) Deliver(text string) {
	m.Content = text
	m.Status = StatusDelivered
}

// Fail resolves the message as failed, rewriting its content with the
// generic failure text.
func (m *Message) Fail() {
	m.Content = FailureText
	m.Status = StatusFailed
}

// =============================================================================
// HISTORY SNAPSHOT
// =============================================================================

// Snapshot deep-copies a history slice, oldest first. In-flight requests
// hold a snapshot so later edits to the live conversation cannot alter a
// payload that has already been submitted.
func Snapshot(history []Message) []Message {
	if history == nil {
		return nil
	}
	out := make([]Message, len(history))
	copy(out, history)
	return out
}
