// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"strings"

	"github.com/alexandra767/localllm/model"
)

// =============================================================================
// REMOTE WIRE TYPES (chat completions)
// =============================================================================

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	MaxTokens        int           `json:"max_tokens"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
	Stream           bool          `json:"stream"`
}

// Pointer fields distinguish "absent" from "empty" so a structurally
// malformed body decodes without error but is still rejected.
type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type apiError struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// buildChatMessages assembles the message array: the system prompt first
// (only when non-empty), then the history in order, then the current
// user message.
func buildChatMessages(message, systemPrompt string, history []model.Message) []chatMessage {
	msgs := make([]chatMessage, 0, len(history)+2)
	if systemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	}
	for _, m := range history {
		role := "assistant"
		if m.FromUser {
			role = "user"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: m.Content})
	}
	return append(msgs, chatMessage{Role: "user", Content: message})
}

func (c *Client) buildChatRequest(message, systemPrompt string, history []model.Message, modelID string, temperature float64, stream bool) chatRequest {
	penalty := c.settings.Penalty()
	return chatRequest{
		Model:            modelID,
		Messages:         buildChatMessages(message, systemPrompt, history),
		Temperature:      temperature,
		MaxTokens:        c.settings.MaxTokens(),
		TopP:             c.settings.TopP(),
		FrequencyPenalty: penalty,
		PresencePenalty:  penalty,
		Stream:           stream,
	}
}

// =============================================================================
// LOCAL WIRE TYPES (generate)
// =============================================================================

const localRepeatPenalty = 1.1

// Stop sequences keep small local models from running past the turn
// boundary and impersonating the user.
var localStopSequences = []string{"\n###", "\n\nUser:", "\n\n###"}

type generateOptions struct {
	Temperature   float64  `json:"temperature"`
	TopP          float64  `json:"top_p"`
	NumPredict    int      `json:"num_predict"`
	RepeatPenalty float64  `json:"repeat_penalty"`
	Stop          []string `json:"stop"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response *string `json:"response"`
	Done     bool    `json:"done"`
}

// flattenTranscript folds prior history into one prompt string for the
// generate endpoint, which has no message array. Turn labels match the
// stop sequences so the model stops at the next turn boundary.
func flattenTranscript(message string, history []model.Message) string {
	if len(history) == 0 {
		return message
	}
	var b strings.Builder
	for _, m := range history {
		if m.FromUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	b.WriteString("User: ")
	b.WriteString(message)
	return b.String()
}

func (c *Client) buildGenerateRequest(message, systemPrompt, modelID string, temperature float64, stream bool) generateRequest {
	return generateRequest{
		Model:  modelID,
		Prompt: message,
		System: systemPrompt,
		Stream: stream,
		Options: generateOptions{
			Temperature:   temperature,
			TopP:          c.settings.TopP(),
			NumPredict:    c.settings.MaxTokens(),
			RepeatPenalty: localRepeatPenalty,
			Stop:          localStopSequences,
		},
	}
}
