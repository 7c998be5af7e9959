// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/alexandra767/localllm/model"
)

// =============================================================================
// STREAMING
// =============================================================================

// maxChunkSize bounds a single streamed event (64KB).
const maxChunkSize = 64 * 1024

// Chunk is one piece of an incremental response. Text chunks arrive in
// order; the final chunk has Done set, and carries Err when the stream
// ended in failure. No chunks follow a Done chunk.
type Chunk struct {
	Text string
	Err  error
	Done bool
}

// StreamChunks starts an incremental generation and returns a channel
// of chunks. Remote models stream server-sent events from the chat
// endpoint; local models stream newline-delimited JSON from the
// generate endpoint. The channel always ends with exactly one Done
// chunk and is then closed; a request that fails before producing any
// text yields only that terminal chunk. The temperature argument
// overrides the configured temperature for this call.
func (c *Client) StreamChunks(ctx context.Context, message string, desc model.Descriptor, systemPrompt string, temperature float64) <-chan Chunk {
	return c.stream(ctx, message, desc, systemPrompt, nil, temperature)
}

// StreamConversation is StreamChunks with prior history included. The
// remote path carries the history natively in the message array; the
// local path folds it into the prompt, since the generate endpoint
// takes a single prompt string. The history is snapshotted at call
// time.
func (c *Client) StreamConversation(ctx context.Context, message string, desc model.Descriptor, systemPrompt string, history []model.Message, temperature float64) <-chan Chunk {
	return c.stream(ctx, message, desc, systemPrompt, model.Snapshot(history), temperature)
}

func (c *Client) stream(ctx context.Context, message string, desc model.Descriptor, systemPrompt string, history []model.Message, temperature float64) <-chan Chunk {
	out := make(chan Chunk, 16)
	go func() {
		defer close(out)
		ctx, release := c.track(ctx)
		defer release()

		if desc.ID == "" {
			out <- Chunk{Err: errf(KindInvalidModel, "no model selected"), Done: true}
			return
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				out <- Chunk{Err: classifyTransport(err), Done: true}
				return
			}
		}
		if desc.RequiresCredential {
			c.streamRemote(ctx, out, message, desc, systemPrompt, history, temperature)
		} else {
			c.streamLocal(ctx, out, flattenTranscript(message, history), desc, systemPrompt, temperature)
		}
	}()
	return out
}

func (c *Client) streamRemote(ctx context.Context, out chan<- Chunk, message string, desc model.Descriptor, systemPrompt string, history []model.Message, temperature float64) {
	base := c.settings.BaseURL()
	key := c.settings.APIKey()
	if base == "" || !ValidateCredential(key) {
		out <- Chunk{Err: errf(KindInvalidCredential, "remote model %q requires a base URL and API key", desc.ID), Done: true}
		return
	}

	req := c.buildChatRequest(message, systemPrompt, history, desc.ID, temperature, true)
	body, err := c.openStream(ctx, base+chatCompletionsPath, key, req, true)
	if err != nil {
		out <- Chunk{Err: err, Done: true}
		return
	}
	defer body.Close()

	reader := newSSEReader(body)
	for {
		select {
		case <-ctx.Done():
			out <- Chunk{Err: classifyTransport(ctx.Err()), Done: true}
			return
		default:
		}

		data, err := reader.readEvent()
		if err != nil {
			if err == io.EOF {
				out <- Chunk{Done: true}
				return
			}
			out <- Chunk{Err: classifyTransport(err), Done: true}
			return
		}
		if bytes.Equal(data, []byte("[DONE]")) {
			out <- Chunk{Done: true}
			return
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			// Skip malformed events rather than aborting mid-stream.
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			out <- Chunk{Text: text}
		}
		if chunk.Choices[0].FinishReason != "" {
			out <- Chunk{Done: true}
			return
		}
	}
}

func (c *Client) streamLocal(ctx context.Context, out chan<- Chunk, prompt string, desc model.Descriptor, systemPrompt string, temperature float64) {
	base := c.settings.BaseURL()
	if base == "" {
		out <- Chunk{Err: errf(KindInvalidURL, "no server URL configured for local model %q", desc.ID), Done: true}
		return
	}

	req := c.buildGenerateRequest(prompt, systemPrompt, desc.ID, temperature, true)
	body, err := c.openStream(ctx, base+generatePath, "", req, false)
	if err != nil {
		out <- Chunk{Err: err, Done: true}
		return
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 4096), maxChunkSize)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			out <- Chunk{Err: classifyTransport(ctx.Err()), Done: true}
			return
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk generateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		if chunk.Response != nil && *chunk.Response != "" {
			out <- Chunk{Text: *chunk.Response}
		}
		if chunk.Done {
			out <- Chunk{Done: true}
			return
		}
	}
	if err := scanner.Err(); err != nil {
		out <- Chunk{Err: classifyTransport(err), Done: true}
		return
	}
	out <- Chunk{Done: true}
}

// openStream issues the streaming POST and returns the response body on
// a 2xx status. The timeout-free streaming client is used; lifetime is
// governed by the context.
func (c *Client) openStream(ctx context.Context, rawURL, bearer string, payload any, remote bool) (io.ReadCloser, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Message: "encoding request body", Cause: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindInvalidURL, Message: "building request for " + rawURL, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Cache-Control", "no-cache")
	if remote {
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.streaming.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		resp.Body.Close()
		return nil, statusError(resp.StatusCode, data, remote)
	}
	return resp.Body, nil
}

// =============================================================================
// SSE READER
// =============================================================================

// sseReader parses server-sent events, yielding the data payload of
// each event. Comment lines and non-data fields are ignored.
type sseReader struct {
	reader *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{reader: bufio.NewReader(r)}
}

// readEvent returns the data of the next event, or io.EOF when the
// stream ends.
func (s *sseReader) readEvent() ([]byte, error) {
	var dataLines [][]byte
	for {
		line, err := s.reader.ReadBytes('\n')
		line = bytes.TrimRight(line, "\r\n")
		if bytes.HasPrefix(line, []byte("data:")) {
			dataLines = append(dataLines, bytes.TrimSpace(line[5:]))
		}
		if err != nil {
			// Flush any pending data at EOF, including a final
			// line without a newline.
			if err == io.EOF && len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			return nil, err
		}
		// Blank line terminates the event.
		if len(line) == 0 && len(dataLines) > 0 {
			return bytes.Join(dataLines, []byte("\n")), nil
		}
	}
}
