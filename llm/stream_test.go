// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandra767/localllm/model"
)

// collect drains a chunk channel into text pieces and the terminal chunk.
func collect(t *testing.T, ch <-chan Chunk) ([]string, Chunk) {
	t.Helper()
	var texts []string
	var last Chunk
	sawDone := false
	for chunk := range ch {
		require.False(t, sawDone, "no chunk may follow the terminal chunk")
		if chunk.Done {
			sawDone = true
			last = chunk
			continue
		}
		require.NoError(t, chunk.Err, "non-terminal chunks carry no error")
		texts = append(texts, chunk.Text)
	}
	require.True(t, sawDone, "stream must end with a terminal chunk")
	return texts, last
}

func TestStreamChunksRemote(t *testing.T) {
	var gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	settings := newTestSettings(t, srv.URL, "sk-test")
	client := New(settings, model.NewRegistry(remoteModel))

	texts, last := collect(t, client.StreamChunks(context.Background(), "hi", remoteModel, "", 0.5))
	require.NoError(t, last.Err)
	assert.Equal(t, []string{"Hel", "lo"}, texts)
	assert.Equal(t, "text/event-stream", gotAccept)
}

func TestStreamChunksRemoteFinishReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"all\"},\"finish_reason\":\"stop\"}]}\n\n")
		// Anything after the finish reason must be ignored.
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"extra\"}}]}\n\n")
	}))
	defer srv.Close()

	settings := newTestSettings(t, srv.URL, "sk-test")
	client := New(settings, model.NewRegistry(remoteModel))

	texts, last := collect(t, client.StreamChunks(context.Background(), "hi", remoteModel, "", 0.5))
	require.NoError(t, last.Err)
	assert.Equal(t, []string{"all"}, texts)
}

func TestStreamChunksLocal(t *testing.T) {
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &gotBody))
		io.WriteString(w, `{"response":"Hel","done":false}`+"\n")
		io.WriteString(w, `{"response":"lo","done":false}`+"\n")
		io.WriteString(w, `{"response":"","done":true}`+"\n")
	}))
	defer srv.Close()

	settings := newTestSettings(t, srv.URL, "")
	client := New(settings, model.NewRegistry(localModel))

	texts, last := collect(t, client.StreamChunks(context.Background(), "hi", localModel, "sys", 0.3))
	require.NoError(t, last.Err)
	assert.Equal(t, []string{"Hel", "lo"}, texts)
	assert.True(t, gotBody.Stream)
	assert.Equal(t, 0.3, gotBody.Options.Temperature, "per-call temperature overrides settings")
	assert.Equal(t, "sys", gotBody.System)
}

func TestStreamConversationRemoteCarriesHistory(t *testing.T) {
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &gotBody))
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	settings := newTestSettings(t, srv.URL, "sk-test")
	client := New(settings, model.NewRegistry(remoteModel))

	history := []model.Message{
		{Content: "first question", FromUser: true},
		{Content: "first answer", FromUser: false},
	}
	texts, last := collect(t, client.StreamConversation(context.Background(), "second question", remoteModel, "", history, 0.5))
	require.NoError(t, last.Err)
	assert.Equal(t, []string{"ok"}, texts)

	// History rides in the native message array, not the content field.
	want := []chatMessage{
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "first answer"},
		{Role: "user", Content: "second question"},
	}
	assert.Equal(t, want, gotBody.Messages)
	assert.True(t, gotBody.Stream)
}

func TestStreamConversationLocalFlattensHistory(t *testing.T) {
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &gotBody))
		io.WriteString(w, `{"response":"ok","done":true}`+"\n")
	}))
	defer srv.Close()

	settings := newTestSettings(t, srv.URL, "")
	client := New(settings, model.NewRegistry(localModel))

	history := []model.Message{
		{Content: "hi", FromUser: true},
		{Content: "hello", FromUser: false},
	}
	_, last := collect(t, client.StreamConversation(context.Background(), "how are you", localModel, "", history, 0.5))
	require.NoError(t, last.Err)

	want := "User: hi\nAssistant: hello\nUser: how are you"
	assert.Equal(t, want, gotBody.Prompt)
}

func TestFlattenTranscript(t *testing.T) {
	assert.Equal(t, "just the message", flattenTranscript("just the message", nil))

	history := []model.Message{
		{Content: "a", FromUser: true},
		{Content: "b", FromUser: false},
	}
	assert.Equal(t, "User: a\nAssistant: b\nUser: c", flattenTranscript("c", history))
}

func TestStreamChunksPreconditionFailure(t *testing.T) {
	settings := newTestSettings(t, "", "")
	client := New(settings, model.NewRegistry(remoteModel, localModel))

	texts, last := collect(t, client.StreamChunks(context.Background(), "hi", remoteModel, "", 0.5))
	assert.Empty(t, texts, "a failed stream yields no text chunks")
	require.Error(t, last.Err)
	assert.True(t, IsKind(last.Err, KindInvalidCredential), "got %v", last.Err)

	texts, last = collect(t, client.StreamChunks(context.Background(), "hi", localModel, "", 0.5))
	assert.Empty(t, texts)
	require.Error(t, last.Err)
	assert.True(t, IsKind(last.Err, KindInvalidURL), "got %v", last.Err)
}

func TestStreamChunksServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error":{"message":"overloaded"}}`)
	}))
	defer srv.Close()

	settings := newTestSettings(t, srv.URL, "sk-test")
	client := New(settings, model.NewRegistry(remoteModel))

	texts, last := collect(t, client.StreamChunks(context.Background(), "hi", remoteModel, "", 0.5))
	assert.Empty(t, texts)
	require.Error(t, last.Err)
	assert.True(t, IsKind(last.Err, KindRequestFailed), "got %v", last.Err)
	assert.Equal(t, http.StatusServiceUnavailable, StatusOf(last.Err))
	assert.Contains(t, last.Err.Error(), "overloaded")
}

func TestStreamChunksSkipsMalformedEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: not json\n\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	settings := newTestSettings(t, srv.URL, "sk-test")
	client := New(settings, model.NewRegistry(remoteModel))

	texts, last := collect(t, client.StreamChunks(context.Background(), "hi", remoteModel, "", 0.5))
	require.NoError(t, last.Err)
	assert.Equal(t, []string{"ok"}, texts)
}

func TestStreamChunksCancellation(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	settings := newTestSettings(t, srv.URL, "sk-test")
	client := New(settings, model.NewRegistry(remoteModel))

	ch := client.StreamChunks(context.Background(), "hi", remoteModel, "", 0.5)
	<-started
	client.CancelAll()

	var sawErr error
	for chunk := range ch {
		if chunk.Err != nil {
			sawErr = chunk.Err
		}
	}
	require.Error(t, sawErr)
	assert.True(t, IsCancelled(sawErr), "got %v", sawErr)
}

func TestSSEReader(t *testing.T) {
	input := strings.Join([]string{
		": comment to ignore",
		"event: message",
		"data: first",
		"",
		"data: second-a",
		"data: second-b",
		"",
		"data: tail",
	}, "\n")

	r := newSSEReader(strings.NewReader(input))

	data, err := r.readEvent()
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	data, err = r.readEvent()
	require.NoError(t, err)
	assert.Equal(t, "second-a\nsecond-b", string(data))

	// Trailing data without a blank line still flushes at EOF.
	data, err = r.readEvent()
	require.NoError(t, err)
	assert.Equal(t, "tail", string(data))

	_, err = r.readEvent()
	assert.Equal(t, io.EOF, err)
}
