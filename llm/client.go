// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/alexandra767/localllm/config"
	"github.com/alexandra767/localllm/model"
)

const (
	// DefaultTimeout bounds a non-streaming generation round trip.
	DefaultTimeout = 60 * time.Second

	// maxResponseSize caps how much of a response body is read, so a
	// misbehaving server cannot exhaust memory.
	maxResponseSize = 10 * 1024 * 1024

	chatCompletionsPath = "/v1/chat/completions"
	generatePath        = "/api/generate"

	defaultUserAgent = "localllm/1.0"
)

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to LLM backends. Remote models go through a
// chat-completions endpoint with bearer auth; local models go through an
// Ollama-style generate endpoint on the same base URL. All configuration
// is read through the injected settings at call time, so changes take
// effect on the next request without rebuilding the client.
type Client struct {
	settings  *config.Settings
	registry  *model.Registry
	http      *http.Client
	streaming *http.Client
	limiter   *rate.Limiter
	userAgent string

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client for non-streaming
// requests. Streaming requests keep a timeout-free client sharing the
// same transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
		c.streaming = &http.Client{Transport: hc.Transport}
	}
}

// WithRateLimit paces outgoing requests. Zero disables pacing.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) {
		if r > 0 {
			c.limiter = rate.NewLimiter(r, burst)
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New builds a Client over the given settings and model registry.
func New(settings *config.Settings, registry *model.Registry, opts ...Option) *Client {
	c := &Client{
		settings:  settings,
		registry:  registry,
		http:      &http.Client{Timeout: DefaultTimeout},
		streaming: &http.Client{},
		userAgent: defaultUserAgent,
		inflight:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry exposes the model registry the client was built with.
func (c *Client) Registry() *model.Registry {
	return c.registry
}

// Settings exposes the settings the client reads at request time.
func (c *Client) Settings() *config.Settings {
	return c.settings
}

// =============================================================================
// IN-FLIGHT TRACKING
// =============================================================================

// track derives a cancellable context and registers its cancel func so
// CancelAll can reach it. The returned release must be called when the
// request finishes.
func (c *Client) track(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	c.mu.Lock()
	c.inflight[id] = cancel
	c.mu.Unlock()
	return ctx, func() {
		c.mu.Lock()
		delete(c.inflight, id)
		c.mu.Unlock()
		cancel()
	}
}

// CancelAll aborts every in-flight request. Each aborted operation
// reports a cancellation-classified failure to its caller.
func (c *Client) CancelAll() {
	c.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(c.inflight))
	for id, cancel := range c.inflight {
		cancels = append(cancels, cancel)
		delete(c.inflight, id)
	}
	c.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// InFlight returns the number of requests currently being tracked.
func (c *Client) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// =============================================================================
// GENERATE
// =============================================================================

// Generate produces a complete response for message against the given
// model, with systemPrompt and history providing conversation context.
// The model's RequiresCredential flag selects the remote or local path.
func (c *Client) Generate(ctx context.Context, message string, desc model.Descriptor, systemPrompt string, history []model.Message) (string, error) {
	if desc.ID == "" {
		return "", errf(KindInvalidModel, "no model selected")
	}
	ctx, release := c.track(ctx)
	defer release()
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", classifyTransport(err)
		}
	}
	if desc.RequiresCredential {
		return c.generateRemote(ctx, message, desc, systemPrompt, history)
	}
	return c.generateLocal(ctx, message, desc, systemPrompt)
}

func (c *Client) generateRemote(ctx context.Context, message string, desc model.Descriptor, systemPrompt string, history []model.Message) (string, error) {
	base := c.settings.BaseURL()
	key := c.settings.APIKey()
	if base == "" || !ValidateCredential(key) {
		return "", errf(KindInvalidCredential, "remote model %q requires a base URL and API key", desc.ID)
	}

	req := c.buildChatRequest(message, systemPrompt, history, desc.ID, c.settings.Temperature(), false)
	data, err := c.post(ctx, base+chatCompletionsPath, key, req, true)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errf(KindNoDataReceived, "empty response from %s", chatCompletionsPath)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &Error{Kind: KindDecodingError, Message: "malformed chat response", Cause: err}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message == nil || parsed.Choices[0].Message.Content == nil {
		return "", errf(KindDecodingError, "chat response missing message content")
	}
	return *parsed.Choices[0].Message.Content, nil
}

func (c *Client) generateLocal(ctx context.Context, message string, desc model.Descriptor, systemPrompt string) (string, error) {
	base := c.settings.BaseURL()
	if base == "" {
		return "", errf(KindInvalidURL, "no server URL configured for local model %q", desc.ID)
	}

	req := c.buildGenerateRequest(message, systemPrompt, desc.ID, c.settings.Temperature(), false)
	data, err := c.post(ctx, base+generatePath, "", req, false)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errf(KindNoDataReceived, "empty response from %s", generatePath)
	}

	var parsed generateResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &Error{Kind: KindDecodingError, Message: "malformed generate response", Cause: err}
	}
	if parsed.Response == nil {
		return "", errf(KindDecodingError, "generate response missing response field")
	}
	return *parsed.Response, nil
}

// =============================================================================
// HTTP PLUMBING
// =============================================================================

// post sends a JSON POST and returns the body of a 2xx response. Any
// other status is turned into a requestFailed error carrying the status
// code; remote is true when the provider may embed an error message in
// the body.
func (c *Client) post(ctx context.Context, rawURL, bearer string, payload any, remote bool) ([]byte, error) {
	resp, err := c.send(ctx, c.http, rawURL, bearer, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, classifyTransport(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, data, remote)
	}
	return data, nil
}

// send builds and issues the request, classifying transport failures.
func (c *Client) send(ctx context.Context, hc *http.Client, rawURL, bearer string, payload any) (*http.Response, error) {
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
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		log.Printf("llm: POST %s failed after %s: %v", req.URL.Path, time.Since(start).Round(time.Millisecond), err)
		return nil, classifyTransport(err)
	}
	log.Printf("llm: POST %s -> %d (%s)", req.URL.Path, resp.StatusCode, time.Since(start).Round(time.Millisecond))
	return resp, nil
}

// statusError maps a non-2xx response to a requestFailed error. For the
// remote path the provider's own error message is surfaced when present.
func statusError(status int, body []byte, remote bool) *Error {
	msg := fmt.Sprintf("server returned status %d", status)
	if remote {
		var parsed apiError
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
	}
	return &Error{Kind: KindRequestFailed, Message: msg, StatusCode: status}
}

// classifyTransport maps a transport-level failure onto the error
// taxonomy. Cancellation has no kind of its own; it surfaces as a
// requestFailed wrapping context.Canceled so IsCancelled still works.
func classifyTransport(err error) *Error {
	switch {
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindRequestFailed, Message: "request cancelled", Cause: context.Canceled}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Message: "request timed out", Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: "request timed out", Cause: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{Kind: KindNetworkUnavailable, Message: "cannot resolve host", Cause: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &Error{Kind: KindNetworkUnavailable, Message: "cannot reach server", Cause: err}
	}
	return &Error{Kind: KindRequestFailed, Message: "request failed", Cause: err}
}

// =============================================================================
// AVAILABILITY AND CREDENTIALS
// =============================================================================

// IsAvailable reports whether the model can be used right now: remote
// models are always considered available (the credential check happens
// at request time), local models require their weights file on disk.
func (c *Client) IsAvailable(desc model.Descriptor) bool {
	if desc.RequiresCredential {
		return true
	}
	return desc.PathExists()
}

// ListAvailableModels returns the registered models that IsAvailable
// accepts, in registration order.
func (c *Client) ListAvailableModels() []model.Descriptor {
	all := c.registry.All()
	out := make([]model.Descriptor, 0, len(all))
	for _, d := range all {
		if c.IsAvailable(d) {
			out = append(out, d)
		}
	}
	return out
}

// ValidateCredential reports whether a credential value is usable:
// non-empty after trimming whitespace. No network check is made.
func ValidateCredential(v string) bool {
	return strings.TrimSpace(v) != ""
}

// MaskedCredential describes the configured API key without revealing
// it: length plus a short fingerprint, safe for logs and UI.
func (c *Client) MaskedCredential() string {
	key := c.settings.APIKey()
	if !ValidateCredential(key) {
		return "[not set]"
	}
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("[set, length=%d, fingerprint=%x]", len(key), sum[:4])
}

// Ping checks that the configured base URL answers at all. Useful for a
// settings screen; generation does not depend on it.
func (c *Client) Ping(ctx context.Context) error {
	base := c.settings.BaseURL()
	if base == "" {
		return errf(KindInvalidURL, "no server URL configured")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return &Error{Kind: KindInvalidURL, Message: "malformed server URL", Cause: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base, nil)
	if err != nil {
		return &Error{Kind: KindInvalidURL, Message: "building request", Cause: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	resp.Body.Close()
	return nil
}

// ResolveMessage applies a generation outcome to a pending message:
// delivered with the text on success, failed with placeholder content on
// error. A nil message is ignored.
func ResolveMessage(msg *model.Message, text string, err error) {
	if msg == nil {
		return
	}
	if err != nil {
		msg.Fail()
		return
	}
	msg.Deliver(text)
}
