// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStrings(t *testing.T) {
	kinds := []Kind{
		KindInvalidURL, KindInvalidResponse, KindRateLimitExceeded,
		KindInvalidCredential, KindRequestFailed, KindDecodingError,
		KindNoDataReceived, KindInvalidModel, KindInvalidRequest,
		KindModelNotAvailable, KindContextTooLarge, KindGenerationFailed,
		KindUnsupportedModel, KindNetworkUnavailable, KindTimeout,
	}
	seen := make(map[string]bool)
	for _, k := range kinds {
		s := k.String()
		assert.NotEqual(t, "unknown", s)
		assert.False(t, seen[s], "duplicate string %q", s)
		seen[s] = true
	}
	assert.Equal(t, "unknown", Kind(99).String())
}

func TestErrorFormatting(t *testing.T) {
	plain := errf(KindTimeout, "request timed out")
	assert.Equal(t, "request timed out", plain.Error())

	withStatus := &Error{Kind: KindRequestFailed, Message: "server returned status 500", StatusCode: 500}
	assert.Contains(t, withStatus.Error(), "HTTP 500")

	cause := errors.New("boom")
	withCause := &Error{Kind: KindNetworkUnavailable, Message: "cannot reach server", Cause: cause}
	assert.Contains(t, withCause.Error(), "boom")
	assert.Equal(t, cause, errors.Unwrap(withCause))
}

func TestKindInspection(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", errf(KindInvalidCredential, "no key"))

	k, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindInvalidCredential, k)
	assert.True(t, IsKind(err, KindInvalidCredential))
	assert.False(t, IsKind(err, KindTimeout))

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, IsKind(nil, KindTimeout))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, 429, StatusOf(&Error{Kind: KindRequestFailed, StatusCode: 429}))
	assert.Equal(t, 0, StatusOf(errf(KindTimeout, "late")))
	assert.Equal(t, 0, StatusOf(errors.New("plain")))
}

func TestIsCancelled(t *testing.T) {
	cancelled := &Error{Kind: KindRequestFailed, Message: "request cancelled", Cause: context.Canceled}
	assert.True(t, IsCancelled(cancelled))
	assert.False(t, IsCancelled(errf(KindRequestFailed, "server error")))
	assert.False(t, IsCancelled(&Error{Kind: KindTimeout, Cause: context.DeadlineExceeded}))
}

func TestHints(t *testing.T) {
	assert.NotEmpty(t, KindInvalidCredential.Hint())
	assert.NotEmpty(t, KindNetworkUnavailable.Hint())
	assert.NotEmpty(t, KindTimeout.Hint())
	assert.Empty(t, KindDecodingError.Hint())

	assert.NotEmpty(t, HintFor(errf(KindInvalidURL, "no url")))
	assert.Empty(t, HintFor(errors.New("plain")))
}
