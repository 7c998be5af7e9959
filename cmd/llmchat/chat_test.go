// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"testing"
)

func TestTurnContextRearms(t *testing.T) {
	parent := context.Background()

	// A cancelled turn must not poison the next one.
	first, stopFirst := newTurnContext(parent)
	stopFirst()
	if first.Err() == nil {
		t.Error("stopped turn context should be cancelled")
	}

	second, stopSecond := newTurnContext(parent)
	defer stopSecond()
	if second.Err() != nil {
		t.Errorf("fresh turn context already cancelled: %v", second.Err())
	}
}

func TestTurnContextInheritsParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	turn, stop := newTurnContext(parent)
	defer stop()
	select {
	case <-turn.Done():
	default:
		t.Error("turn context should follow a cancelled parent")
	}
}
