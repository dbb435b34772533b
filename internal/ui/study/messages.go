// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package study

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/manovay/AP-Study-Guide-Generator/internal/registry"
)

// =============================================================================
// MESSAGES
// =============================================================================

// changedMsg tells the model that registry state moved and the view must be
// rebuilt from it.
type changedMsg struct{}

// intentDoneMsg reports the result of a controller call made off the event
// loop.
type intentDoneMsg struct {
	op  string
	key string
	err error
}

// cancelledMsg carries the prompt of a cancelled request back to the input.
type cancelledMsg struct {
	prompt string
	err    error
}

// =============================================================================
// REGISTRY BRIDGE
// =============================================================================

// bridge turns registry events into Bubble Tea messages. Observers must not
// block, so events are coalesced into a single pending signal; the model
// always re-reads the registry when it handles one.
type bridge struct {
	signal chan struct{}
	done   chan struct{}
	unsub  func()
}

func newBridge(reg *registry.Registry) *bridge {
	b := &bridge{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	b.unsub = reg.Subscribe(b.observe)
	return b
}

func (b *bridge) observe(registry.Event) {
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// wait returns a command that blocks until the next registry change.
func (b *bridge) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-b.signal:
			return changedMsg{}
		case <-b.done:
			return nil
		}
	}
}

func (b *bridge) close() {
	select {
	case <-b.done:
		return
	default:
	}
	close(b.done)
	b.unsub()
}
