// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

// EventKind identifies what changed.
type EventKind int

const (
	// EventGuidesChanged fires when the saved guide set or a summary changes.
	EventGuidesChanged EventKind = iota + 1

	// EventSelectionChanged fires when the open guide changes.
	EventSelectionChanged

	// EventLedgerChanged fires when a guide's conversation changes.
	EventLedgerChanged

	// EventRevealChanged fires when the reveal cursor of a guide moves.
	EventRevealChanged

	// EventError carries a transient, user-visible failure.
	EventError
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventGuidesChanged:
		return "guides"
	case EventSelectionChanged:
		return "selection"
	case EventLedgerChanged:
		return "ledger"
	case EventRevealChanged:
		return "reveal"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered to observers after the registry lock is released.
type Event struct {
	Kind   EventKind
	Key    string // guide id or draft key; empty for new-guide mode
	Reveal RevealState
	Prefix string // latest revealed prefix for EventRevealChanged
	Err    error
}

// Observer receives registry events. Observers are called synchronously in
// subscription order and must not block.
type Observer func(Event)

// RevealState is the reveal cursor for the newest response of a guide.
type RevealState struct {
	Offset int // bytes of the response revealed so far
	Total  int
	Done   bool
}
