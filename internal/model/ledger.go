// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// =============================================================================
// TURN TYPE
// =============================================================================

// TurnStatus represents where a prompt/response exchange is in its lifecycle.
type TurnStatus string

const (
	// TurnPending indicates the request is outstanding.
	TurnPending TurnStatus = "pending"

	// TurnComplete indicates the response has been stored. Complete turns
	// are immutable.
	TurnComplete TurnStatus = "complete"

	// TurnFailed indicates the request failed. Failed turns are dropped
	// before control returns to the user.
	TurnFailed TurnStatus = "failed"
)

// String returns the string representation of the turn status.
func (s TurnStatus) String() string {
	return string(s)
}

// Turn is one prompt/response exchange within a guide's conversation.
type Turn struct {
	Seq       uint64     `json:"-"`
	Prompt    string     `json:"user_prompt"`
	Response  string     `json:"response"`
	Status    TurnStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsPending reports whether the turn is waiting on the remote store.
func (t Turn) IsPending() bool {
	return t.Status == TurnPending
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is the ordered, append-only log of turns for exactly one guide.
// Only the newest turn may be pending. Every failing call leaves the ledger
// unchanged.
//
// A Ledger is not safe for concurrent use; the registry serializes access.
type Ledger struct {
	turns   []Turn
	lastSeq uint64
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{turns: make([]Turn, 0)}
}

// AppendPending pushes a new pending turn and returns its sequence number.
// At most one request may be outstanding per guide.
func (l *Ledger) AppendPending(prompt string) (uint64, error) {
	if l.HasPending() {
		return 0, ErrPendingTurnExists
	}
	l.lastSeq++
	l.turns = append(l.turns, Turn{
		Seq:       l.lastSeq,
		Prompt:    prompt,
		Status:    TurnPending,
		CreatedAt: time.Now(),
	})
	return l.lastSeq, nil
}

// Resolve completes the pending turn with the given response.
func (l *Ledger) Resolve(response string) error {
	idx := l.pendingIndex()
	if idx < 0 {
		return ErrNoPendingTurn
	}
	l.turns[idx].Response = response
	l.turns[idx].Status = TurnComplete
	return nil
}

// ResolveSeq completes the pending turn only if it is the one issued with
// seq. A mismatch means the request was failed or superseded locally.
func (l *Ledger) ResolveSeq(seq uint64, response string) error {
	idx := l.pendingIndex()
	if idx < 0 || l.turns[idx].Seq != seq {
		return ErrStaleResponse
	}
	return l.Resolve(response)
}

// Fail marks the pending turn as failed.
func (l *Ledger) Fail() error {
	idx := l.pendingIndex()
	if idx < 0 {
		return ErrNoPendingTurn
	}
	l.turns[idx].Status = TurnFailed
	return nil
}

// FailSeq fails the pending turn only if it carries seq.
func (l *Ledger) FailSeq(seq uint64) error {
	idx := l.pendingIndex()
	if idx < 0 || l.turns[idx].Seq != seq {
		return ErrStaleResponse
	}
	return l.Fail()
}

// DropFailed removes a trailing failed turn and returns it so the prompt
// can be offered for retry.
func (l *Ledger) DropFailed() (Turn, error) {
	n := len(l.turns)
	if n == 0 || l.turns[n-1].Status != TurnFailed {
		return Turn{}, ErrNoFailedTurn
	}
	t := l.turns[n-1]
	l.turns = l.turns[:n-1]
	return t, nil
}

// ReplaceAll bulk-loads the ledger from stored turns. Loaded turns are
// complete. Refused while a request is outstanding.
func (l *Ledger) ReplaceAll(turns []Turn) error {
	if l.HasPending() {
		return ErrPendingTurnExists
	}
	next := make([]Turn, len(turns))
	for i, t := range turns {
		l.lastSeq++
		t.Seq = l.lastSeq
		t.Status = TurnComplete
		next[i] = t
	}
	l.turns = next
	return nil
}

// =============================================================================
// READ ACCESS
// =============================================================================

// Turns returns a copy of the turns in chronological order.
func (l *Ledger) Turns() []Turn {
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len returns the number of turns.
func (l *Ledger) Len() int {
	return len(l.turns)
}

// IsEmpty returns true if there are no turns.
func (l *Ledger) IsEmpty() bool {
	return len(l.turns) == 0
}

// HasPending reports whether a request is outstanding.
func (l *Ledger) HasPending() bool {
	return l.pendingIndex() >= 0
}

// Pending returns the pending turn, if any.
func (l *Ledger) Pending() (Turn, bool) {
	idx := l.pendingIndex()
	if idx < 0 {
		return Turn{}, false
	}
	return l.turns[idx], true
}

// Last returns the newest turn.
func (l *Ledger) Last() (Turn, bool) {
	if len(l.turns) == 0 {
		return Turn{}, false
	}
	return l.turns[len(l.turns)-1], true
}

// CompleteCount returns the number of complete turns.
func (l *Ledger) CompleteCount() int {
	n := 0
	for _, t := range l.turns {
		if t.Status == TurnComplete {
			n++
		}
	}
	return n
}

// Clone creates a deep copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{turns: l.Turns(), lastSeq: l.lastSeq}
}

// pendingIndex returns the index of the pending turn or -1. Only the last
// turn can be pending.
func (l *Ledger) pendingIndex() int {
	n := len(l.turns)
	if n == 0 || l.turns[n-1].Status != TurnPending {
		return -1
	}
	return n - 1
}
