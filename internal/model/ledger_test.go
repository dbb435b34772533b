// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerAppendPendingTwice(t *testing.T) {
	l := NewLedger()
	seq, err := l.AppendPending("Photosynthesis")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	before := l.Turns()
	_, err = l.AppendPending("Cell respiration")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.True(t, errors.Is(err, ErrPendingTurnExists))
	assert.Equal(t, before, l.Turns(), "ledger must be unchanged after failed append")
}

func TestLedgerResolve(t *testing.T) {
	l := NewLedger()
	_, err := l.AppendPending("Topic")
	require.NoError(t, err)
	require.NoError(t, l.Resolve("Answer"))

	last, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, TurnComplete, last.Status)
	assert.Equal(t, "Answer", last.Response)
	assert.False(t, l.HasPending())

	err = l.Resolve("again")
	assert.True(t, errors.Is(err, ErrNoPendingTurn))
	last, _ = l.Last()
	assert.Equal(t, "Answer", last.Response, "complete turns are immutable")
}

func TestLedgerResolveSeqStale(t *testing.T) {
	l := NewLedger()
	seq, err := l.AppendPending("Q1")
	require.NoError(t, err)
	require.NoError(t, l.Fail())
	_, err = l.DropFailed()
	require.NoError(t, err)

	seq2, err := l.AppendPending("Q1 again")
	require.NoError(t, err)
	assert.NotEqual(t, seq, seq2)

	err = l.ResolveSeq(seq, "late answer")
	assert.True(t, errors.Is(err, ErrStaleResponse))
	p, ok := l.Pending()
	require.True(t, ok)
	assert.Equal(t, "Q1 again", p.Prompt)

	require.NoError(t, l.ResolveSeq(seq2, "fresh answer"))
	assert.Equal(t, 1, l.CompleteCount())
}

func TestLedgerFailAndDrop(t *testing.T) {
	l := NewLedger()
	_, err := l.DropFailed()
	assert.True(t, errors.Is(err, ErrNoFailedTurn))

	assert.True(t, errors.Is(l.Fail(), ErrNoPendingTurn))

	_, err = l.AppendPending("Stoichiometry")
	require.NoError(t, err)
	require.NoError(t, l.Fail())
	assert.False(t, l.HasPending())

	dropped, err := l.DropFailed()
	require.NoError(t, err)
	assert.Equal(t, "Stoichiometry", dropped.Prompt)
	assert.True(t, l.IsEmpty())
}

func TestLedgerFailSeq(t *testing.T) {
	l := NewLedger()
	seq, _ := l.AppendPending("Q")
	assert.True(t, errors.Is(l.FailSeq(seq+1), ErrStaleResponse))
	require.NoError(t, l.FailSeq(seq))
	last, _ := l.Last()
	assert.Equal(t, TurnFailed, last.Status)
}

func TestLedgerReplaceAll(t *testing.T) {
	l := NewLedger()
	err := l.ReplaceAll([]Turn{
		{Prompt: "a", Response: "1"},
		{Prompt: "b", Response: "2", Status: TurnPending},
	})
	require.NoError(t, err)
	require.Equal(t, 2, l.Len())
	for _, turn := range l.Turns() {
		assert.Equal(t, TurnComplete, turn.Status)
	}

	_, err = l.AppendPending("c")
	require.NoError(t, err)
	err = l.ReplaceAll(nil)
	assert.True(t, errors.Is(err, ErrPendingTurnExists))
	assert.Equal(t, 3, l.Len())
}

func TestLedgerTurnsIsCopy(t *testing.T) {
	l := NewLedger()
	_, _ = l.AppendPending("a")
	turns := l.Turns()
	turns[0].Prompt = "mutated"

	p, _ := l.Pending()
	if p.Prompt != "a" {
		t.Errorf("Pending().Prompt = %q, want %q", p.Prompt, "a")
	}
}

func TestLedgerClone(t *testing.T) {
	l := NewLedger()
	_, _ = l.AppendPending("a")
	c := l.Clone()
	require.NoError(t, c.Resolve("x"))

	if !l.HasPending() {
		t.Error("original ledger should still be pending after resolving clone")
	}
}
