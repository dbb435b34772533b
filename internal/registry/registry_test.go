// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manovay/AP-Study-Guide-Generator/internal/model"
)

const owner = "ada@example.com"

// saved builds a guide as the controller would from a remote record.
func saved(id, title string, updated time.Time, turns ...model.Turn) *model.StudyGuide {
	g := &model.StudyGuide{
		ID:           id,
		Title:        title,
		OwnerEmail:   owner,
		Conversation: model.NewLedger(),
		CreatedAt:    updated,
		UpdatedAt:    updated,
		Loaded:       true,
	}
	_ = g.Conversation.ReplaceAll(turns)
	return g
}

func seed(t *testing.T, r *Registry, guides ...*model.StudyGuide) {
	t.Helper()
	require.NoError(t, r.ApplyFetch(r.BeginFetch(), guides))
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (rec *recorder) observe(ev Event) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.events = append(rec.events, ev)
}

func (rec *recorder) kinds() []EventKind {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]EventKind, len(rec.events))
	for i, ev := range rec.events {
		out[i] = ev.Kind
	}
	return out
}

func TestNewRegistryIsEmpty(t *testing.T) {
	r := New(owner)
	assert.Equal(t, owner, r.Owner())
	assert.Empty(t, r.List())
	assert.Equal(t, "", r.Selected())

	cur := r.Current()
	assert.False(t, cur.IsSaved())
	assert.True(t, cur.Conversation.IsEmpty())
}

func TestListOrdering(t *testing.T) {
	r := New(owner)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	seed(t, r,
		saved("a", "Old", base),
		saved("b", "Newest", base.Add(2*time.Hour)),
		saved("c", "Same as d", base.Add(time.Hour)),
		saved("d", "Same as c", base.Add(time.Hour)),
	)

	var ids []string
	for _, s := range r.List() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"b", "c", "d", "a"}, ids)
}

func TestSelect(t *testing.T) {
	r := New(owner)
	seed(t, r, saved("a", "A", time.Now()))

	loaded, err := r.Select("a")
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "a", r.Current().ID)

	_, err = r.Select("missing")
	assert.True(t, errors.Is(err, model.ErrGuideNotFound))
	assert.Equal(t, "a", r.Selected(), "failed select keeps selection")

	r.SelectNew()
	assert.Equal(t, "", r.Selected())
	assert.True(t, r.Current().Conversation.IsEmpty())
}

func TestSelection(t *testing.T) {
	r := New(owner)
	seed(t, r, saved("a", "A", time.Now()))

	id, g := r.Selection()
	assert.Equal(t, "", id)
	assert.Nil(t, g)

	_, err := r.Select("a")
	require.NoError(t, err)
	id, g = r.Selection()
	assert.Equal(t, "a", id)
	require.NotNil(t, g)
	assert.Equal(t, "a", g.ID)
}

func TestDraftLifecycle(t *testing.T) {
	r := New(owner)
	key, seq, err := r.NewDraft("Photosynthesis")
	require.NoError(t, err)
	assert.Equal(t, key, r.Selected())
	assert.Empty(t, r.List(), "drafts are not listed")

	cur := r.Current()
	assert.Equal(t, "Photosynthesis", cur.Title)
	p, ok := cur.Conversation.Pending()
	require.True(t, ok)
	assert.Equal(t, "Photosynthesis", p.Prompt)

	srv := saved("g1", "Photosynthesis", time.Now(), model.Turn{Prompt: "Photosynthesis", Response: "Light reactions..."})
	got, err := r.Promote(key, seq, srv)
	require.NoError(t, err)
	assert.Equal(t, "g1", got.ID)
	assert.Equal(t, "g1", r.Selected())
	require.Len(t, r.List(), 1)

	last, _ := r.Current().Conversation.Last()
	assert.Equal(t, model.TurnComplete, last.Status)
	assert.Equal(t, "Light reactions...", last.Response)

	_, err = r.Promote(key, seq, srv)
	assert.True(t, errors.Is(err, model.ErrStaleResponse))
}

func TestPromoteKeepsOtherSelection(t *testing.T) {
	r := New(owner)
	seed(t, r, saved("b", "B", time.Now()))
	key, seq, err := r.NewDraft("Cells")
	require.NoError(t, err)

	_, err = r.Select("b")
	require.NoError(t, err)

	_, err = r.Promote(key, seq, saved("a", "Cells", time.Now(), model.Turn{Prompt: "Cells", Response: "..."}))
	require.NoError(t, err)
	assert.Equal(t, "b", r.Selected())
	assert.Equal(t, 2, r.Len())
}

func TestPromoteAfterRefreshListedGuide(t *testing.T) {
	r := New(owner)
	key, seq, err := r.NewDraft("Cells")
	require.NoError(t, err)

	// the server saved the guide before a concurrent refresh ran
	seed(t, r, saved("a", "Cells", time.Now(), model.Turn{Prompt: "Cells", Response: "r"}))

	_, err = r.Promote(key, seq, saved("a", "Cells", time.Now(), model.Turn{Prompt: "Cells", Response: "r"}))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len(), "registry must never hold two guides with the same id")
	assert.Equal(t, "a", r.Selected())
}

func TestDiscardDraft(t *testing.T) {
	r := New(owner)
	key, seq, err := r.NewDraft("Stoichiometry")
	require.NoError(t, err)

	turn, err := r.DiscardDraft(key, seq)
	require.NoError(t, err)
	assert.Equal(t, "Stoichiometry", turn.Prompt)
	assert.Empty(t, r.List())
	assert.Equal(t, "", r.Selected())
	assert.True(t, r.Current().Conversation.IsEmpty())
	_, ok := r.Get(key)
	assert.False(t, ok)
}

func TestFollowUpTurns(t *testing.T) {
	r := New(owner)
	seed(t, r, saved("a", "A", time.Now(), model.Turn{Prompt: "A", Response: "1"}))

	seq, err := r.AppendPending("a", "more?")
	require.NoError(t, err)
	_, err = r.AppendPending("a", "again?")
	assert.True(t, errors.Is(err, model.ErrPendingTurnExists))

	require.NoError(t, r.ResolveTurn("a", seq, "2"))
	g, _ := r.Get("a")
	assert.Equal(t, 2, g.Conversation.CompleteCount())

	seq, err = r.AppendPending("a", "third")
	require.NoError(t, err)
	turn, err := r.FailTurn("a", seq)
	require.NoError(t, err)
	assert.Equal(t, "third", turn.Prompt)
	g, _ = r.Get("a")
	assert.Equal(t, 2, g.Conversation.Len())

	err = r.ResolveTurn("a", seq, "late")
	assert.True(t, errors.Is(err, model.ErrStaleResponse))
}

func TestCancelPending(t *testing.T) {
	r := New(owner)
	seed(t, r, saved("a", "A", time.Now()))
	seq, err := r.AppendPending("a", "q")
	require.NoError(t, err)

	turn, err := r.CancelPending("a")
	require.NoError(t, err)
	assert.Equal(t, "q", turn.Prompt)
	assert.True(t, errors.Is(r.ResolveTurn("a", seq, "late"), model.ErrStaleResponse))

	_, err = r.CancelPending("a")
	assert.True(t, errors.Is(err, model.ErrNoPendingTurn))

	key, seq, err := r.NewDraft("draft topic")
	require.NoError(t, err)
	_, err = r.CancelPending(key)
	require.NoError(t, err)
	assert.Equal(t, "", r.Selected())
	_, err = r.Promote(key, seq, saved("x", "draft topic", time.Now()))
	assert.True(t, errors.Is(err, model.ErrStaleResponse))
}

func TestRenameAndRollback(t *testing.T) {
	r := New(owner)
	seed(t, r, saved("a", "Photosynthesis", time.Now()))

	_, err := r.Rename("a", "   ")
	assert.True(t, errors.Is(err, model.ErrEmptyTitle))

	prev, err := r.Rename("a", "  Bio Notes ")
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis", prev)
	g, _ := r.Get("a")
	assert.Equal(t, "Bio Notes", g.Title)

	r.RestoreTitle("a", prev)
	g, _ = r.Get("a")
	assert.Equal(t, "Photosynthesis", g.Title)
}

func TestRemoveSelectedEntersNewMode(t *testing.T) {
	r := New(owner)
	seed(t, r, saved("a", "A", time.Now(), model.Turn{Prompt: "A", Response: "x"}))
	_, err := r.Select("a")
	require.NoError(t, err)

	rm, err := r.Remove("a")
	require.NoError(t, err)
	assert.Equal(t, "", r.Selected())
	assert.True(t, r.Current().Conversation.IsEmpty())
	assert.Empty(t, r.List())

	r.Restore(rm)
	assert.Equal(t, "a", r.Selected(), "selection restored while new-guide mode is untouched")
	require.Len(t, r.List(), 1)
	assert.Equal(t, 1, r.Current().Conversation.Len())
}

func TestRestoreDoesNotStealSelection(t *testing.T) {
	r := New(owner)
	seed(t, r, saved("a", "A", time.Now()), saved("b", "B", time.Now()))
	_, _ = r.Select("a")

	rm, err := r.Remove("a")
	require.NoError(t, err)
	_, _ = r.Select("b")

	r.Restore(rm)
	assert.Equal(t, "b", r.Selected())
}

// A fetch that started before a rename or delete and completes after it
// must not resurrect the stale state.
func TestFetchDoesNotResurrect(t *testing.T) {
	base := time.Now()
	tests := []struct {
		name   string
		mutate func(r *Registry)
		check  func(t *testing.T, r *Registry)
	}{
		{
			name: "rename confirmed during fetch",
			mutate: func(r *Registry) {
				_, _ = r.Rename("a", "Bio Notes")
				r.ConfirmRename("a")
			},
			check: func(t *testing.T, r *Registry) {
				g, ok := r.Get("a")
				require.True(t, ok)
				assert.Equal(t, "Bio Notes", g.Title)
			},
		},
		{
			name: "rename still in flight",
			mutate: func(r *Registry) {
				_, _ = r.Rename("a", "Bio Notes")
			},
			check: func(t *testing.T, r *Registry) {
				g, _ := r.Get("a")
				assert.Equal(t, "Bio Notes", g.Title)
			},
		},
		{
			name: "delete confirmed during fetch",
			mutate: func(r *Registry) {
				rm, _ := r.Remove("a")
				r.ConfirmRemove(rm)
			},
			check: func(t *testing.T, r *Registry) {
				_, ok := r.Get("a")
				assert.False(t, ok)
				assert.Len(t, r.List(), 1)
			},
		},
		{
			name: "delete still in flight",
			mutate: func(r *Registry) {
				_, _ = r.Remove("a")
			},
			check: func(t *testing.T, r *Registry) {
				_, ok := r.Get("a")
				assert.False(t, ok)
			},
		},
		{
			name: "rename then delete",
			mutate: func(r *Registry) {
				_, _ = r.Rename("a", "X")
				r.ConfirmRename("a")
				rm, _ := r.Remove("a")
				r.ConfirmRemove(rm)
			},
			check: func(t *testing.T, r *Registry) {
				_, ok := r.Get("a")
				assert.False(t, ok)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(owner)
			seed(t, r, saved("a", "Photosynthesis", base), saved("b", "Cells", base))

			tok := r.BeginFetch()
			tt.mutate(r)
			stale := []*model.StudyGuide{
				saved("a", "Photosynthesis", base),
				saved("b", "Cells", base),
			}
			require.NoError(t, r.ApplyFetch(tok, stale))
			tt.check(t, r)
		})
	}
}

func TestFetchStartedAfterInFlightDelete(t *testing.T) {
	r := New(owner)
	seed(t, r, saved("a", "A", time.Now()))

	rm, err := r.Remove("a")
	require.NoError(t, err)
	// server has not processed the delete yet when this fetch runs
	tok := r.BeginFetch()
	require.NoError(t, r.ApplyFetch(tok, []*model.StudyGuide{saved("a", "A", time.Now())}))
	r.ConfirmRemove(rm)

	_, ok := r.Get("a")
	assert.False(t, ok)
}

func TestOlderFetchDiscarded(t *testing.T) {
	r := New(owner)
	first := r.BeginFetch()
	second := r.BeginFetch()

	require.NoError(t, r.ApplyFetch(second, []*model.StudyGuide{saved("new", "New", time.Now())}))
	err := r.ApplyFetch(first, []*model.StudyGuide{saved("old", "Old", time.Now())})
	assert.True(t, errors.Is(err, model.ErrStaleResponse))

	_, ok := r.Get("new")
	assert.True(t, ok)
	_, ok = r.Get("old")
	assert.False(t, ok)
}

func TestFetchKeepsPendingLedgerAndNewGuides(t *testing.T) {
	r := New(owner)
	seed(t, r, saved("a", "A", time.Now(), model.Turn{Prompt: "A", Response: "1"}))
	tok := r.BeginFetch()

	_, err := r.AppendPending("a", "follow up")
	require.NoError(t, err)
	key, seq, err := r.NewDraft("B")
	require.NoError(t, err)
	_, err = r.Promote(key, seq, saved("b", "B", time.Now(), model.Turn{Prompt: "B", Response: "2"}))
	require.NoError(t, err)

	require.NoError(t, r.ApplyFetch(tok, []*model.StudyGuide{saved("a", "A", time.Now(), model.Turn{Prompt: "A", Response: "1"})}))

	g, ok := r.Get("a")
	require.True(t, ok)
	assert.True(t, g.Conversation.HasPending(), "pending ledger survives a fetch")
	_, ok = r.Get("b")
	assert.True(t, ok, "guide created after fetch began survives")
}

func TestFetchDropsRemotelyDeletedSelection(t *testing.T) {
	r := New(owner)
	seed(t, r, saved("a", "A", time.Now()))
	_, _ = r.Select("a")

	seed(t, r)
	assert.Equal(t, "", r.Selected())
	assert.Empty(t, r.List())
}

func TestFetchDeduplicatesIDs(t *testing.T) {
	r := New(owner)
	seed(t, r, saved("a", "first", time.Now()), saved("a", "second", time.Now()))
	require.Len(t, r.List(), 1)
	assert.Equal(t, "first", r.List()[0].Title)
}

func TestObservers(t *testing.T) {
	r := New(owner)
	var rec recorder
	unsubscribe := r.Subscribe(rec.observe)

	seed(t, r, saved("a", "A", time.Now()))
	_, _ = r.Select("a")
	r.SetReveal("a", RevealState{Offset: 1, Total: 3}, "x")
	r.SetReveal("a", RevealState{Offset: 1, Total: 3}, "x")
	r.ReportError("a", errors.New("boom"))

	assert.Equal(t, []EventKind{
		EventGuidesChanged,
		EventSelectionChanged,
		EventRevealChanged,
		EventError,
	}, rec.kinds(), "repeated identical reveal is a no-op")

	unsubscribe()
	r.SelectNew()
	assert.Len(t, rec.kinds(), 4)
}

func TestObserverMayReadRegistry(t *testing.T) {
	r := New(owner)
	var titles []string
	r.Subscribe(func(ev Event) {
		if ev.Kind == EventGuidesChanged {
			for _, s := range r.List() {
				titles = append(titles, s.Title)
			}
		}
	})
	seed(t, r, saved("a", "A", time.Now()))
	assert.Equal(t, []string{"A"}, titles)
}
