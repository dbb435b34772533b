// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"sort"
	"sync"

	"github.com/manovay/AP-Study-Guide-Generator/internal/model"
)

// =============================================================================
// REGISTRY
// =============================================================================

// Registry holds one user's study guides, the current selection and the
// reveal cursors. It is the single owner of guide state; the controller is
// its only writer.
//
// Saved guides are keyed by their remote id. Drafts (guides whose create
// request is in flight) are keyed by their local key and never appear in
// List. An empty selection is new-guide mode, backed by a blank draft with
// an empty ledger.
//
// All methods are safe for concurrent use. Observers are notified after the
// lock is released.
type Registry struct {
	mu sync.Mutex

	ownerEmail string
	guides     map[string]*model.StudyGuide
	drafts     map[string]*model.StudyGuide
	blank      *model.StudyGuide
	selected   string

	reveal map[string]RevealState

	// last-fetch-wins bookkeeping, see fetch.go
	gen          uint64
	journal      map[string]*mutation
	fetchSeq     uint64
	appliedFetch uint64

	observers []observerEntry
	nextObsID int
}

type observerEntry struct {
	id int
	fn Observer
}

// New creates an empty registry for ownerEmail in new-guide mode.
func New(ownerEmail string) *Registry {
	return &Registry{
		ownerEmail: ownerEmail,
		guides:     make(map[string]*model.StudyGuide),
		drafts:     make(map[string]*model.StudyGuide),
		blank:      model.NewDraft(ownerEmail),
		reveal:     make(map[string]RevealState),
		journal:    make(map[string]*mutation),
	}
}

// Owner returns the email every operation is scoped to.
func (r *Registry) Owner() string {
	return r.ownerEmail
}

// =============================================================================
// OBSERVERS
// =============================================================================

// Subscribe registers an observer and returns a function that removes it.
func (r *Registry) Subscribe(fn Observer) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextObsID++
	id := r.nextObsID
	r.observers = append(r.observers, observerEntry{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, o := range r.observers {
			if o.id == id {
				r.observers = append(r.observers[:i], r.observers[i+1:]...)
				return
			}
		}
	}
}

// unlockAndPublish releases the lock and then delivers events.
func (r *Registry) unlockAndPublish(events ...Event) {
	obs := make([]Observer, len(r.observers))
	for i, o := range r.observers {
		obs[i] = o.fn
	}
	r.mu.Unlock()

	for _, ev := range events {
		for _, fn := range obs {
			fn(ev)
		}
	}
}

// ReportError publishes a transient error for key.
func (r *Registry) ReportError(key string, err error) {
	r.mu.Lock()
	r.unlockAndPublish(Event{Kind: EventError, Key: key, Err: err})
}

// =============================================================================
// READ ACCESS
// =============================================================================

// List returns summaries of saved guides, most recently updated first. Ties
// are broken by creation time, then id.
func (r *Registry) List() []model.Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Summary, 0, len(r.guides))
	for _, g := range r.guides {
		out = append(out, g.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

// Len returns the number of saved guides.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.guides)
}

// Get returns a copy of the guide or draft stored under key.
func (r *Registry) Get(key string) (*model.StudyGuide, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := r.lookupLocked(key)
	if g == nil {
		return nil, false
	}
	return g.Clone(), true
}

// Selected returns the selected key, or "" in new-guide mode.
func (r *Registry) Selected() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected
}

// Current returns a copy of the open guide. In new-guide mode it is an
// unsaved guide with an empty ledger.
func (r *Registry) Current() *model.StudyGuide {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g := r.lookupLocked(r.selected); g != nil {
		return g.Clone()
	}
	return r.blank.Clone()
}

// Selection returns the selected key and a copy of its guide from one
// snapshot. The guide is nil in new-guide mode.
func (r *Registry) Selection() (string, *model.StudyGuide) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := r.lookupLocked(r.selected)
	if r.selected == "" || g == nil {
		return "", nil
	}
	return r.selected, g.Clone()
}

// Reveal returns the reveal cursor for key.
func (r *Registry) Reveal(key string) (RevealState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.reveal[key]
	return st, ok
}

func (r *Registry) lookupLocked(key string) *model.StudyGuide {
	if key == "" {
		return nil
	}
	if g, ok := r.guides[key]; ok {
		return g
	}
	return r.drafts[key]
}

// =============================================================================
// SELECTION
// =============================================================================

// Select opens the guide or draft stored under key. It reports whether the
// conversation is already loaded; if not, the caller fetches it.
func (r *Registry) Select(key string) (loaded bool, err error) {
	r.mu.Lock()
	g := r.lookupLocked(key)
	if g == nil {
		r.mu.Unlock()
		return false, model.Wrap(model.ErrGuideNotFound, "select_guide", key)
	}
	loaded = g.Loaded
	if r.selected == key {
		r.mu.Unlock()
		return loaded, nil
	}
	r.selected = key
	r.unlockAndPublish(Event{Kind: EventSelectionChanged, Key: key})
	return loaded, nil
}

// SelectNew enters new-guide mode with a fresh empty draft.
func (r *Registry) SelectNew() {
	r.mu.Lock()
	if r.selected == "" && r.blank.Conversation.IsEmpty() {
		r.mu.Unlock()
		return
	}
	r.selected = ""
	r.blank = model.NewDraft(r.ownerEmail)
	r.unlockAndPublish(Event{Kind: EventSelectionChanged})
}

// SetReveal records the reveal cursor for key.
func (r *Registry) SetReveal(key string, st RevealState, prefix string) {
	r.mu.Lock()
	if r.lookupLocked(key) == nil {
		r.mu.Unlock()
		return
	}
	if cur, ok := r.reveal[key]; ok && cur == st {
		r.mu.Unlock()
		return
	}
	r.reveal[key] = st
	r.unlockAndPublish(Event{Kind: EventRevealChanged, Key: key, Reveal: st, Prefix: prefix})
}
