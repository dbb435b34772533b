// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"time"

	"github.com/manovay/AP-Study-Guide-Generator/internal/model"
)

// =============================================================================
// DRAFTS
// =============================================================================

// NewDraft turns the new-guide draft into an in-flight create seeded with a
// pending turn for prompt and selects it. It returns the draft key and the
// turn sequence number.
func (r *Registry) NewDraft(prompt string) (key string, seq uint64, err error) {
	r.mu.Lock()
	d := r.blank
	seq, err = d.Conversation.AppendPending(prompt)
	if err != nil {
		r.mu.Unlock()
		return "", 0, model.Wrap(model.ErrPendingTurnExists, "submit_topic", d.LocalKey)
	}
	d.Title = model.DefaultTitle(prompt)
	d.Touch()
	r.drafts[d.LocalKey] = d
	r.blank = model.NewDraft(r.ownerEmail)
	r.selected = d.LocalKey
	r.unlockAndPublish(
		Event{Kind: EventSelectionChanged, Key: d.LocalKey},
		Event{Kind: EventLedgerChanged, Key: d.LocalKey},
	)
	return d.LocalKey, seq, nil
}

// Promote saves the draft under key with the server-assigned fields of
// saved. The server's title and conversation replace the local guesses. If
// the user is still on the draft, the selection follows it to the new id.
//
// Promote reports ErrStaleResponse if the draft was cancelled or its pending
// turn no longer carries seq.
func (r *Registry) Promote(key string, seq uint64, saved *model.StudyGuide) (*model.StudyGuide, error) {
	r.mu.Lock()
	d, ok := r.drafts[key]
	if !ok {
		r.mu.Unlock()
		return nil, model.Wrap(model.ErrStaleResponse, "submit_topic", key)
	}

	var response string
	if last, ok := saved.Conversation.Last(); ok {
		response = last.Response
	}
	if err := d.Conversation.ResolveSeq(seq, response); err != nil {
		r.mu.Unlock()
		return nil, model.Wrap(model.ErrStaleResponse, "submit_topic", key)
	}
	if !saved.Conversation.IsEmpty() {
		_ = d.Conversation.ReplaceAll(saved.Conversation.Turns())
	}

	delete(r.drafts, key)
	d.ID = saved.ID
	if saved.Title != "" {
		d.Title = saved.Title
	}
	if !saved.CreatedAt.IsZero() {
		d.CreatedAt = saved.CreatedAt
	}
	d.UpdatedAt = saved.UpdatedAt
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now()
	}
	d.Loaded = true

	// a refresh may already have listed the new guide; the promoted draft
	// replaces it so the id stays unique
	r.guides[d.ID] = d
	m := r.markLocked(d.ID)
	m.createdGen = r.gen
	m.ledgerGen = r.gen

	if st, ok := r.reveal[key]; ok {
		r.reveal[d.ID] = st
		delete(r.reveal, key)
	}

	events := []Event{
		{Kind: EventGuidesChanged, Key: d.ID},
		{Kind: EventLedgerChanged, Key: d.ID},
	}
	if r.selected == key {
		r.selected = d.ID
		events = append(events, Event{Kind: EventSelectionChanged, Key: d.ID})
	}
	out := d.Clone()
	r.unlockAndPublish(events...)
	return out, nil
}

// DiscardDraft rolls back a failed create: the pending turn is failed and
// dropped and the draft is removed. If it was selected the registry returns
// to new-guide mode. The dropped turn is returned so its prompt can be
// re-entered.
func (r *Registry) DiscardDraft(key string, seq uint64) (model.Turn, error) {
	r.mu.Lock()
	d, ok := r.drafts[key]
	if !ok {
		r.mu.Unlock()
		return model.Turn{}, model.Wrap(model.ErrStaleResponse, "submit_topic", key)
	}
	if err := d.Conversation.FailSeq(seq); err != nil {
		r.mu.Unlock()
		return model.Turn{}, model.Wrap(model.ErrStaleResponse, "submit_topic", key)
	}
	turn, _ := d.Conversation.DropFailed()
	delete(r.drafts, key)
	delete(r.reveal, key)

	events := []Event{{Kind: EventLedgerChanged, Key: key}}
	if r.selected == key {
		r.selected = ""
		r.blank = model.NewDraft(r.ownerEmail)
		events = append(events, Event{Kind: EventSelectionChanged})
	}
	r.unlockAndPublish(events...)
	return turn, nil
}

// =============================================================================
// TURNS
// =============================================================================

// AppendPending adds a pending follow-up turn to the saved guide id.
func (r *Registry) AppendPending(id, prompt string) (uint64, error) {
	r.mu.Lock()
	g, ok := r.guides[id]
	if !ok {
		r.mu.Unlock()
		return 0, model.Wrap(model.ErrGuideNotFound, "submit_follow_up", id)
	}
	seq, err := g.Conversation.AppendPending(prompt)
	if err != nil {
		r.mu.Unlock()
		return 0, model.Wrap(model.ErrPendingTurnExists, "submit_follow_up", id)
	}
	r.markLocked(id).ledgerGen = r.gen
	r.unlockAndPublish(
		Event{Kind: EventLedgerChanged, Key: id},
		Event{Kind: EventGuidesChanged, Key: id},
	)
	return seq, nil
}

// ResolveTurn completes the pending turn seq of guide id. A response for a
// guide that was removed or a turn that was failed meanwhile is stale.
func (r *Registry) ResolveTurn(id string, seq uint64, response string) error {
	r.mu.Lock()
	g, ok := r.guides[id]
	if !ok {
		r.mu.Unlock()
		return model.Wrap(model.ErrStaleResponse, "submit_follow_up", id)
	}
	if err := g.Conversation.ResolveSeq(seq, response); err != nil {
		r.mu.Unlock()
		return model.Wrap(model.ErrStaleResponse, "submit_follow_up", id)
	}
	g.Touch()
	r.markLocked(id).ledgerGen = r.gen
	r.unlockAndPublish(
		Event{Kind: EventLedgerChanged, Key: id},
		Event{Kind: EventGuidesChanged, Key: id},
	)
	return nil
}

// FailTurn fails and drops the pending turn seq of guide id and returns it.
func (r *Registry) FailTurn(id string, seq uint64) (model.Turn, error) {
	r.mu.Lock()
	g, ok := r.guides[id]
	if !ok {
		r.mu.Unlock()
		return model.Turn{}, model.Wrap(model.ErrStaleResponse, "submit_follow_up", id)
	}
	if err := g.Conversation.FailSeq(seq); err != nil {
		r.mu.Unlock()
		return model.Turn{}, model.Wrap(model.ErrStaleResponse, "submit_follow_up", id)
	}
	turn, _ := g.Conversation.DropFailed()
	r.markLocked(id).ledgerGen = r.gen
	r.unlockAndPublish(
		Event{Kind: EventLedgerChanged, Key: id},
		Event{Kind: EventGuidesChanged, Key: id},
	)
	return turn, nil
}

// CancelPending abandons the outstanding request of the guide or draft
// under key. A cancelled draft is discarded. The response, when it arrives,
// is detected as stale.
func (r *Registry) CancelPending(key string) (model.Turn, error) {
	r.mu.Lock()
	g := r.lookupLocked(key)
	if g == nil {
		r.mu.Unlock()
		return model.Turn{}, model.Wrap(model.ErrGuideNotFound, "cancel_pending", key)
	}
	if err := g.Conversation.Fail(); err != nil {
		r.mu.Unlock()
		return model.Turn{}, model.Wrap(model.ErrNoPendingTurn, "cancel_pending", key)
	}
	turn, _ := g.Conversation.DropFailed()

	events := []Event{{Kind: EventLedgerChanged, Key: key}}
	if _, isDraft := r.drafts[key]; isDraft {
		delete(r.drafts, key)
		if r.selected == key {
			r.selected = ""
			r.blank = model.NewDraft(r.ownerEmail)
			events = append(events, Event{Kind: EventSelectionChanged})
		}
	} else {
		r.markLocked(key).ledgerGen = r.gen
		events = append(events, Event{Kind: EventGuidesChanged, Key: key})
	}
	r.unlockAndPublish(events...)
	return turn, nil
}

// =============================================================================
// RENAME
// =============================================================================

// Rename optimistically retitles guide id and returns the previous title
// for rollback. The title is trimmed and must be non-empty.
func (r *Registry) Rename(id, title string) (previous string, err error) {
	title, err = model.NormalizeTitle(title)
	if err != nil {
		return "", model.Wrap(model.ErrEmptyTitle, "rename_guide", id)
	}

	r.mu.Lock()
	g, ok := r.guides[id]
	if !ok {
		r.mu.Unlock()
		return "", model.Wrap(model.ErrGuideNotFound, "rename_guide", id)
	}
	previous = g.Title
	g.Title = title
	m := r.markLocked(id)
	m.titleGen = r.gen
	m.renaming = true
	r.unlockAndPublish(Event{Kind: EventGuidesChanged, Key: id})
	return previous, nil
}

// ConfirmRename records that the remote store accepted the rename.
func (r *Registry) ConfirmRename(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.markLocked(id)
	m.titleGen = r.gen
	m.renaming = false
}

// RestoreTitle rolls back a failed rename.
func (r *Registry) RestoreTitle(id, previous string) {
	r.mu.Lock()
	m := r.markLocked(id)
	m.titleGen = r.gen
	m.renaming = false
	g, ok := r.guides[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	g.Title = previous
	r.unlockAndPublish(Event{Kind: EventGuidesChanged, Key: id})
}

// =============================================================================
// REMOVE
// =============================================================================

// Removal is the state needed to undo an optimistic Remove.
type Removal struct {
	guide       *model.StudyGuide
	reveal      RevealState
	hadReveal   bool
	wasSelected bool
	blank       *model.StudyGuide
}

// ID returns the removed guide's id.
func (rm *Removal) ID() string {
	return rm.guide.ID
}

// Remove optimistically deletes guide id. If it was selected the registry
// enters new-guide mode.
func (r *Registry) Remove(id string) (*Removal, error) {
	r.mu.Lock()
	g, ok := r.guides[id]
	if !ok {
		r.mu.Unlock()
		return nil, model.Wrap(model.ErrGuideNotFound, "delete_guide", id)
	}
	rm := &Removal{guide: g}
	rm.reveal, rm.hadReveal = r.reveal[id]

	delete(r.guides, id)
	delete(r.reveal, id)
	m := r.markLocked(id)
	m.deletedGen = r.gen
	m.deleting = true

	events := []Event{{Kind: EventGuidesChanged, Key: id}}
	if r.selected == id {
		rm.wasSelected = true
		r.selected = ""
		r.blank = model.NewDraft(r.ownerEmail)
		rm.blank = r.blank
		events = append(events, Event{Kind: EventSelectionChanged})
	}
	r.unlockAndPublish(events...)
	return rm, nil
}

// ConfirmRemove records that the remote store deleted the guide.
func (r *Registry) ConfirmRemove(rm *Removal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.markLocked(rm.ID())
	m.deletedGen = r.gen
	m.deleting = false
}

// Restore re-inserts a guide whose remote deletion failed. The selection is
// restored if the user is still in the untouched new-guide mode that the
// removal entered.
func (r *Registry) Restore(rm *Removal) {
	r.mu.Lock()
	id := rm.ID()
	m := r.markLocked(id)
	m.deletedGen = 0
	m.deleting = false
	m.createdGen = r.gen

	if _, exists := r.guides[id]; exists {
		r.mu.Unlock()
		return
	}
	r.guides[id] = rm.guide
	if rm.hadReveal {
		r.reveal[id] = rm.reveal
	}
	events := []Event{{Kind: EventGuidesChanged, Key: id}}
	if rm.wasSelected && r.selected == "" && r.blank == rm.blank && r.blank.Conversation.IsEmpty() {
		r.selected = id
		events = append(events, Event{Kind: EventSelectionChanged, Key: id})
	}
	r.unlockAndPublish(events...)
}
