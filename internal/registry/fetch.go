// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import "github.com/manovay/AP-Study-Guide-Generator/internal/model"

// =============================================================================
// LAST-FETCH-WINS
// =============================================================================

// mutation records when a guide was last changed locally, measured on the
// registry's generation counter. A fetch that started at generation G must
// not overwrite anything changed after G, nor anything still in flight.
type mutation struct {
	titleGen   uint64
	ledgerGen  uint64
	createdGen uint64
	deletedGen uint64

	renaming bool
	deleting bool
}

func (m *mutation) settledBy(gen uint64) bool {
	if m.renaming || m.deleting {
		return false
	}
	return m.titleGen <= gen && m.ledgerGen <= gen && m.createdGen <= gen && m.deletedGen <= gen
}

// markLocked advances the generation and returns the journal entry for id.
func (r *Registry) markLocked(id string) *mutation {
	r.gen++
	m, ok := r.journal[id]
	if !ok {
		m = &mutation{}
		r.journal[id] = m
	}
	return m
}

// FetchToken identifies one bulk fetch.
type FetchToken struct {
	seq      uint64
	startGen uint64
}

// BeginFetch must be called before the remote list request is issued.
func (r *Registry) BeginFetch() FetchToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchSeq++
	return FetchToken{seq: r.fetchSeq, startGen: r.gen}
}

// ApplyFetch replaces the saved guide set with a fetch result.
//
// A fetch older than one already applied is discarded with ErrStaleResponse.
// Otherwise the result wins except where the user changed something after
// the fetch began: deleted guides stay deleted, renamed guides keep their
// local title, guides with a pending or newer local conversation keep it,
// and guides created locally since are kept even if the result lacks them.
func (r *Registry) ApplyFetch(tok FetchToken, fetched []*model.StudyGuide) error {
	r.mu.Lock()
	if tok.seq <= r.appliedFetch {
		r.mu.Unlock()
		return model.Wrap(model.ErrStaleResponse, "refresh", "")
	}
	r.appliedFetch = tok.seq

	next := make(map[string]*model.StudyGuide, len(fetched))
	for _, f := range fetched {
		if f == nil || f.ID == "" {
			continue
		}
		if _, dup := next[f.ID]; dup {
			continue
		}
		m := r.journal[f.ID]
		if m != nil && (m.deleting || m.deletedGen > tok.startGen) {
			continue
		}
		if f.Conversation == nil {
			f.Conversation = model.NewLedger()
		}
		cur, ok := r.guides[f.ID]
		if !ok {
			next[f.ID] = f
			continue
		}
		if m != nil && (m.renaming || m.titleGen > tok.startGen) {
			f.Title = cur.Title
		}
		keepLedger := cur.Conversation.HasPending() ||
			(m != nil && m.ledgerGen > tok.startGen) ||
			(cur.Loaded && !f.Loaded)
		if keepLedger {
			f.Conversation = cur.Conversation
			f.Loaded = cur.Loaded
			if cur.UpdatedAt.After(f.UpdatedAt) {
				f.UpdatedAt = cur.UpdatedAt
			}
		}
		next[f.ID] = f
	}

	for id, cur := range r.guides {
		if _, ok := next[id]; ok {
			continue
		}
		m := r.journal[id]
		if cur.Conversation.HasPending() || (m != nil && (m.renaming || m.createdGen > tok.startGen)) {
			next[id] = cur
		}
	}
	r.guides = next

	for id, m := range r.journal {
		if m.settledBy(tok.startGen) {
			delete(r.journal, id)
		}
	}
	for key := range r.reveal {
		if r.lookupLocked(key) == nil {
			delete(r.reveal, key)
		}
	}

	events := []Event{{Kind: EventGuidesChanged}}
	if r.selected != "" && r.lookupLocked(r.selected) == nil {
		r.selected = ""
		r.blank = model.NewDraft(r.ownerEmail)
		events = append(events, Event{Kind: EventSelectionChanged})
	} else if r.selected != "" {
		events = append(events, Event{Kind: EventLedgerChanged, Key: r.selected})
	}
	r.unlockAndPublish(events...)
	return nil
}
