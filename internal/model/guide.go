// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// STUDY GUIDE TYPE
// =============================================================================

// StudyGuide is one study-topic conversation owned by a user.
//
// A guide with an empty ID is unsaved. It is addressed by LocalKey until the
// remote store assigns an ID on the first successful response.
type StudyGuide struct {
	ID         string
	LocalKey   string
	Title      string
	OwnerEmail string

	Conversation *Ledger

	CreatedAt time.Time
	UpdatedAt time.Time

	// Loaded is false when only the summary has been fetched.
	Loaded bool
}

// NewDraft creates an unsaved guide with an empty ledger.
func NewDraft(ownerEmail string) *StudyGuide {
	now := time.Now()
	return &StudyGuide{
		LocalKey:     "draft_" + uuid.NewString(),
		OwnerEmail:   ownerEmail,
		Conversation: NewLedger(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Loaded:       true,
	}
}

// Key returns the identifier used for serialization and reveal state: the
// remote ID once saved, the local draft key before that.
func (g *StudyGuide) Key() string {
	if g.ID != "" {
		return g.ID
	}
	return g.LocalKey
}

// IsSaved reports whether the remote store has assigned an ID.
func (g *StudyGuide) IsSaved() bool {
	return g.ID != ""
}

// GetTitle returns the guide title or a default.
func (g *StudyGuide) GetTitle() string {
	if g.Title != "" {
		return g.Title
	}
	return "New Study Guide"
}

// Touch records a modification.
func (g *StudyGuide) Touch() {
	g.UpdatedAt = time.Now()
}

// Clone creates a deep copy of the guide.
func (g *StudyGuide) Clone() *StudyGuide {
	clone := *g
	if g.Conversation != nil {
		clone.Conversation = g.Conversation.Clone()
	} else {
		clone.Conversation = NewLedger()
	}
	return &clone
}

// Summary returns lightweight metadata for listing.
func (g *StudyGuide) Summary() Summary {
	s := Summary{
		ID:        g.ID,
		Key:       g.Key(),
		Title:     g.GetTitle(),
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
		Loaded:    g.Loaded,
	}
	if g.Conversation != nil {
		s.TurnCount = g.Conversation.Len()
		s.Pending = g.Conversation.HasPending()
		if first, ok := g.firstTurn(); ok {
			s.Preview = Preview(first.Prompt, 80)
		}
	}
	return s
}

func (g *StudyGuide) firstTurn() (Turn, bool) {
	turns := g.Conversation.Turns()
	if len(turns) == 0 {
		return Turn{}, false
	}
	return turns[0], true
}

// Summary holds lightweight guide metadata for the sidebar and CLI listing.
type Summary struct {
	ID        string    `json:"id"`
	Key       string    `json:"-"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	TurnCount int       `json:"turn_count"`
	Pending   bool      `json:"pending"`
	Loaded    bool      `json:"-"`
	Preview   string    `json:"preview"`
}
