// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package remote defines the contract with the guide store and an HTTP
// client for the tootur API.
//
// The controller is the only caller of a Remote. Two implementations exist:
// Client, which talks to a running "tootur serve", and service.Service,
// which runs generation and storage in process.
package remote

import (
	"context"
	"time"

	"github.com/manovay/AP-Study-Guide-Generator/internal/model"
)

// Remote is the store of record for study guides. Every method may fail with
// a transport error or a non-success status; callers treat both the same.
type Remote interface {
	// FetchGuides returns all guides of ownerEmail.
	FetchGuides(ctx context.Context, ownerEmail string) ([]GuideRecord, error)

	// CreateGuide generates the first response for prompt and saves a new
	// guide with it.
	CreateGuide(ctx context.Context, ownerEmail, prompt string) (GuideRecord, error)

	// AppendTurn generates a follow-up response and stores the turn.
	AppendTurn(ctx context.Context, guideID, ownerEmail, prompt string) (string, error)

	// RenameGuide changes a guide's title.
	RenameGuide(ctx context.Context, guideID, ownerEmail, newTitle string) error

	// DeleteGuide removes a guide.
	DeleteGuide(ctx context.Context, guideID, ownerEmail string) error
}

// UserRegistrar is implemented by remotes that manage user records.
type UserRegistrar interface {
	// RegisterUser creates the user. created is false if it already existed.
	RegisterUser(ctx context.Context, user User) (created bool, err error)

	// CheckUser reports whether a user with email exists.
	CheckUser(ctx context.Context, email string) (bool, error)
}

// =============================================================================
// RECORDS
// =============================================================================

// TurnRecord is a stored prompt/response pair.
type TurnRecord struct {
	UserPrompt string `json:"user_prompt"`
	Response   string `json:"response"`
}

// GuideRecord is a stored guide. Conversation is nil when only the summary
// was returned. Content is set only by guides saved before conversations
// existed.
type GuideRecord struct {
	ID           string       `json:"_id"`
	Title        string       `json:"title"`
	Conversation []TurnRecord `json:"conversation"`
	Content      string       `json:"content,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at,omitempty"`
}

// User is a registered account.
type User struct {
	Email          string    `json:"email"`
	Name           string    `json:"name,omitempty"`
	Role           string    `json:"role,omitempty"`
	EducationLevel string    `json:"educationLevel,omitempty"`
	UsagePurpose   string    `json:"usagePurpose,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

// UpgradeLegacy converts a title/content guide into a one-turn conversation.
// Records that already have a conversation are returned unchanged.
func UpgradeLegacy(rec GuideRecord) GuideRecord {
	if rec.Conversation != nil || rec.Content == "" {
		return rec
	}
	rec.Conversation = []TurnRecord{{UserPrompt: rec.Title, Response: rec.Content}}
	rec.Content = ""
	return rec
}

// ToGuide converts a record into a model guide owned by ownerEmail.
func ToGuide(rec GuideRecord, ownerEmail string) *model.StudyGuide {
	rec = UpgradeLegacy(rec)
	g := &model.StudyGuide{
		ID:           rec.ID,
		Title:        rec.Title,
		OwnerEmail:   ownerEmail,
		Conversation: model.NewLedger(),
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
		Loaded:       rec.Conversation != nil,
	}
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = rec.CreatedAt
	}
	_ = g.Conversation.ReplaceAll(ToTurns(rec.Conversation))
	return g
}

// ToTurns converts stored turns into complete model turns.
func ToTurns(recs []TurnRecord) []model.Turn {
	turns := make([]model.Turn, len(recs))
	for i, r := range recs {
		turns[i] = model.Turn{Prompt: r.UserPrompt, Response: r.Response, Status: model.TurnComplete}
	}
	return turns
}

// FromTurns converts complete model turns into records. Pending and failed
// turns are skipped.
func FromTurns(turns []model.Turn) []TurnRecord {
	out := make([]TurnRecord, 0, len(turns))
	for _, t := range turns {
		if t.Status != model.TurnComplete {
			continue
		}
		out = append(out, TurnRecord{UserPrompt: t.Prompt, Response: t.Response})
	}
	return out
}
