// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for study guides and their
// conversations.
//
// # Key Types
//
//   - StudyGuide: one topic conversation owned by a user, saved or draft
//   - Ledger: ordered, append-only log of turns with a pending marker
//   - Turn: a single prompt/response exchange
//   - Error: typed engine error with Validation, Remote, InvalidState and
//     StaleResponse kinds
//
// # Usage
//
// Seed a draft and resolve its first turn:
//
//	g := model.NewDraft("ada@example.com")
//	seq, err := g.Conversation.AppendPending("Photosynthesis")
//	...
//	err = g.Conversation.ResolveSeq(seq, response)
//
// A second AppendPending before the first resolves fails with
// ErrPendingTurnExists and leaves the ledger untouched.
package model
