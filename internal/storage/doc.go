// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides study guide persistence for the tootur server.
//
// Users, guides and conversation turns live in a single SQLite database
// opened with the pure Go modernc.org/sqlite driver.
//
// # Key Types
//
//   - Store: database handle, safe for concurrent use
//   - Guide: a stored guide with its ordered turns
//   - User: a registered account
//
// # Usage
//
//	store, err := storage.Open(filepath.Join(dataDir, "tootur.db"))
//	g, err := store.CreateGuide(ctx, email, title, []storage.Turn{first})
//	err = store.AppendTurn(ctx, email, g.ID, next)
//	guides, err := store.ListGuides(ctx, email)
//
// Lookups of unknown users or guides fail with ErrUserNotFound and
// ErrGuideNotFound respectively.
//
// # Legacy Guides
//
// Guides imported with a single title/content body are read back as a
// one-turn conversation. The first AppendTurn on such a guide stores that
// turn for real.
package storage
