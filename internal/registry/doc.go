// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry holds a user's set of study guides in memory.
//
// The Registry tracks saved guides by id, drafts whose create request is
// still in flight, the open guide, and the reveal cursor of each guide's
// newest response. Rename and Remove are optimistic and return the state
// needed to roll back. Bulk fetches are applied with last-fetch-wins rules:
// a fetch that began before a local rename or delete cannot undo it.
//
// The UI observes the registry with Subscribe; events are delivered after
// the internal lock is released.
package registry
