// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package controller keeps the registry in sync with the remote guide
// store.
//
// Each intent (SubmitTopic, SubmitFollowUp, SelectGuide, RenameGuide,
// DeleteGuide, Refresh, CancelPending) applies its change to the registry
// first and then calls the remote. Success reconciles with the server's
// values; failure rolls the change back and returns a *model.Error of kind
// Remote. Responses for turns that were cancelled or timed out are detected
// by sequence number and discarded.
//
// The controller also owns the reveal player that drives the typing effect
// of the open guide's newest response.
package controller
