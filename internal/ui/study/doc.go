// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package study provides the interactive study guide screen.
//
// The screen has three parts: the guide list, the open conversation and the
// prompt input. Submitting in new-guide mode creates a guide; submitting
// with a guide open asks a follow-up. Controller calls run as Bubble Tea
// commands and the screen redraws from the registry whenever it publishes
// an event, so optimistic updates and rollbacks show up without extra
// bookkeeping here.
//
// # Usage
//
//	m := study.New(ctx, ctrl, study.Options{Animate: true, RefreshOnStart: true})
//	defer m.Close()
//	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
package study
