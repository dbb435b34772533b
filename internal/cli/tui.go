// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/manovay/AP-Study-Guide-Generator/internal/app"
	"github.com/manovay/AP-Study-Guide-Generator/internal/logger"
	"github.com/manovay/AP-Study-Guide-Generator/internal/remote"
	"github.com/manovay/AP-Study-Guide-Generator/internal/ui/study"
)

// runTUI opens the interactive screen. The guide list is loaded by the
// screen itself so a slow store does not delay startup.
func runTUI(cmd *cobra.Command, opts *globalOptions) error {
	if !IsTTY() || !IsStdoutTTY() {
		return usageErrorf("the interactive screen needs a terminal; use 'tootur ask' or 'tootur guides' instead")
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if cfg.Log.Path == logger.Stderr {
		return usageErrorf("log.path \"-\" would draw over the screen; set a log file")
	}
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	u := cfg.User
	if err := a.Controller.RegisterUser(ctx, remote.User{
		Email:          u.Email,
		Name:           u.Name,
		Role:           u.Role,
		EducationLevel: u.EducationLevel,
		UsagePurpose:   u.UsagePurpose,
	}); err != nil {
		return err
	}

	go a.Follow(ctx)

	m := study.New(ctx, a.Controller, study.Options{
		Animate:        cfg.Reveal.Enabled,
		GlamourStyle:   "auto",
		RefreshOnStart: true,
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("interactive screen: %w", err)
	}
	return nil
}
