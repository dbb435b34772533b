// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manovay/AP-Study-Guide-Generator/internal/app"
	"github.com/manovay/AP-Study-Guide-Generator/internal/remote"
)

func newUserCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Register or look up the user that owns the guides",
	}
	cmd.AddCommand(newUserRegisterCmd(opts), newUserCheckCmd(opts))
	return cmd
}

// userRegistrar returns the registrar behind a's remote.
func userRegistrar(a *app.App) (remote.UserRegistrar, error) {
	ur, ok := a.Remote.(remote.UserRegistrar)
	if !ok {
		return nil, fmt.Errorf("this store does not manage users")
	}
	return ur, nil
}

func newUserRegisterCmd(opts *globalOptions) *cobra.Command {
	var (
		name      string
		role      string
		education string
		purpose   string
		save      bool
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register the configured user with the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if name != "" {
				cfg.User.Name = name
			}
			if role != "" {
				cfg.User.Role = role
			}
			if education != "" {
				cfg.User.EducationLevel = education
			}
			if purpose != "" {
				cfg.User.UsagePurpose = purpose
			}

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			ur, err := userRegistrar(a)
			if err != nil {
				return err
			}

			u := cfg.User
			created, err := ur.RegisterUser(cmd.Context(), remote.User{
				Email:          u.Email,
				Name:           u.Name,
				Role:           u.Role,
				EducationLevel: u.EducationLevel,
				UsagePurpose:   u.UsagePurpose,
			})
			if err != nil {
				return err
			}

			if save {
				path, err := configFilePath(opts)
				if err != nil {
					return err
				}
				fileCfg, err := loadConfigFile(path)
				if err != nil {
					return err
				}
				fileCfg.User = cfg.User
				if err := saveConfigFile(fileCfg, path); err != nil {
					return err
				}
			}

			if opts.jsonOut {
				return writeJSON(cmd, "user register", map[string]any{"email": u.Email, "created": created})
			}
			msg := "Already registered"
			if created {
				msg = "Registered"
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(msg), u.Email)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "display name")
	f.StringVar(&role, "role", "", "role, e.g. student or teacher")
	f.StringVar(&education, "education", "", "education level")
	f.StringVar(&purpose, "purpose", "", "what the guides are for")
	f.BoolVar(&save, "save", false, "also store the profile in the config file")
	return cmd
}

func newUserCheckCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report whether the configured user exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			ur, err := userRegistrar(a)
			if err != nil {
				return err
			}

			exists, err := ur.CheckUser(cmd.Context(), cfg.User.Email)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd, "user check", map[string]any{"email": cfg.User.Email, "exists": exists})
			}
			if !exists {
				return &NotFoundError{Resource: "user", ID: cfg.User.Email}
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Registered"), cfg.User.Email)
			return nil
		},
	}
}
