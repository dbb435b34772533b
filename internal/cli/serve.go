// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manovay/AP-Study-Guide-Generator/internal/app"
	"github.com/manovay/AP-Study-Guide-Generator/internal/config"
	"github.com/manovay/AP-Study-Guide-Generator/internal/logger"
	"github.com/manovay/AP-Study-Guide-Generator/internal/server"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the study guide HTTP API",
		Long: `Serve the study guide API over HTTP using the local database and the
configured LLM provider. Other tootur clients reach it with remote.mode
"http".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			svc, store, err := app.NewBackend(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			srv := server.New(svc, server.Config{
				Addr:           cfg.Server.Addr,
				CORSOrigins:    cfg.Server.CORSOrigins,
				RateLimit:      cfg.Server.RateLimit,
				RateBurst:      cfg.Server.RateBurst,
				RequestTimeout: cfg.RequestTimeout(),
				MaxBodyBytes:   cfg.Server.MaxBodyBytes,
			})
			if path, err := configFilePath(opts); err == nil && fileExists(path) {
				go watchLogLevel(cmd.Context(), path)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s listening on http://%s (database %s)\n",
				SuccessStyle.Render("tootur"), srv.Addr(), store.Path())
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	return cmd
}

// watchLogLevel applies log.debug changes in the config file while the
// server runs. Other settings need a restart.
func watchLogLevel(ctx context.Context, path string) {
	log := logger.WithComponent("serve")
	err := config.Watch(ctx, path, func(cfg *config.Config, err error) {
		if err != nil {
			log.Warn("config reload failed", "path", path, "error", err)
			return
		}
		logger.SetDebug(cfg.Log.Debug)
		log.Info("config reloaded", "path", path, "debug", cfg.Log.Debug)
	})
	if err != nil {
		log.Warn("config watch stopped", "path", path, "error", err)
	}
}
