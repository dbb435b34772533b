// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/manovay/AP-Study-Guide-Generator/internal/config"
	"github.com/manovay/AP-Study-Guide-Generator/internal/controller"
	"github.com/manovay/AP-Study-Guide-Generator/internal/generate"
	"github.com/manovay/AP-Study-Guide-Generator/internal/logger"
	"github.com/manovay/AP-Study-Guide-Generator/internal/registry"
	"github.com/manovay/AP-Study-Guide-Generator/internal/remote"
	"github.com/manovay/AP-Study-Guide-Generator/internal/reveal"
	"github.com/manovay/AP-Study-Guide-Generator/internal/service"
	"github.com/manovay/AP-Study-Guide-Generator/internal/storage"
)

// ErrNoUser is returned when a command needs user.email and none is set.
var ErrNoUser = errors.New("no user configured: set user.email or pass --email")

// App is a fully wired client session: the remote store of record, the
// local registry mirroring it and the controller driving both.
type App struct {
	Config     *config.Config
	Remote     remote.Remote
	Registry   *registry.Registry
	Controller *controller.Controller

	// Local is the in-process service in local mode, nil in http mode.
	Local *service.Service

	store *storage.Store
	log   *slog.Logger
}

// New wires an App from cfg. cfg.User.Email must be set.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.RequireUser(); err != nil {
		return nil, ErrNoUser
	}

	a := &App{Config: cfg, log: logger.WithComponent("app")}
	switch strings.ToLower(cfg.Remote.Mode) {
	case config.ModeHTTP:
		a.Remote = NewClient(cfg)
	default:
		svc, store, err := NewBackend(cfg)
		if err != nil {
			return nil, err
		}
		a.Local, a.store, a.Remote = svc, store, svc
	}

	a.Registry = registry.New(cfg.User.Email)
	a.Controller = controller.New(a.Registry, a.Remote, ControllerOptions(cfg))
	a.log.Debug("app wired", "mode", cfg.Remote.Mode, "user", cfg.User.Email)
	return a, nil
}

// Start registers the configured user with the remote and loads the guide
// list.
func (a *App) Start(ctx context.Context) error {
	u := a.Config.User
	if err := a.Controller.RegisterUser(ctx, remote.User{
		Email:          u.Email,
		Name:           u.Name,
		Role:           u.Role,
		EducationLevel: u.EducationLevel,
		UsagePurpose:   u.UsagePurpose,
	}); err != nil {
		return err
	}
	return a.Controller.Refresh(ctx)
}

// Close stops reveal timers and closes the local database.
func (a *App) Close() error {
	a.Controller.Close()
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// NewBackend opens the database and generator named in cfg. The caller
// closes the returned store.
func NewBackend(cfg *config.Config) (*service.Service, *storage.Store, error) {
	gen, err := generate.New(generate.Settings{
		Provider:     cfg.LLM.Provider,
		Model:        cfg.LLM.Model,
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		SystemPrompt: cfg.LLM.SystemPrompt,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("generator: %w", err)
	}
	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}
	return service.New(store, gen), store, nil
}

// NewClient returns the HTTP client for cfg.Remote.
func NewClient(cfg *config.Config) *remote.Client {
	c := remote.NewClient(cfg.Remote.URL).WithMaxRetries(cfg.Remote.MaxRetries)
	if cfg.Remote.RateLimit > 0 {
		c = c.WithRateLimit(cfg.Remote.RateLimit, max(1, int(cfg.Remote.RateLimit)))
	}
	return c
}

// ControllerOptions maps cfg to controller options. A disabled reveal gets
// a zero interval, leaving frames to be pulled.
func ControllerOptions(cfg *config.Config) controller.Options {
	opts := controller.DefaultOptions()
	opts.Timeout = cfg.RemoteTimeout()
	if g, err := reveal.ParseGranularity(cfg.Reveal.Granularity); err == nil {
		opts.Reveal.Granularity = g
	}
	if cfg.Reveal.Rate > 0 {
		opts.Reveal.Rate = cfg.Reveal.Rate
	}
	opts.RevealInterval = cfg.RevealInterval()
	if !cfg.Reveal.Enabled {
		opts.RevealInterval = 0
	}
	return opts
}

// followBackoff bounds reconnect delays of Follow.
const (
	followMinBackoff = time.Second
	followMaxBackoff = 30 * time.Second
)

// Follow keeps the registry in step with changes other clients make. In
// http mode it subscribes to the server's change feed and refreshes on each
// notice, reconnecting with backoff. In local mode there is nobody else and
// it returns at once. Follow blocks until ctx is done.
func (a *App) Follow(ctx context.Context) {
	client, ok := a.Remote.(*remote.Client)
	if !ok {
		return
	}
	wait := followMinBackoff
	for ctx.Err() == nil {
		connected := time.Now()
		err := client.Watch(ctx, a.Config.User.Email, func(n remote.ChangeNotice) {
			a.log.Debug("change notice", "type", n.Type, "guideID", n.StudyGuideID)
			if err := a.Controller.Refresh(ctx); err != nil && ctx.Err() == nil {
				a.log.Warn("refresh after change notice failed", "error", err)
			}
		})
		if ctx.Err() != nil {
			return
		}
		if time.Since(connected) > followMaxBackoff {
			wait = followMinBackoff
		}
		a.log.Debug("change feed disconnected", "error", err, "retryIn", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		wait = min(wait*2, followMaxBackoff)
	}
}

// Search returns the user's guides matching query. Local mode searches the
// database; http mode filters the fetched list.
func (a *App) Search(ctx context.Context, query string) ([]remote.GuideRecord, error) {
	if a.Local != nil {
		return a.Local.SearchGuides(ctx, a.Config.User.Email, query)
	}
	recs, err := a.Remote.FetchGuides(ctx, a.Config.User.Email)
	if err != nil {
		return nil, err
	}
	return FilterGuides(recs, query), nil
}

// FilterGuides keeps records whose title, content or turns contain query,
// ignoring case.
func FilterGuides(recs []remote.GuideRecord, query string) []remote.GuideRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return recs
	}
	contains := func(s string) bool { return strings.Contains(strings.ToLower(s), q) }

	var out []remote.GuideRecord
	for _, rec := range recs {
		match := contains(rec.Title) || contains(rec.Content)
		for _, t := range rec.Conversation {
			if match {
				break
			}
			match = contains(t.UserPrompt) || contains(t.Response)
		}
		if match {
			out = append(out, rec)
		}
	}
	return out
}
