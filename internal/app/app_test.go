// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manovay/AP-Study-Guide-Generator/internal/config"
	"github.com/manovay/AP-Study-Guide-Generator/internal/generate"
	"github.com/manovay/AP-Study-Guide-Generator/internal/remote"
	"github.com/manovay/AP-Study-Guide-Generator/internal/reveal"
	"github.com/manovay/AP-Study-Guide-Generator/internal/server"
	"github.com/manovay/AP-Study-Guide-Generator/internal/service"
	"github.com/manovay/AP-Study-Guide-Generator/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("TOOTUR_HOME", t.TempDir())
	cfg := config.Default()
	cfg.User.Email = "ada@example.com"
	cfg.User.Name = "Ada"
	cfg.LLM.Provider = "offline"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "app.db")
	cfg.SetDefaults()
	return cfg
}

func TestNew_RequiresUser(t *testing.T) {
	cfg := testConfig(t)
	cfg.User.Email = ""
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "carrier-pigeon"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestLocalSession(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.Local)

	ctx := context.Background()
	require.NoError(t, a.Start(ctx))

	exists, err := a.Local.CheckUser(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	g, err := a.Controller.SubmitTopic(ctx, "Mitosis phases")
	require.NoError(t, err)
	assert.Equal(t, "Mitosis phases", g.Title)
	assert.Equal(t, 1, a.Registry.Len())

	found, err := a.Search(ctx, "mitosis")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, g.ID, found[0].ID)
}

func TestNew_HTTPMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.Mode = config.ModeHTTP
	cfg.Remote.URL = "http://127.0.0.1:1"

	a, err := New(cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Local)
	client, ok := a.Remote.(*remote.Client)
	require.True(t, ok)
	assert.Equal(t, "http://127.0.0.1:1", client.BaseURL())
}

func TestControllerOptions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.TimeoutSecs = 30
	cfg.Reveal.Granularity = "word"
	cfg.Reveal.Rate = 3
	cfg.Reveal.IntervalMs = 25

	opts := ControllerOptions(cfg)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, reveal.Word, opts.Reveal.Granularity)
	assert.Equal(t, 3, opts.Reveal.Rate)
	assert.Equal(t, 25*time.Millisecond, opts.RevealInterval)

	cfg.Reveal.Enabled = false
	assert.Zero(t, ControllerOptions(cfg).RevealInterval)
}

func TestFilterGuides(t *testing.T) {
	recs := []remote.GuideRecord{
		{ID: "1", Title: "Algebra"},
		{ID: "2", Title: "Notes", Content: "Legacy ALGEBRA content"},
		{ID: "3", Title: "Cells", Conversation: []remote.TurnRecord{{UserPrompt: "mitosis", Response: "phases"}}},
	}
	assert.Len(t, FilterGuides(recs, "algebra"), 2)
	got := FilterGuides(recs, "Phases")
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].ID)
	assert.Len(t, FilterGuides(recs, ""), 3)
}

func TestFollow_RefreshesOnRemoteChange(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	defer store.Close()
	srv := server.New(service.New(store, generate.Offline{}), server.Config{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	cfg := testConfig(t)
	cfg.Remote.Mode = config.ModeHTTP
	cfg.Remote.URL = ts.URL
	a, err := New(cfg)
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))
	assert.Zero(t, a.Registry.Len())

	done := make(chan struct{})
	go func() {
		a.Follow(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return srv.Hub().Subscribers(cfg.User.Email) == 1 },
		2*time.Second, 10*time.Millisecond)

	// another device creates a guide
	other := remote.NewClient(ts.URL)
	rec, err := other.CreateGuide(ctx, cfg.User.Email, "Plate tectonics")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := a.Registry.Get(rec.ID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}
}

func TestFollow_LocalModeReturns(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)
	defer a.Close()
	a.Follow(context.Background())
}
