// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package study

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manovay/AP-Study-Guide-Generator/internal/controller"
	"github.com/manovay/AP-Study-Guide-Generator/internal/generate"
	"github.com/manovay/AP-Study-Guide-Generator/internal/model"
	"github.com/manovay/AP-Study-Guide-Generator/internal/registry"
	"github.com/manovay/AP-Study-Guide-Generator/internal/remote"
	"github.com/manovay/AP-Study-Guide-Generator/internal/reveal"
	"github.com/manovay/AP-Study-Guide-Generator/internal/service"
	"github.com/manovay/AP-Study-Guide-Generator/internal/storage"
)

const owner = "ada@example.com"

type failingGen struct{}

func (failingGen) Generate(context.Context, generate.Request) (string, error) {
	return "", errors.New("model unavailable")
}

func newTestModel(t *testing.T, gen generate.Generator) Model {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "ui.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := service.New(store, gen)
	_, err = svc.RegisterUser(context.Background(), remote.User{Email: owner, Name: "Ada"})
	require.NoError(t, err)

	ctrl := controller.New(registry.New(owner), svc, controller.Options{
		Timeout: 5 * time.Second,
		Reveal:  reveal.DefaultOptions(),
	})
	t.Cleanup(ctrl.Close)

	m := New(context.Background(), ctrl, Options{GlamourStyle: "notty"})
	t.Cleanup(m.Close)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

// send applies msg and runs any resulting intent synchronously.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd != nil {
		if out := cmd(); out != nil {
			switch out.(type) {
			case intentDoneMsg, cancelledMsg:
				next, _ = m.Update(out)
				m = next.(Model)
			}
		}
	}
	// registry events are coalesced; redraw as the bridge would
	next, _ = m.Update(changedMsg{})
	return next.(Model)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	tab   = tea.KeyMsg{Type: tea.KeyTab}
)

func TestView_Welcome(t *testing.T) {
	m := newTestModel(t, generate.Offline{})
	view := m.View()
	assert.Contains(t, view, "Study Guides")
	assert.Contains(t, view, "Welcome to Tootur")
	assert.Contains(t, view, "+ New guide")
}

func TestView_NotReady(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "ui.db"))
	require.NoError(t, err)
	defer store.Close()
	ctrl := controller.New(registry.New(owner), service.New(store, generate.Offline{}), controller.DefaultOptions())
	defer ctrl.Close()

	m := New(context.Background(), ctrl, Options{GlamourStyle: "notty"})
	defer m.Close()
	assert.Equal(t, "Loading...", m.View())
}

func TestSubmitTopic_CreatesGuide(t *testing.T) {
	m := newTestModel(t, generate.Offline{})

	m.input.SetValue("Photosynthesis")
	m = send(t, m, enter)

	require.Len(t, m.guides, 1)
	assert.Equal(t, "Photosynthesis", m.guides[0].Title)
	assert.Equal(t, m.guides[0].Key, m.reg.Selected())
	assert.Equal(t, 1, m.cursor)
	assert.Empty(t, m.input.Value())
	assert.Equal(t, followUpPlaceholder, m.input.Placeholder)
	assert.Contains(t, m.View(), "Photosynthesis")
}

func TestSubmitFollowUp_AppendsTurn(t *testing.T) {
	m := newTestModel(t, generate.Offline{})
	m.input.SetValue("Photosynthesis")
	m = send(t, m, enter)

	m.input.SetValue("What is the Calvin cycle?")
	m = send(t, m, enter)

	g := m.reg.Current()
	require.Equal(t, 2, g.Conversation.Len())
	turns := g.Conversation.Turns()
	assert.Equal(t, "What is the Calvin cycle?", turns[1].Prompt)
	assert.NotEmpty(t, turns[1].Response)
	assert.Contains(t, m.viewport.View(), "Follow-up")
}

func TestSubmitTopic_FailureRestoresPrompt(t *testing.T) {
	m := newTestModel(t, failingGen{})

	m.input.SetValue("Cell biology")
	m = send(t, m, enter)

	assert.Equal(t, "Cell biology", m.input.Value())
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "try again")
	assert.Empty(t, m.guides)
	assert.Equal(t, "", m.reg.Selected())
}

func TestSubmit_EmptyIgnored(t *testing.T) {
	m := newTestModel(t, generate.Offline{})
	m.input.SetValue("   ")
	next, cmd := m.Update(enter)
	assert.Nil(t, cmd)
	assert.Equal(t, 0, next.(Model).reg.Len())
}

func TestRenameFromSidebar(t *testing.T) {
	m := newTestModel(t, generate.Offline{})
	m.input.SetValue("Photosynthesis")
	m = send(t, m, enter)
	id := m.reg.Selected()

	m.input.SetValue("draft follow-up")
	m = send(t, m, tab)
	require.Equal(t, focusSidebar, m.focus)

	m = send(t, m, runes("r"))
	require.Equal(t, modeRename, m.mode)
	assert.Equal(t, "Photosynthesis", m.input.Value())

	m.input.SetValue("Plant Biology")
	m = send(t, m, enter)

	g, ok := m.reg.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Plant Biology", g.Title)
	assert.Equal(t, modePrompt, m.mode)
	assert.Equal(t, "draft follow-up", m.input.Value())
	assert.Equal(t, "Guide renamed", m.status)
}

func TestRename_EmptyTitleRejected(t *testing.T) {
	m := newTestModel(t, generate.Offline{})
	m.input.SetValue("Photosynthesis")
	m = send(t, m, enter)
	id := m.reg.Selected()

	m = send(t, m, tab)
	m = send(t, m, runes("r"))
	m.input.SetValue("  ")
	m = send(t, m, enter)

	g, _ := m.reg.Get(id)
	assert.Equal(t, "Photosynthesis", g.Title)
	assert.Equal(t, "Title cannot be empty", m.status)
}

func TestDeleteWithConfirmation(t *testing.T) {
	m := newTestModel(t, generate.Offline{})
	m.input.SetValue("Photosynthesis")
	m = send(t, m, enter)

	m = send(t, m, tab)
	m = send(t, m, runes("d"))
	require.Equal(t, modeConfirmDelete, m.mode)
	assert.Contains(t, m.View(), `Delete "Photosynthesis"?`)

	// anything but y cancels
	m = send(t, m, runes("n"))
	assert.Equal(t, 1, m.reg.Len())
	assert.Equal(t, "Delete cancelled", m.status)

	m = send(t, m, runes("d"))
	m = send(t, m, runes("y"))
	assert.Equal(t, 0, m.reg.Len())
	assert.Empty(t, m.guides)
	assert.Equal(t, "", m.reg.Selected())
}

func TestSidebarNavigation(t *testing.T) {
	m := newTestModel(t, generate.Offline{})
	for _, topic := range []string{"Algebra", "Geometry"} {
		m.ctrl.SelectNew()
		m.input.SetValue(topic)
		m = send(t, m, enter)
	}
	require.Len(t, m.guides, 2)

	m = send(t, m, tab)
	m = send(t, m, runes("k"))
	m = send(t, m, runes("k"))
	assert.Equal(t, 0, m.cursor)

	m = send(t, m, enter)
	assert.Equal(t, "", m.reg.Selected())
	assert.Equal(t, focusInput, m.focus)

	m = send(t, m, tab)
	m = send(t, m, runes("j"))
	m = send(t, m, runes("j"))
	m = send(t, m, enter)
	assert.Equal(t, m.guides[1].Key, m.reg.Selected())
}

func TestBridgeCoalesces(t *testing.T) {
	reg := registry.New(owner)
	b := newBridge(reg)
	defer b.close()

	b.observe(registry.Event{Kind: registry.EventGuidesChanged})
	b.observe(registry.Event{Kind: registry.EventLedgerChanged})
	assert.Len(t, b.signal, 1)
	assert.Equal(t, changedMsg{}, b.wait()())

	b.close()
	assert.Nil(t, b.wait()())
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{model.Wrap(model.ErrEmptyTitle, "rename_guide", "x"), "Title cannot be empty"},
		{model.Wrap(model.ErrPendingTurnExists, "submit_follow_up", "x"), "Still generating the previous answer"},
		{model.NewError(model.KindRemote, "refresh", "request timed out", nil), "Could not reach the study guide service: request timed out (try again)"},
		{errors.New("boom"), "Error: boom"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, describeError(tt.err))
	}
}
