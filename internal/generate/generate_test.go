// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserContent_FirstTurn(t *testing.T) {
	got := UserContent(Request{Prompt: "Photosynthesis"})
	assert.Equal(t, "Create a study guide for: Photosynthesis", got)
}

func TestUserContent_FollowUp(t *testing.T) {
	got := UserContent(Request{
		Prompt: "Explain the Calvin cycle",
		History: []Exchange{
			{Prompt: "Photosynthesis", Response: "Light to sugar."},
			{Prompt: "Chlorophyll?", Response: "A pigment."},
		},
	})
	want := "Create a study guide for: " +
		"User: Photosynthesis\nAI: Light to sugar.\n" +
		"User: Chlorophyll?\nAI: A pigment.\n" +
		"User: Explain the Calvin cycle\nAI:"
	assert.Equal(t, want, got)
}

func TestNew_Providers(t *testing.T) {
	g, err := New(Settings{Provider: "offline"})
	require.NoError(t, err)
	assert.IsType(t, Offline{}, g)

	_, err = New(Settings{Provider: "openai"})
	assert.Error(t, err, "openai without key should fail")

	g, err = New(Settings{Provider: "OpenAI", APIKey: "sk-test"})
	require.NoError(t, err)
	o, ok := g.(*OpenAI)
	require.True(t, ok)
	assert.Equal(t, DefaultModel, o.Model())

	_, err = New(Settings{Provider: "ollama"})
	assert.Error(t, err)
}

func TestOffline_Generate(t *testing.T) {
	out, err := Offline{}.Generate(context.Background(), Request{Prompt: "cell division"})
	require.NoError(t, err)
	assert.Contains(t, out, "# Study Guide: cell division")
	assert.Contains(t, out, "- division")

	out, err = Offline{}.Generate(context.Background(), Request{
		Prompt:  "more",
		History: []Exchange{{Prompt: "cells", Response: "..."}},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "# Study Guide: cells")
	assert.Contains(t, out, "Follow-up 1: more")
}

func TestOffline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Offline{}.Generate(ctx, Request{Prompt: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}
