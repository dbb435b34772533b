// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package generate produces study guide text from a topic or follow-up
// question.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Default model settings.
const (
	DefaultModel        = "gpt-4o-mini"
	DefaultSystemPrompt = "You are a helpful assistant for generating study guides."
	promptPrefix        = "Create a study guide for: "
)

// Providers accepted by New.
const (
	ProviderOpenAI  = "openai"
	ProviderOffline = "offline"
)

// ErrEmptyResponse is returned when the model produced no content.
var ErrEmptyResponse = errors.New("generate: empty response")

// Exchange is one earlier prompt/response pair of the conversation.
type Exchange struct {
	Prompt   string
	Response string
}

// Request asks for a response to Prompt in the context of History.
type Request struct {
	Prompt  string
	History []Exchange
}

// Generator turns a request into study guide markdown.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Settings configures a generator.
type Settings struct {
	Provider     string
	Model        string
	APIKey       string
	BaseURL      string
	SystemPrompt string
}

// New returns the generator named by s.Provider.
func New(s Settings) (Generator, error) {
	switch strings.ToLower(s.Provider) {
	case "", ProviderOpenAI:
		return NewOpenAI(s)
	case ProviderOffline:
		return Offline{}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", s.Provider)
	}
}

// UserContent renders the request as the single user message sent to the
// model. Follow-ups carry the prior conversation as a transcript:
//
//	User: <prompt>
//	AI: <response>
//	User: <new prompt>
//	AI:
func UserContent(req Request) string {
	if len(req.History) == 0 {
		return promptPrefix + req.Prompt
	}
	lines := make([]string, 0, len(req.History))
	for _, h := range req.History {
		lines = append(lines, "User: "+h.Prompt+"\nAI: "+h.Response)
	}
	return promptPrefix + strings.Join(lines, "\n") + "\nUser: " + req.Prompt + "\nAI:"
}
