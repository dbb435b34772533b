// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package service implements study guide operations over a store and a
// generator. It backs the HTTP server and also satisfies remote.Remote so
// the engine can run without a server.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/manovay/AP-Study-Guide-Generator/internal/generate"
	"github.com/manovay/AP-Study-Guide-Generator/internal/logger"
	"github.com/manovay/AP-Study-Guide-Generator/internal/model"
	"github.com/manovay/AP-Study-Guide-Generator/internal/remote"
	"github.com/manovay/AP-Study-Guide-Generator/internal/storage"
)

// ErrInvalidArgument wraps input rejected before touching the store.
var ErrInvalidArgument = errors.New("invalid argument")

// Service ties persistence to generation.
type Service struct {
	store *storage.Store
	gen   generate.Generator
	log   *slog.Logger
}

var (
	_ remote.Remote        = (*Service)(nil)
	_ remote.UserRegistrar = (*Service)(nil)
)

// New creates a service.
func New(store *storage.Store, gen generate.Generator) *Service {
	return &Service{
		store: store,
		gen:   gen,
		log:   logger.WithComponent("service"),
	}
}

// Store returns the backing store.
func (s *Service) Store() *storage.Store {
	return s.store
}

// =============================================================================
// GUIDES
// =============================================================================

// FetchGuides returns every guide of ownerEmail with its conversation.
func (s *Service) FetchGuides(ctx context.Context, ownerEmail string) ([]remote.GuideRecord, error) {
	guides, err := s.store.ListGuides(ctx, ownerEmail)
	if err != nil {
		return nil, err
	}
	out := make([]remote.GuideRecord, len(guides))
	for i, g := range guides {
		out[i] = toRecord(g)
	}
	return out, nil
}

// SearchGuides returns the guides of ownerEmail whose title or
// conversation contains query.
func (s *Service) SearchGuides(ctx context.Context, ownerEmail, query string) ([]remote.GuideRecord, error) {
	if err := require("query", query); err != nil {
		return nil, err
	}
	guides, err := s.store.SearchGuides(ctx, ownerEmail, query)
	if err != nil {
		return nil, err
	}
	out := make([]remote.GuideRecord, len(guides))
	for i, g := range guides {
		out[i] = toRecord(g)
	}
	return out, nil
}

// CreateGuide generates a response to prompt and stores a new guide titled
// after it. Nothing is stored if generation fails.
func (s *Service) CreateGuide(ctx context.Context, ownerEmail, prompt string) (remote.GuideRecord, error) {
	if err := require("email", ownerEmail); err != nil {
		return remote.GuideRecord{}, err
	}
	if err := require("user_prompt", prompt); err != nil {
		return remote.GuideRecord{}, err
	}

	response, err := s.gen.Generate(ctx, generate.Request{Prompt: prompt})
	if err != nil {
		s.log.Warn("generation failed", "op", "create", "error", err)
		return remote.GuideRecord{}, err
	}

	g, err := s.store.CreateGuide(ctx, ownerEmail, model.DefaultTitle(prompt),
		[]storage.Turn{{UserPrompt: prompt, Response: response}})
	if err != nil {
		return remote.GuideRecord{}, err
	}
	s.log.Info("guide created", "guide", g.ID, "turns", len(g.Turns))
	return toRecord(g), nil
}

// AppendTurn generates a follow-up in the context of the stored
// conversation and appends it.
func (s *Service) AppendTurn(ctx context.Context, guideID, ownerEmail, prompt string) (string, error) {
	if err := require("user_prompt", prompt); err != nil {
		return "", err
	}
	g, err := s.store.GetGuide(ctx, ownerEmail, guideID)
	if err != nil {
		return "", err
	}

	history := make([]generate.Exchange, len(g.Turns))
	for i, t := range g.Turns {
		history[i] = generate.Exchange{Prompt: t.UserPrompt, Response: t.Response}
	}
	response, err := s.gen.Generate(ctx, generate.Request{Prompt: prompt, History: history})
	if err != nil {
		s.log.Warn("generation failed", "op", "append", "guide", guideID, "error", err)
		return "", err
	}

	if err := s.store.AppendTurn(ctx, ownerEmail, guideID, storage.Turn{UserPrompt: prompt, Response: response}); err != nil {
		return "", err
	}
	s.log.Debug("turn appended", "guide", guideID, "turns", len(g.Turns)+1)
	return response, nil
}

// RenameGuide retitles a guide.
func (s *Service) RenameGuide(ctx context.Context, guideID, ownerEmail, newTitle string) error {
	title, err := model.NormalizeTitle(newTitle)
	if err != nil {
		return fmt.Errorf("%w: new_title is required", ErrInvalidArgument)
	}
	return s.store.RenameGuide(ctx, ownerEmail, guideID, title)
}

// DeleteGuide removes a guide. An unknown owner is reported as such.
func (s *Service) DeleteGuide(ctx context.Context, guideID, ownerEmail string) error {
	if _, err := s.store.GetUser(ctx, ownerEmail); err != nil {
		return err
	}
	return s.store.DeleteGuide(ctx, ownerEmail, guideID)
}

// SaveGuide imports a finished guide for a registered user. A guide with
// only content is stored in legacy form.
func (s *Service) SaveGuide(ctx context.Context, ownerEmail, title, content string, turns []remote.TurnRecord) (remote.GuideRecord, error) {
	if err := require("title", title); err != nil {
		return remote.GuideRecord{}, err
	}
	stored := make([]storage.Turn, len(turns))
	for i, t := range turns {
		stored[i] = storage.Turn{UserPrompt: t.UserPrompt, Response: t.Response}
	}
	g, err := s.store.SaveGuide(ctx, ownerEmail, title, content, stored)
	if err != nil {
		return remote.GuideRecord{}, err
	}
	return toRecord(g), nil
}

// =============================================================================
// USERS
// =============================================================================

// RegisterUser creates the user. created is false if it already existed.
func (s *Service) RegisterUser(ctx context.Context, u remote.User) (bool, error) {
	_, created, err := s.CreateUser(ctx, u)
	return created, err
}

// CreateUser creates the user and returns the stored record.
func (s *Service) CreateUser(ctx context.Context, u remote.User) (remote.User, bool, error) {
	if err := require("email", u.Email); err != nil {
		return remote.User{}, false, err
	}
	stored, created, err := s.store.CreateUser(ctx, storage.User{
		Email:          u.Email,
		Name:           u.Name,
		Role:           u.Role,
		EducationLevel: u.EducationLevel,
		UsagePurpose:   u.UsagePurpose,
	})
	if err != nil {
		return remote.User{}, false, err
	}
	if created {
		s.log.Info("user registered", "email", stored.Email)
	}
	return remote.User{
		Email:          stored.Email,
		Name:           stored.Name,
		Role:           stored.Role,
		EducationLevel: stored.EducationLevel,
		UsagePurpose:   stored.UsagePurpose,
		CreatedAt:      stored.CreatedAt,
	}, created, nil
}

// CheckUser reports whether a user with email exists.
func (s *Service) CheckUser(ctx context.Context, email string) (bool, error) {
	return s.store.UserExists(ctx, email)
}

// =============================================================================
// HELPERS
// =============================================================================

func require(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidArgument, field)
	}
	return nil
}

func toRecord(g storage.Guide) remote.GuideRecord {
	g = g.Upgrade()
	rec := remote.GuideRecord{
		ID:           g.ID,
		Title:        g.Title,
		Conversation: make([]remote.TurnRecord, len(g.Turns)),
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
	for i, t := range g.Turns {
		rec.Conversation[i] = remote.TurnRecord{UserPrompt: t.UserPrompt, Response: t.Response}
	}
	return rec
}
