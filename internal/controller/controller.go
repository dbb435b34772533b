// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/manovay/AP-Study-Guide-Generator/internal/logger"
	"github.com/manovay/AP-Study-Guide-Generator/internal/model"
	"github.com/manovay/AP-Study-Guide-Generator/internal/registry"
	"github.com/manovay/AP-Study-Guide-Generator/internal/remote"
	"github.com/manovay/AP-Study-Guide-Generator/internal/reveal"
)

// Operation names used in errors and logs.
const (
	OpSubmitTopic    = "submit_topic"
	OpSubmitFollowUp = "submit_follow_up"
	OpSelectGuide    = "select_guide"
	OpRenameGuide    = "rename_guide"
	OpDeleteGuide    = "delete_guide"
	OpRefresh        = "refresh"
	OpCancelPending  = "cancel_pending"
	OpRegisterUser   = "register_user"
)

// Options configures a Controller.
type Options struct {
	// Timeout bounds each remote call. Zero means no deadline beyond the
	// caller's context.
	Timeout time.Duration

	// RevealInterval is the typing-effect tick. Zero makes the reveal
	// pull-only (see AdvanceReveal).
	RevealInterval time.Duration

	Reveal reveal.Options
}

// DefaultOptions mirrors the defaults in config.
func DefaultOptions() Options {
	return Options{
		Timeout:        90 * time.Second,
		RevealInterval: 10 * time.Millisecond,
		Reveal:         reveal.DefaultOptions(),
	}
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller is the only component that calls the remote store. Every
// intent applies its local change first, then calls the remote, then either
// reconciles with the server's values or rolls back.
//
// Operations on the same guide are serialized in arrival order; operations
// on different guides run concurrently. Methods block until the remote call
// completes, so UIs call them off their event loop.
type Controller struct {
	reg    *registry.Registry
	remote remote.Remote
	player *reveal.Player
	slots  *slots
	opts   Options
	log    *slog.Logger
}

// New creates a controller over reg and rem.
func New(reg *registry.Registry, rem remote.Remote, opts Options) *Controller {
	c := &Controller{
		reg:    reg,
		remote: rem,
		slots:  newSlots(),
		opts:   opts,
		log:    logger.WithComponent("controller"),
	}
	c.player = reveal.NewPlayer(opts.RevealInterval, opts.Reveal, c.onFrame)
	return c
}

// Registry returns the registry the controller writes to.
func (c *Controller) Registry() *registry.Registry {
	return c.reg
}

// Close stops all reveal timers.
func (c *Controller) Close() {
	c.player.StopAll()
}

// =============================================================================
// INTENTS
// =============================================================================

// SubmitTopic creates a new guide from a topic prompt. The draft is visible
// at once with a pending turn; on success it is saved under the server id,
// on failure it is removed and the returned error carries the prompt.
func (c *Controller) SubmitTopic(ctx context.Context, text string) (*model.StudyGuide, error) {
	prompt, err := model.NormalizePrompt(text)
	if err != nil {
		return nil, model.Wrap(model.ErrEmptyPrompt, OpSubmitTopic, "")
	}

	prev := c.reg.Selected()
	key, seq, err := c.reg.NewDraft(prompt)
	if err != nil {
		return nil, c.invalid(err)
	}
	c.player.Finish(prev)
	release, err := c.slots.acquire(ctx, key)
	if err != nil {
		c.discardDraft(key, seq)
		return nil, c.remoteFailure(OpSubmitTopic, key, prompt, err)
	}
	defer release()

	rctx, cancel := c.withTimeout(ctx)
	rec, err := c.remote.CreateGuide(rctx, c.reg.Owner(), prompt)
	cancel()
	if err != nil {
		if derr := c.discardDraft(key, seq); derr != nil {
			return nil, derr
		}
		return nil, c.remoteFailure(OpSubmitTopic, key, prompt, err)
	}

	saved := remote.ToGuide(rec, c.reg.Owner())
	if saved.Title == "" {
		saved.Title = model.DefaultTitle(prompt)
	}
	g, err := c.reg.Promote(key, seq, saved)
	if err != nil {
		c.stale(err, "guide created after its draft was cancelled", "draftKey", key, "guideID", rec.ID)
		return nil, err
	}
	c.player.Rekey(key, g.ID)
	c.log.Info("guide created", "guideID", g.ID, "title", g.Title)

	if last, ok := g.Conversation.Last(); ok {
		c.startReveal(g.ID, last.Response)
	}
	return g, nil
}

// SubmitFollowUp appends a follow-up question to the selected guide and
// returns the response.
func (c *Controller) SubmitFollowUp(ctx context.Context, text string) (string, error) {
	prompt, err := model.NormalizePrompt(text)
	if err != nil {
		return "", model.Wrap(model.ErrEmptyPrompt, OpSubmitFollowUp, "")
	}

	id, cur := c.reg.Selection()
	if cur == nil {
		return "", model.Wrap(model.ErrNoGuideSelected, OpSubmitFollowUp, "")
	}
	if err := checkFollowUp(id, cur); err != nil {
		return "", err
	}
	return c.appendTurn(ctx, id, prompt)
}

// AppendTurn adds a follow-up question to guide id whether or not it is
// selected.
func (c *Controller) AppendTurn(ctx context.Context, id, text string) (string, error) {
	prompt, err := model.NormalizePrompt(text)
	if err != nil {
		return "", model.Wrap(model.ErrEmptyPrompt, OpSubmitFollowUp, id)
	}
	g, ok := c.reg.Get(id)
	if !ok {
		return "", model.Wrap(model.ErrGuideNotFound, OpSubmitFollowUp, id)
	}
	if err := checkFollowUp(id, g); err != nil {
		return "", err
	}
	return c.appendTurn(ctx, id, prompt)
}

// checkFollowUp rejects a follow-up on an unsaved guide or one that is
// still waiting on a response.
func checkFollowUp(id string, g *model.StudyGuide) error {
	switch {
	case !g.IsSaved():
		return model.Wrap(model.ErrGuideNotSaved, OpSubmitFollowUp, id)
	case g.Conversation.HasPending():
		return model.Wrap(model.ErrPendingTurnExists, OpSubmitFollowUp, id)
	}
	return nil
}

func (c *Controller) appendTurn(ctx context.Context, id, prompt string) (string, error) {
	release, err := c.slots.acquire(ctx, id)
	if err != nil {
		return "", c.remoteFailure(OpSubmitFollowUp, id, prompt, err)
	}
	defer release()

	seq, err := c.reg.AppendPending(id, prompt)
	if err != nil {
		return "", c.invalid(err)
	}
	c.player.Finish(id)

	rctx, cancel := c.withTimeout(ctx)
	response, err := c.remote.AppendTurn(rctx, id, c.reg.Owner(), prompt)
	cancel()
	if err != nil {
		if _, ferr := c.reg.FailTurn(id, seq); ferr != nil {
			c.stale(ferr, "follow-up failed after its turn was cancelled", "guideID", id)
			return "", ferr
		}
		return "", c.remoteFailure(OpSubmitFollowUp, id, prompt, err)
	}

	if err := c.reg.ResolveTurn(id, seq, response); err != nil {
		c.stale(err, "discarding follow-up response", "guideID", id, "seq", seq)
		return "", err
	}
	c.startReveal(id, response)
	return response, nil
}

// SelectGuide opens guide id. The previous guide's reveal is completed and
// its timer released. If the conversation has not been fetched yet the
// guide list is refreshed.
func (c *Controller) SelectGuide(ctx context.Context, id string) error {
	if id == "" {
		c.SelectNew()
		return nil
	}
	prev := c.reg.Selected()
	loaded, err := c.reg.Select(id)
	if err != nil {
		return err
	}
	if prev != id {
		c.player.Finish(prev)
	}
	if loaded {
		return nil
	}
	return c.Refresh(ctx)
}

// SelectNew enters new-guide mode.
func (c *Controller) SelectNew() {
	prev := c.reg.Selected()
	c.reg.SelectNew()
	c.player.Finish(prev)
}

// RenameGuide retitles guide id. The new title shows at once and is
// restored to the old one if the remote rejects it.
func (c *Controller) RenameGuide(ctx context.Context, id, text string) error {
	if _, err := model.NormalizeTitle(text); err != nil {
		return model.Wrap(model.ErrEmptyTitle, OpRenameGuide, id)
	}
	release, err := c.slots.acquire(ctx, id)
	if err != nil {
		return c.remoteFailure(OpRenameGuide, id, "", err)
	}
	defer release()

	prev, err := c.reg.Rename(id, text)
	if err != nil {
		return c.invalid(err)
	}
	title, _ := model.NormalizeTitle(text)

	rctx, cancel := c.withTimeout(ctx)
	err = c.remote.RenameGuide(rctx, id, c.reg.Owner(), title)
	cancel()
	if err != nil {
		c.reg.RestoreTitle(id, prev)
		return c.remoteFailure(OpRenameGuide, id, "", err)
	}
	c.reg.ConfirmRename(id)
	c.log.Info("guide renamed", "guideID", id, "title", title)
	return nil
}

// DeleteGuide removes guide id. It disappears at once and is restored if
// the remote deletion fails.
func (c *Controller) DeleteGuide(ctx context.Context, id string) error {
	release, err := c.slots.acquire(ctx, id)
	if err != nil {
		return c.remoteFailure(OpDeleteGuide, id, "", err)
	}
	defer release()

	rm, err := c.reg.Remove(id)
	if err != nil {
		return c.invalid(err)
	}
	c.player.Stop(id)

	rctx, cancel := c.withTimeout(ctx)
	err = c.remote.DeleteGuide(rctx, id, c.reg.Owner())
	cancel()
	if err != nil {
		c.reg.Restore(rm)
		return c.remoteFailure(OpDeleteGuide, id, "", err)
	}
	c.reg.ConfirmRemove(rm)
	c.log.Info("guide deleted", "guideID", id)
	return nil
}

// Refresh fetches the user's guides and replaces the local set. A fetch
// that completes after a newer one is discarded.
func (c *Controller) Refresh(ctx context.Context) error {
	tok := c.reg.BeginFetch()
	prev := c.reg.Selected()

	rctx, cancel := c.withTimeout(ctx)
	recs, err := c.remote.FetchGuides(rctx, c.reg.Owner())
	cancel()
	if err != nil {
		return c.remoteFailure(OpRefresh, "", "", err)
	}

	guides := make([]*model.StudyGuide, len(recs))
	for i, rec := range recs {
		guides[i] = remote.ToGuide(rec, c.reg.Owner())
	}
	if err := c.reg.ApplyFetch(tok, guides); err != nil {
		c.stale(err, "discarding superseded guide list")
		return nil
	}
	if prev != "" && c.reg.Selected() != prev {
		c.player.Stop(prev)
	}
	c.log.Debug("guides refreshed", "count", len(guides))
	return nil
}

// CancelPending abandons the outstanding request of the guide or draft
// under key and returns its prompt. The remote call is not interrupted; its
// response is discarded when it arrives.
func (c *Controller) CancelPending(key string) (string, error) {
	turn, err := c.reg.CancelPending(key)
	if err != nil {
		return "", err
	}
	c.player.Stop(key)
	c.log.Info("pending turn cancelled", "guideID", key)
	return turn.Prompt, nil
}

// RegisterUser creates the user record if the remote manages users.
func (c *Controller) RegisterUser(ctx context.Context, user remote.User) error {
	ur, ok := c.remote.(remote.UserRegistrar)
	if !ok {
		return nil
	}
	if user.Email == "" {
		user.Email = c.reg.Owner()
	}
	rctx, cancel := c.withTimeout(ctx)
	defer cancel()
	created, err := ur.RegisterUser(rctx, user)
	if err != nil {
		return c.remoteFailure(OpRegisterUser, "", "", err)
	}
	if created {
		c.log.Info("user registered", "email", user.Email)
	}
	return nil
}

// =============================================================================
// REVEAL
// =============================================================================

// AdvanceReveal pulls the next reveal frame for key when the controller was
// created with a zero RevealInterval.
func (c *Controller) AdvanceReveal(key string) (reveal.Frame, bool) {
	return c.player.Advance(key)
}

// SkipReveal shows the rest of key's response at once.
func (c *Controller) SkipReveal(key string) {
	c.player.Finish(key)
}

// startReveal animates text if id is open, otherwise marks it fully shown.
func (c *Controller) startReveal(id, text string) {
	if c.reg.Selected() == id {
		c.player.Play(id, text)
		return
	}
	c.reg.SetReveal(id, registry.RevealState{Offset: len(text), Total: len(text), Done: true}, text)
}

func (c *Controller) onFrame(f reveal.Frame) {
	c.reg.SetReveal(f.Key, registry.RevealState{Offset: f.Offset, Total: f.Total, Done: f.Done}, f.Prefix)
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Controller) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.Timeout)
}

func (c *Controller) discardDraft(key string, seq uint64) error {
	if _, err := c.reg.DiscardDraft(key, seq); err != nil {
		c.stale(err, "create failed after its draft was cancelled", "draftKey", key)
		return err
	}
	return nil
}

// remoteFailure converts a remote error, logs it and publishes it.
func (c *Controller) remoteFailure(op, key, prompt string, cause error) error {
	msg := "request failed"
	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		msg = "request timed out"
	case errors.Is(cause, context.Canceled):
		msg = "request cancelled"
	case errors.Is(cause, remote.ErrNotFound):
		msg = "not found on server"
	}
	e := model.NewError(model.KindRemote, op, msg, cause)
	e.GuideID = key
	e.Prompt = prompt

	c.log.Warn("remote call failed", "op", op, "guideID", key, "error", cause)
	c.reg.ReportError(key, e)
	return e
}

// invalid logs a precondition failure. These indicate a caller bug and are
// never retried.
func (c *Controller) invalid(err error) error {
	c.log.Error("invalid state", "error", err)
	return err
}

func (c *Controller) stale(err error, msg string, args ...any) {
	c.log.Debug(msg, append(args, "error", err)...)
}
