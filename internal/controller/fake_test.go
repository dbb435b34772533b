// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/manovay/AP-Study-Guide-Generator/internal/remote"
)

var errNetwork = errors.New("connection refused")

// fakeRemote is an in-memory remote.Remote. Operations named in gates block
// after taking their snapshot until the gate is released, which lets tests
// hold a call in flight while other intents run.
type fakeRemote struct {
	mu      sync.Mutex
	guides  map[string]remote.GuideRecord
	order   []string
	nextID  int
	fail    map[string]error
	gates   map[string]chan struct{}
	entered chan string
	calls   []string
	users   map[string]bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		guides:  make(map[string]remote.GuideRecord),
		fail:    make(map[string]error),
		gates:   make(map[string]chan struct{}),
		entered: make(chan string, 16),
		users:   make(map[string]bool),
	}
}

// add stores a guide directly.
func (f *fakeRemote) add(title string, turns ...remote.TurnRecord) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("g%d", f.nextID)
	now := time.Now().Add(time.Duration(f.nextID) * time.Second)
	if turns == nil {
		turns = []remote.TurnRecord{{UserPrompt: title, Response: "response to " + title}}
	}
	f.guides[id] = remote.GuideRecord{ID: id, Title: title, Conversation: turns, CreatedAt: now, UpdatedAt: now}
	f.order = append(f.order, id)
	return id
}

// drop deletes a guide as another device would.
func (f *fakeRemote) drop(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.guides, id)
}

func (f *fakeRemote) gate(op string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[op] = ch
	return ch
}

func (f *fakeRemote) failOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

func (f *fakeRemote) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// enter records the call and returns its gate and configured failure.
func (f *fakeRemote) enter(op string) (chan struct{}, error) {
	f.calls = append(f.calls, op)
	return f.gates[op], f.fail[op]
}

func (f *fakeRemote) wait(ctx context.Context, op string, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	f.entered <- op
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeRemote) FetchGuides(ctx context.Context, ownerEmail string) ([]remote.GuideRecord, error) {
	f.mu.Lock()
	gate, ferr := f.enter("fetch")
	snapshot := make([]remote.GuideRecord, 0, len(f.order))
	for _, id := range f.order {
		if g, ok := f.guides[id]; ok {
			snapshot = append(snapshot, g)
		}
	}
	f.mu.Unlock()

	if err := f.wait(ctx, "fetch", gate); err != nil {
		return nil, err
	}
	if ferr != nil {
		return nil, ferr
	}
	return snapshot, nil
}

func (f *fakeRemote) CreateGuide(ctx context.Context, ownerEmail, prompt string) (remote.GuideRecord, error) {
	f.mu.Lock()
	gate, ferr := f.enter("create")
	f.mu.Unlock()

	if err := f.wait(ctx, "create", gate); err != nil {
		return remote.GuideRecord{}, err
	}
	if ferr != nil {
		return remote.GuideRecord{}, ferr
	}
	id := f.add(prompt)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.guides[id], nil
}

func (f *fakeRemote) AppendTurn(ctx context.Context, guideID, ownerEmail, prompt string) (string, error) {
	f.mu.Lock()
	gate, ferr := f.enter("append")
	f.mu.Unlock()

	if err := f.wait(ctx, "append", gate); err != nil {
		return "", err
	}
	if ferr != nil {
		return "", ferr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.guides[guideID]
	if !ok {
		return "", &remote.StatusError{Status: 404, Detail: "Study guide not found"}
	}
	resp := "answer to " + prompt
	g.Conversation = append(g.Conversation, remote.TurnRecord{UserPrompt: prompt, Response: resp})
	g.UpdatedAt = time.Now()
	f.guides[guideID] = g
	return resp, nil
}

func (f *fakeRemote) RenameGuide(ctx context.Context, guideID, ownerEmail, newTitle string) error {
	f.mu.Lock()
	gate, ferr := f.enter("rename")
	f.mu.Unlock()

	if err := f.wait(ctx, "rename", gate); err != nil {
		return err
	}
	if ferr != nil {
		return ferr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.guides[guideID]
	if !ok {
		return &remote.StatusError{Status: 404, Detail: "Study guide not found"}
	}
	g.Title = newTitle
	f.guides[guideID] = g
	return nil
}

func (f *fakeRemote) DeleteGuide(ctx context.Context, guideID, ownerEmail string) error {
	f.mu.Lock()
	gate, ferr := f.enter("delete")
	f.mu.Unlock()

	if err := f.wait(ctx, "delete", gate); err != nil {
		return err
	}
	if ferr != nil {
		return ferr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.guides[guideID]; !ok {
		return &remote.StatusError{Status: 404, Detail: "Study guide not found"}
	}
	delete(f.guides, guideID)
	return nil
}

func (f *fakeRemote) RegisterUser(ctx context.Context, user remote.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existed := f.users[user.Email]
	f.users[user.Email] = true
	return !existed, nil
}

func (f *fakeRemote) CheckUser(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[email], nil
}
