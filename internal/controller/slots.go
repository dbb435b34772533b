// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"sync"
)

// slots serializes operations per key in FIFO order. Different keys never
// block each other.
type slots struct {
	mu     sync.Mutex
	queues map[string][]chan struct{}
}

func newSlots() *slots {
	return &slots{queues: make(map[string][]chan struct{})}
}

// acquire waits until every earlier holder of key has released it. The
// returned function must be called exactly once.
func (s *slots) acquire(ctx context.Context, key string) (release func(), err error) {
	ch := make(chan struct{})

	s.mu.Lock()
	q := s.queues[key]
	s.queues[key] = append(q, ch)
	if len(q) == 0 {
		close(ch)
	}
	s.mu.Unlock()

	release = func() { s.release(key, ch) }

	select {
	case <-ch:
		return release, nil
	case <-ctx.Done():
	}

	s.mu.Lock()
	q = s.queues[key]
	if len(q) > 0 && q[0] == ch {
		// granted while we were giving up; pass it on
		s.mu.Unlock()
		release()
		return nil, ctx.Err()
	}
	for i, c := range q {
		if c == ch {
			s.queues[key] = append(q[:i], q[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return nil, ctx.Err()
}

func (s *slots) release(key string, ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.queues[key]
	if len(q) == 0 || q[0] != ch {
		return
	}
	q = q[1:]
	if len(q) == 0 {
		delete(s.queues, key)
		return
	}
	s.queues[key] = q
	close(q[0])
}

// busy reports whether key has a holder or waiters.
func (s *slots) busy(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[key]) > 0
}
