// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/manovay/AP-Study-Guide-Generator/internal/remote"
)

// ============================================================================
// CHANGE FEED
// ============================================================================

const (
	// eventsSendBuffer is the per-subscriber queue. Notices beyond it are
	// dropped; a subscriber that misses one still refetches on the next.
	eventsSendBuffer = 16

	eventsWriteWait  = 10 * time.Second
	eventsPongWait   = 60 * time.Second
	eventsPingPeriod = (eventsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS middleware already restricts browser origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type subscriber struct {
	email string
	send  chan []byte
}

// Hub fans change notices out to the websocket subscribers of each user.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
	log    *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{}), log: log}
}

// Publish queues n for every subscriber of n.Email without blocking.
func (h *Hub) Publish(n remote.ChangeNotice) {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	data, err := json.Marshal(n)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[n.Email] {
		select {
		case sub.send <- data:
		default:
			h.log.Debug("dropping change notice for slow subscriber", "email", n.Email, "type", n.Type)
		}
	}
}

// Subscribers returns the number of live subscribers for email.
func (h *Hub) Subscribers(email string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[email])
}

func (h *Hub) add(email string) (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	sub := &subscriber{email: email, send: make(chan []byte, eventsSendBuffer)}
	if h.subs[email] == nil {
		h.subs[email] = make(map[*subscriber]struct{})
	}
	h.subs[email][sub] = struct{}{}
	return sub, true
}

// remove unregisters sub and closes its queue. Safe to call twice.
func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sub.email]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.send)
	if len(set) == 0 {
		delete(h.subs, sub.email)
	}
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for email, set := range h.subs {
		for sub := range set {
			close(sub.send)
		}
		delete(h.subs, email)
	}
}

// handleEvents upgrades to a websocket and streams the user's change
// notices until either side closes.
func (s *Server) handleEvents(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		abortDetail(c, http.StatusBadRequest, "Email is required")
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	sub, ok := s.hub.add(email)
	if !ok {
		conn.Close()
		return
	}
	s.log.Debug("events subscriber connected", "email", email)

	// Reader: only pongs and the close frame are expected.
	go func() {
		defer s.hub.remove(sub)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(eventsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(eventsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
		s.log.Debug("events subscriber disconnected", "email", email)
	}()
	for {
		select {
		case data, ok := <-sub.send:
			conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.hub.remove(sub)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.hub.remove(sub)
				return
			}
		}
	}
}

// notify publishes a change for email.
func (s *Server) notify(kind, email, guideID string) {
	s.hub.Publish(remote.ChangeNotice{Type: kind, Email: email, StudyGuideID: guideID})
}
