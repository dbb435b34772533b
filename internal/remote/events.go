// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// eventsDialTimeout bounds the websocket handshake.
const eventsDialTimeout = 10 * time.Second

// EventsURL returns the websocket URL of the change feed for email.
func (c *Client) EventsURL(email string) (string, error) {
	u, err := url.Parse(c.baseURL + PathEvents)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.RawQuery = url.Values{"email": {email}}.Encode()
	return u.String(), nil
}

// Watch subscribes to change notices for email and calls fn for each one
// until ctx is done or the connection drops. It returns nil on ctx
// cancellation; callers reconnect on any other error.
func (c *Client) Watch(ctx context.Context, email string, fn func(ChangeNotice)) error {
	target, err := c.EventsURL(email)
	if err != nil {
		return err
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: eventsDialTimeout,
	}
	header := http.Header{"User-Agent": {"tootur"}}
	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return statusError(resp.StatusCode, nil)
		}
		return fmt.Errorf("events dial failed: %w", err)
	}
	defer conn.Close()
	c.log.Debug("watching change feed", "url", target)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	for {
		var n ChangeNotice
		if err := conn.ReadJSON(&n); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseGoingAway {
				return fmt.Errorf("server closed the change feed: %w", err)
			}
			return fmt.Errorf("events read failed: %w", err)
		}
		fn(n)
	}
}
