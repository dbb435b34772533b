// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/manovay/AP-Study-Guide-Generator/internal/logger"
)

// Configuration constants for the HTTP client.
const (
	// DefaultBaseURL is where "tootur serve" listens by default.
	DefaultBaseURL = "http://127.0.0.1:8000"

	// DefaultTimeout bounds a single HTTP exchange. Generation is slow, so
	// this is generous; the controller applies its own deadline on top.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxRetries is the number of attempts for idempotent requests.
	DefaultMaxRetries = 3

	retryBaseDelay = 250 * time.Millisecond
	retryMaxDelay  = 4 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024
)

// sharedHTTPClient pools connections across clients.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
	Timeout: DefaultTimeout,
}

// Error variables for common API failures.
var (
	// ErrNotFound indicates the user or guide does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates the server rejected the request rate.
	ErrRateLimited = errors.New("rate limited")

	// ErrBadRequest indicates the server rejected the request body.
	ErrBadRequest = errors.New("bad request")
)

// StatusError is a non-2xx response.
type StatusError struct {
	Status int
	Detail string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("tootur API error (HTTP %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("tootur API error (HTTP %d)", e.Status)
}

// Is maps status codes to the package sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrBadRequest:
		return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
	}
	return false
}

// =============================================================================
// CLIENT
// =============================================================================

// Client implements Remote and UserRegistrar over the tootur HTTP API.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	log        *slog.Logger
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: sharedHTTPClient,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		maxRetries: DefaultMaxRetries,
		log:        logger.WithComponent("remote"),
	}
}

// WithHTTPClient replaces the pooled HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithRateLimit caps outgoing requests per second. Zero disables the cap.
func (c *Client) WithRateLimit(perSecond float64, burst int) *Client {
	if perSecond <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return c
}

// WithMaxRetries sets the number of attempts for idempotent requests.
func (c *Client) WithMaxRetries(n int) *Client {
	if n < 1 {
		n = 1
	}
	c.maxRetries = n
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// REMOTE
// =============================================================================

// FetchGuides implements Remote.
func (c *Client) FetchGuides(ctx context.Context, ownerEmail string) ([]GuideRecord, error) {
	q := url.Values{"email": {ownerEmail}}
	var resp ListResponse
	if err := c.get(ctx, PathListGuides, q, &resp); err != nil {
		return nil, err
	}
	out := make([]GuideRecord, len(resp.StudyGuides))
	for i, rec := range resp.StudyGuides {
		out[i] = UpgradeLegacy(rec)
	}
	return out, nil
}

// CreateGuide implements Remote.
func (c *Client) CreateGuide(ctx context.Context, ownerEmail, prompt string) (GuideRecord, error) {
	var resp GenerateResponse
	err := c.post(ctx, PathGenerate, GenerateRequest{Email: ownerEmail, UserPrompt: prompt}, &resp)
	if err != nil {
		return GuideRecord{}, err
	}
	if resp.StudyGuide == nil || resp.StudyGuide.ID == "" {
		return GuideRecord{}, fmt.Errorf("create guide: response has no study guide")
	}
	return UpgradeLegacy(*resp.StudyGuide), nil
}

// AppendTurn implements Remote.
func (c *Client) AppendTurn(ctx context.Context, guideID, ownerEmail, prompt string) (string, error) {
	var resp UpdateResponse
	req := UpdateRequest{Email: ownerEmail, StudyGuideID: guideID, UserPrompt: prompt}
	if err := c.post(ctx, PathUpdateGuide, req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// RenameGuide implements Remote.
func (c *Client) RenameGuide(ctx context.Context, guideID, ownerEmail, newTitle string) error {
	req := RenameRequest{Email: ownerEmail, StudyGuideID: guideID, NewTitle: newTitle}
	return c.post(ctx, PathRename, req, nil)
}

// DeleteGuide implements Remote.
func (c *Client) DeleteGuide(ctx context.Context, guideID, ownerEmail string) error {
	req := DeleteRequest{Email: ownerEmail, StudyGuideID: guideID}
	return c.post(ctx, PathDelete, req, nil)
}

// RegisterUser implements UserRegistrar.
func (c *Client) RegisterUser(ctx context.Context, user User) (bool, error) {
	var resp UserResponse
	if err := c.post(ctx, PathUsers, user, &resp); err != nil {
		return false, err
	}
	return !resp.Exists, nil
}

// CheckUser implements UserRegistrar.
func (c *Client) CheckUser(ctx context.Context, email string) (bool, error) {
	var resp UserCheckResponse
	if err := c.get(ctx, PathCheckUser, url.Values{"email": {email}}, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

// SaveGuide imports a finished guide and returns its new id.
func (c *Client) SaveGuide(ctx context.Context, ownerEmail, title string, turns []TurnRecord) (string, error) {
	var resp SaveResponse
	req := SaveRequest{Email: ownerEmail, Title: title, Conversation: turns}
	if err := c.post(ctx, PathSaveGuide, req, &resp); err != nil {
		return "", err
	}
	return resp.StudyGuideID, nil
}

// Ping checks that the API root answers.
func (c *Client) Ping(ctx context.Context) error {
	var resp MessageResponse
	return c.get(ctx, PathRoot, nil, &resp)
}

// =============================================================================
// TRANSPORT
// =============================================================================

// get performs an idempotent request, retrying transport errors and 5xx
// responses with exponential backoff.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		err = c.do(req, out)
		if err == nil {
			return nil
		}
		if !retryable(err) || ctx.Err() != nil {
			return err
		}
		lastErr = err
		c.log.Debug("retrying request", "path", path, "attempt", attempt+1, "error", err)
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// post performs a single non-idempotent request. Generation and mutations
// are never retried automatically.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tootur")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.log.Debug("api response", "method", req.Method, "path", req.URL.Path,
		"status", resp.StatusCode, "duration", time.Since(start))

	body, err := readResponse(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, body)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// readResponse reads the body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

func statusError(status int, body []byte) error {
	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Detail != "" {
		return &StatusError{Status: status, Detail: er.Detail}
	}
	return &StatusError{Status: status, Detail: strings.TrimSpace(string(body))}
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= 500 || se.Status == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func backoff(attempt int) time.Duration {
	d := retryBaseDelay << (attempt - 1)
	if d > retryMaxDelay {
		d = retryMaxDelay
	}
	return d
}
