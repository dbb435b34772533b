// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns ValidateErrors listing
// every problem, or nil. An empty user.email is allowed here; commands that
// need it check RequireUser.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.User.Email != "" {
		if _, err := mail.ParseAddress(c.User.Email); err != nil {
			add("user.email", "invalid email address %q", c.User.Email)
		}
	}

	switch strings.ToLower(c.Remote.Mode) {
	case ModeLocal, ModeHTTP, "":
	default:
		add("remote.mode", "invalid mode '%s', must be one of: local, http", c.Remote.Mode)
	}
	if strings.EqualFold(c.Remote.Mode, ModeHTTP) {
		u, err := url.Parse(c.Remote.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("remote.url", "invalid URL '%s', must be http(s)://host[:port]", c.Remote.URL)
		}
	}
	if c.Remote.TimeoutSecs < 0 || c.Remote.TimeoutSecs > 3600 {
		add("remote.timeout_secs", "must be between 1 and 3600, got %d", c.Remote.TimeoutSecs)
	}
	if c.Remote.MaxRetries < 0 || c.Remote.MaxRetries > 10 {
		add("remote.max_retries", "must be between 0 and 10, got %d", c.Remote.MaxRetries)
	}
	if c.Remote.RateLimit < 0 {
		add("remote.rate_limit", "must not be negative")
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "offline", "":
	default:
		add("llm.provider", "invalid provider '%s', must be one of: openai, offline", c.LLM.Provider)
	}
	if c.LLM.BaseURL != "" {
		if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Host == "" {
			add("llm.base_url", "invalid URL '%s'", c.LLM.BaseURL)
		}
	}

	switch strings.ToLower(c.Reveal.Granularity) {
	case "char", "word", "":
	default:
		add("reveal.granularity", "invalid granularity '%s', must be one of: char, word", c.Reveal.Granularity)
	}
	if c.Reveal.Rate < 0 {
		add("reveal.rate", "must be at least 1, got %d", c.Reveal.Rate)
	}
	if c.Reveal.IntervalMs < 0 || c.Reveal.IntervalMs > 10000 {
		add("reveal.interval_ms", "must be between 1 and 10000, got %d", c.Reveal.IntervalMs)
	}

	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "must not be negative")
	}
	if c.Server.RateBurst < 0 {
		add("server.rate_burst", "must not be negative")
	}
	if c.Server.MaxBodyBytes < 0 {
		add("server.max_body_bytes", "must not be negative")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// RequireUser reports a validation error when no user email is configured.
func (c *Config) RequireUser() error {
	if strings.TrimSpace(c.User.Email) == "" {
		return ValidateErrors{{
			Field:   "user.email",
			Message: "not set; use --email, TOOTUR_EMAIL or 'tootur config set user.email <address>'",
		}}
	}
	return nil
}
