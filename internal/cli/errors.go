// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/manovay/AP-Study-Guide-Generator/internal/app"
	"github.com/manovay/AP-Study-Guide-Generator/internal/config"
	"github.com/manovay/AP-Study-Guide-Generator/internal/model"
	"github.com/manovay/AP-Study-Guide-Generator/internal/remote"
	"github.com/manovay/AP-Study-Guide-Generator/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNetworkError indicates the store or model could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a guide or user was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// UsageError reports invalid arguments.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

func usageErrorf(format string, args ...any) error {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports that a guide reference did not resolve.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var usage *UsageError
	var notFound *NotFoundError
	var verrs config.ValidateErrors
	switch {
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &verrs), errors.Is(err, app.ErrNoUser):
		return ExitConfigError
	case errors.As(err, &notFound),
		errors.Is(err, remote.ErrNotFound),
		errors.Is(err, storage.ErrGuideNotFound),
		errors.Is(err, storage.ErrUserNotFound),
		errors.Is(err, model.ErrGuideNotFound):
		return ExitNotFoundError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.Is(err, model.ErrRemote):
		return ExitNetworkError
	default:
		return ExitGeneralError
	}
}
