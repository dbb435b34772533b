// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// =============================================================================
// ERROR KINDS
// =============================================================================

// ErrorKind classifies engine errors by how the caller should react.
type ErrorKind int

const (
	// KindValidation is user input rejected before any remote call.
	KindValidation ErrorKind = iota + 1

	// KindRemote is a transport or non-success response. Recoverable.
	KindRemote

	// KindInvalidState is API misuse such as a second pending turn.
	// It is a programming error and must not be retried.
	KindInvalidState

	// KindStaleResponse is a reconciliation that no longer matches the
	// expected request sequence. Discarded and logged only.
	KindStaleResponse
)

// String returns the kind name used in logs and error messages.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRemote:
		return "remote"
	case KindInvalidState:
		return "invalid state"
	case KindStaleResponse:
		return "stale response"
	default:
		return "unknown"
	}
}

// =============================================================================
// ERROR TYPE
// =============================================================================

// Error is the error type surfaced by the ledger, registry and controller.
// Use errors.Is against the sentinels below; Is matches on Kind and, when
// the target carries one, on Msg.
type Error struct {
	Kind    ErrorKind
	Op      string // intent that failed, e.g. "submit_topic"
	GuideID string
	Prompt  string // text to hand back to the input box after a failed turn
	Msg     string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.String())
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support for comparing engine errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Msg == "" || t.Msg == e.Msg
}

// Recoverable reports whether the user may simply retry.
func (e *Error) Recoverable() bool {
	return e.Kind == KindRemote || e.Kind == KindValidation
}

// =============================================================================
// SENTINELS
// =============================================================================

var (
	// ErrValidation matches any validation error.
	ErrValidation = &Error{Kind: KindValidation}
	// ErrRemote matches any remote failure.
	ErrRemote = &Error{Kind: KindRemote}
	// ErrInvalidState matches any precondition failure.
	ErrInvalidState = &Error{Kind: KindInvalidState}
	// ErrStaleResponse matches any discarded reconciliation.
	ErrStaleResponse = &Error{Kind: KindStaleResponse}

	ErrEmptyPrompt       = &Error{Kind: KindValidation, Msg: "prompt is empty"}
	ErrEmptyTitle        = &Error{Kind: KindValidation, Msg: "title is empty"}
	ErrPendingTurnExists = &Error{Kind: KindInvalidState, Msg: "a turn is already pending"}
	ErrNoPendingTurn     = &Error{Kind: KindInvalidState, Msg: "no pending turn"}
	ErrNoFailedTurn      = &Error{Kind: KindInvalidState, Msg: "no failed turn"}
	ErrGuideNotFound     = &Error{Kind: KindInvalidState, Msg: "guide not found"}
	ErrGuideNotSaved     = &Error{Kind: KindInvalidState, Msg: "guide has not been saved yet"}
	ErrNoGuideSelected   = &Error{Kind: KindInvalidState, Msg: "no guide selected"}
	ErrDuplicateGuide    = &Error{Kind: KindInvalidState, Msg: "guide id already present"}
)

// NewError builds an Error of the given kind from a sentinel message.
func NewError(kind ErrorKind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

// Wrap copies a sentinel and attaches context. Sentinels are never mutated.
func Wrap(sentinel *Error, op, guideID string) *Error {
	e := *sentinel
	e.Op = op
	e.GuideID = guideID
	return &e
}
