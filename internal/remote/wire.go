// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package remote

import "time"

// Request and response bodies of the HTTP API. Field names follow the
// routes served by internal/server.

// API paths.
const (
	PathRoot        = "/"
	PathGenerate    = "/generate-guide"
	PathListGuides  = "/api/get-study-guides"
	PathUpdateGuide = "/api/update-guide"
	PathRename      = "/api/rename-study-guide"
	PathDelete      = "/api/delete-study-guide"
	PathSaveGuide   = "/api/save-study-guide"
	PathUsers       = "/api/users"
	PathCheckUser   = "/api/users/check"
	PathEvents      = "/api/events"
)

// GenerateRequest creates a guide, or appends to one when StudyGuideID is
// set.
type GenerateRequest struct {
	Email        string `json:"email" binding:"required"`
	UserPrompt   string `json:"user_prompt" binding:"required"`
	StudyGuideID string `json:"study_guide_id,omitempty"`
}

// GenerateResponse carries the new guide, or only the response text when a
// turn was appended.
type GenerateResponse struct {
	Message    string       `json:"message,omitempty"`
	StudyGuide *GuideRecord `json:"study_guide,omitempty"`
	Response   string       `json:"response,omitempty"`
}

// ListResponse is returned by PathListGuides.
type ListResponse struct {
	StudyGuides []GuideRecord `json:"study_guides"`
}

// UpdateRequest appends a follow-up turn.
type UpdateRequest struct {
	Email        string `json:"email" binding:"required"`
	StudyGuideID string `json:"study_guide_id" binding:"required"`
	UserPrompt   string `json:"user_prompt" binding:"required"`
}

// UpdateResponse is returned by PathUpdateGuide.
type UpdateResponse struct {
	Message  string `json:"message"`
	Response string `json:"response"`
}

// RenameRequest retitles a guide.
type RenameRequest struct {
	Email        string `json:"email" binding:"required"`
	StudyGuideID string `json:"study_guide_id" binding:"required"`
	NewTitle     string `json:"new_title" binding:"required"`
}

// DeleteRequest removes a guide.
type DeleteRequest struct {
	Email        string `json:"email" binding:"required"`
	StudyGuideID string `json:"study_guide_id" binding:"required"`
}

// SaveRequest imports a finished guide.
type SaveRequest struct {
	Email        string       `json:"email" binding:"required"`
	Title        string       `json:"title" binding:"required"`
	Conversation []TurnRecord `json:"conversation"`
	Content      string       `json:"content,omitempty"`
}

// SaveResponse is returned by PathSaveGuide.
type SaveResponse struct {
	Message      string       `json:"message"`
	StudyGuideID string       `json:"study_guide_id"`
	StudyGuide   *GuideRecord `json:"study_guide,omitempty"`
}

// MessageResponse is the generic acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserResponse is returned by PathUsers. Exists is true when the user was
// already registered.
type UserResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
	Exists  bool   `json:"exists"`
}

// UserCheckResponse is returned by PathCheckUser.
type UserCheckResponse struct {
	Exists bool `json:"exists"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Change notice types sent on PathEvents.
const (
	NoticeCreated = "guide_created"
	NoticeUpdated = "guide_updated"
	NoticeRenamed = "guide_renamed"
	NoticeDeleted = "guide_deleted"
)

// ChangeNotice tells a subscriber that one of its guides changed on the
// server. It carries no guide data; subscribers refetch.
type ChangeNotice struct {
	Type         string    `json:"type"`
	Email        string    `json:"email"`
	StudyGuideID string    `json:"study_guide_id,omitempty"`
	At           time.Time `json:"at"`
}
