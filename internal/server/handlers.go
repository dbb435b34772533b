// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/manovay/AP-Study-Guide-Generator/internal/remote"
	"github.com/manovay/AP-Study-Guide-Generator/internal/service"
	"github.com/manovay/AP-Study-Guide-Generator/internal/storage"
)

// Acknowledgement messages.
const (
	msgGuideCreated = "New study guide created"
	msgTurnAdded    = "Response added to existing study guide"
	msgFollowUp     = "Follow-up response added"
	msgRenamed      = "Study guide renamed successfully"
	msgDeleted      = "Study guide deleted successfully"
	msgSaved        = "Study guide saved successfully"
	msgUserCreated  = "User created successfully"
	msgUserExists   = "User already exists"
)

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, remote.MessageResponse{Message: WelcomeMessage})
}

// handleGenerate creates a guide, or appends a turn when study_guide_id is
// given.
func (s *Server) handleGenerate(c *gin.Context) {
	var req remote.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err, "Email and user_prompt are required")
		return
	}
	ctx := c.Request.Context()

	if req.StudyGuideID != "" {
		resp, err := s.backend.AppendTurn(ctx, req.StudyGuideID, req.Email, req.UserPrompt)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.notify(remote.NoticeUpdated, req.Email, req.StudyGuideID)
		c.JSON(http.StatusOK, remote.GenerateResponse{Message: msgTurnAdded, Response: resp})
		return
	}

	rec, err := s.backend.CreateGuide(ctx, req.Email, req.UserPrompt)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.notify(remote.NoticeCreated, req.Email, rec.ID)
	c.JSON(http.StatusOK, remote.GenerateResponse{Message: msgGuideCreated, StudyGuide: &rec})
}

func (s *Server) handleListGuides(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		abortDetail(c, http.StatusBadRequest, "Email is required")
		return
	}
	guides, err := s.backend.FetchGuides(c.Request.Context(), email)
	if err != nil {
		s.fail(c, err)
		return
	}
	if guides == nil {
		guides = []remote.GuideRecord{}
	}
	c.JSON(http.StatusOK, remote.ListResponse{StudyGuides: guides})
}

func (s *Server) handleUpdateGuide(c *gin.Context) {
	var req remote.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err, "Email, study_guide_id and user_prompt are required")
		return
	}
	resp, err := s.backend.AppendTurn(c.Request.Context(), req.StudyGuideID, req.Email, req.UserPrompt)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.notify(remote.NoticeUpdated, req.Email, req.StudyGuideID)
	c.JSON(http.StatusOK, remote.UpdateResponse{Message: msgFollowUp, Response: resp})
}

func (s *Server) handleRenameGuide(c *gin.Context) {
	var req remote.RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err, "Study guide ID and new title are required")
		return
	}
	if err := s.backend.RenameGuide(c.Request.Context(), req.StudyGuideID, req.Email, req.NewTitle); err != nil {
		s.fail(c, err)
		return
	}
	s.notify(remote.NoticeRenamed, req.Email, req.StudyGuideID)
	c.JSON(http.StatusOK, remote.MessageResponse{Message: msgRenamed})
}

func (s *Server) handleDeleteGuide(c *gin.Context) {
	var req remote.DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err, "Email and study_guide_id are required")
		return
	}
	if err := s.backend.DeleteGuide(c.Request.Context(), req.StudyGuideID, req.Email); err != nil {
		s.fail(c, err)
		return
	}
	s.notify(remote.NoticeDeleted, req.Email, req.StudyGuideID)
	c.JSON(http.StatusOK, remote.MessageResponse{Message: msgDeleted})
}

func (s *Server) handleSaveGuide(c *gin.Context) {
	var req remote.SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err, "Email and title are required")
		return
	}
	rec, err := s.backend.SaveGuide(c.Request.Context(), req.Email, req.Title, req.Content, req.Conversation)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.notify(remote.NoticeCreated, req.Email, rec.ID)
	c.JSON(http.StatusOK, remote.SaveResponse{Message: msgSaved, StudyGuideID: rec.ID, StudyGuide: &rec})
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var req remote.User
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		s.badRequest(c, err, "Email is required")
		return
	}
	user, created, err := s.backend.CreateUser(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	msg := msgUserCreated
	if !created {
		msg = msgUserExists
	}
	c.JSON(http.StatusOK, remote.UserResponse{Message: msg, User: user, Exists: !created})
}

func (s *Server) handleCheckUser(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		abortDetail(c, http.StatusBadRequest, "Email is required")
		return
	}
	ok, err := s.backend.CheckUser(c.Request.Context(), email)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, remote.UserCheckResponse{Exists: ok})
}

// ============================================================================
// ERRORS
// ============================================================================

// abortDetail writes the error body shared by every route.
func abortDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, remote.ErrorResponse{Detail: detail})
}

func (s *Server) badRequest(c *gin.Context, err error, detail string) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		abortDetail(c, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	if err != nil {
		s.log.Debug("invalid request body", "path", c.Request.URL.Path, "error", err)
	}
	abortDetail(c, http.StatusBadRequest, detail)
}

// fail maps backend errors to status codes. Unknown errors are logged in
// full and reported generically.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		abortDetail(c, http.StatusNotFound, storage.ErrUserNotFound.Message)
	case errors.Is(err, storage.ErrGuideNotFound):
		abortDetail(c, http.StatusNotFound, storage.ErrGuideNotFound.Message)
	case errors.Is(err, service.ErrInvalidArgument):
		abortDetail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		abortDetail(c, http.StatusGatewayTimeout, "Request timed out")
	case errors.Is(err, context.Canceled):
		abortDetail(c, 499, "Request cancelled")
	default:
		s.log.Error("request failed",
			"path", c.Request.URL.Path,
			"request_id", c.GetString(HeaderRequestID),
			"error", err,
		)
		abortDetail(c, http.StatusInternalServerError, "Internal server error")
	}
}
