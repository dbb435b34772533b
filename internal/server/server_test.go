// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manovay/AP-Study-Guide-Generator/internal/generate"
	"github.com/manovay/AP-Study-Guide-Generator/internal/remote"
	"github.com/manovay/AP-Study-Guide-Generator/internal/service"
	"github.com/manovay/AP-Study-Guide-Generator/internal/storage"
)

const testEmail = "ada@example.com"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := New(service.New(store, generate.Offline{}), cfg)
	t.Cleanup(func() {
		if srv.limiter != nil {
			srv.limiter.Stop()
		}
	})
	return srv
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func TestRoot(t *testing.T) {
	srv := newTestServer(t, Config{})
	w := do(t, srv, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, WelcomeMessage, decode[remote.MessageResponse](t, w).Message)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestGuideLifecycle(t *testing.T) {
	srv := newTestServer(t, Config{})

	// Create
	w := do(t, srv, http.MethodPost, remote.PathGenerate,
		remote.GenerateRequest{Email: testEmail, UserPrompt: "Photosynthesis"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[remote.GenerateResponse](t, w)
	require.NotNil(t, created.StudyGuide)
	assert.Equal(t, msgGuideCreated, created.Message)
	assert.Equal(t, "Photosynthesis", created.StudyGuide.Title)
	require.Len(t, created.StudyGuide.Conversation, 1)
	id := created.StudyGuide.ID

	// Follow-up via update-guide
	w = do(t, srv, http.MethodPost, remote.PathUpdateGuide,
		remote.UpdateRequest{Email: testEmail, StudyGuideID: id, UserPrompt: "Calvin cycle?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	upd := decode[remote.UpdateResponse](t, w)
	assert.Equal(t, msgFollowUp, upd.Message)
	assert.Contains(t, upd.Response, "Follow-up 1: Calvin cycle?")

	// Follow-up via generate-guide with an id
	w = do(t, srv, http.MethodPost, remote.PathGenerate,
		remote.GenerateRequest{Email: testEmail, UserPrompt: "Light reactions?", StudyGuideID: id})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, msgTurnAdded, decode[remote.GenerateResponse](t, w).Message)

	// Rename
	w = do(t, srv, http.MethodPost, remote.PathRename,
		remote.RenameRequest{Email: testEmail, StudyGuideID: id, NewTitle: "Plants"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, msgRenamed, decode[remote.MessageResponse](t, w).Message)

	// List
	w = do(t, srv, http.MethodGet, remote.PathListGuides+"?email="+testEmail, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode[remote.ListResponse](t, w)
	require.Len(t, list.StudyGuides, 1)
	assert.Equal(t, "Plants", list.StudyGuides[0].Title)
	assert.Len(t, list.StudyGuides[0].Conversation, 3)
	assert.Contains(t, w.Body.String(), `"_id"`)
	assert.Contains(t, w.Body.String(), `"user_prompt"`)

	// Delete
	w = do(t, srv, http.MethodPost, remote.PathDelete,
		remote.DeleteRequest{Email: testEmail, StudyGuideID: id})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, msgDeleted, decode[remote.MessageResponse](t, w).Message)

	w = do(t, srv, http.MethodGet, remote.PathListGuides+"?email="+testEmail, nil)
	assert.Empty(t, decode[remote.ListResponse](t, w).StudyGuides)
}

func TestErrors(t *testing.T) {
	srv := newTestServer(t, Config{})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		detail string
	}{
		{"list unknown user", http.MethodGet, remote.PathListGuides + "?email=nobody@example.com", nil, http.StatusNotFound, "User not found"},
		{"list without email", http.MethodGet, remote.PathListGuides, nil, http.StatusBadRequest, "Email is required"},
		{"generate missing prompt", http.MethodPost, remote.PathGenerate, map[string]string{"email": testEmail}, http.StatusBadRequest, ""},
		{"rename missing title", http.MethodPost, remote.PathRename, map[string]string{"email": testEmail, "study_guide_id": "x"}, http.StatusBadRequest, "Study guide ID and new title are required"},
		{"rename unknown guide", http.MethodPost, remote.PathRename, remote.RenameRequest{Email: testEmail, StudyGuideID: "x", NewTitle: "T"}, http.StatusNotFound, "Study guide not found"},
		{"update unknown guide", http.MethodPost, remote.PathUpdateGuide, remote.UpdateRequest{Email: testEmail, StudyGuideID: "x", UserPrompt: "p"}, http.StatusNotFound, "Study guide not found"},
		{"delete unknown user", http.MethodPost, remote.PathDelete, remote.DeleteRequest{Email: "nobody@example.com", StudyGuideID: "x"}, http.StatusNotFound, "User not found"},
		{"save unknown user", http.MethodPost, remote.PathSaveGuide, remote.SaveRequest{Email: "nobody@example.com", Title: "T", Content: "C"}, http.StatusNotFound, "User not found"},
		{"unknown route", http.MethodGet, "/nope", nil, http.StatusNotFound, "Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			body := decode[remote.ErrorResponse](t, w)
			if tt.detail != "" {
				assert.Equal(t, tt.detail, body.Detail)
			} else {
				assert.NotEmpty(t, body.Detail)
			}
		})
	}
}

func TestUsers(t *testing.T) {
	srv := newTestServer(t, Config{})

	w := do(t, srv, http.MethodGet, remote.PathCheckUser+"?email="+testEmail, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[remote.UserCheckResponse](t, w).Exists)

	user := remote.User{Email: testEmail, Name: "Ada", EducationLevel: "college", UsagePurpose: "exam prep"}
	w = do(t, srv, http.MethodPost, remote.PathUsers, user)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[remote.UserResponse](t, w)
	assert.Equal(t, msgUserCreated, resp.Message)
	assert.False(t, resp.Exists)
	assert.Equal(t, "college", resp.User.EducationLevel)
	assert.Contains(t, w.Body.String(), `"educationLevel"`)

	w = do(t, srv, http.MethodPost, remote.PathUsers, user)
	resp = decode[remote.UserResponse](t, w)
	assert.Equal(t, msgUserExists, resp.Message)
	assert.True(t, resp.Exists)

	w = do(t, srv, http.MethodGet, remote.PathCheckUser+"?email="+testEmail, nil)
	assert.True(t, decode[remote.UserCheckResponse](t, w).Exists)

	// A registered user with no guides lists an empty array, not null.
	w = do(t, srv, http.MethodGet, remote.PathListGuides+"?email="+testEmail, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"study_guides":[]`)
}

func TestSaveGuideLegacy(t *testing.T) {
	srv := newTestServer(t, Config{})
	do(t, srv, http.MethodPost, remote.PathUsers, remote.User{Email: testEmail})

	w := do(t, srv, http.MethodPost, remote.PathSaveGuide,
		remote.SaveRequest{Email: testEmail, Title: "Krebs cycle", Content: "Eight steps."})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	saved := decode[remote.SaveResponse](t, w)
	assert.Equal(t, msgSaved, saved.Message)
	assert.NotEmpty(t, saved.StudyGuideID)

	w = do(t, srv, http.MethodGet, remote.PathListGuides+"?email="+testEmail, nil)
	list := decode[remote.ListResponse](t, w)
	require.Len(t, list.StudyGuides, 1)
	assert.Equal(t, []remote.TurnRecord{{UserPrompt: "Krebs cycle", Response: "Eight steps."}},
		list.StudyGuides[0].Conversation)
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, Config{CORSOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodOptions, remote.PathGenerate, nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, Config{RateLimit: 0.001, RateBurst: 2})

	for i := 0; i < 2; i++ {
		w := do(t, srv, http.MethodGet, "/", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := do(t, srv, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestBodyLimit(t *testing.T) {
	srv := newTestServer(t, Config{MaxBodyBytes: 64})
	big := remote.GenerateRequest{Email: testEmail, UserPrompt: strings.Repeat("x", 200)}
	w := do(t, srv, http.MethodPost, remote.PathGenerate, big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRequestIDPassthrough(t *testing.T) {
	srv := newTestServer(t, Config{})
	const id = "0b5c6f7e-3c1d-4c55-9a7e-1f2d3c4b5a69"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, id)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get(HeaderRequestID))
}

func TestClientAgainstServer(t *testing.T) {
	srv := newTestServer(t, Config{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := remote.NewClient(ts.URL)
	ctx := t.Context()

	require.NoError(t, client.Ping(ctx))
	rec, err := client.CreateGuide(ctx, testEmail, "Mitochondria")
	require.NoError(t, err)
	resp, err := client.AppendTurn(ctx, rec.ID, testEmail, "ATP?")
	require.NoError(t, err)
	assert.NotEmpty(t, resp)

	guides, err := client.FetchGuides(ctx, testEmail)
	require.NoError(t, err)
	require.Len(t, guides, 1)
	assert.Len(t, guides[0].Conversation, 2)

	require.NoError(t, client.DeleteGuide(ctx, rec.ID, testEmail))
	err = client.DeleteGuide(ctx, rec.ID, testEmail)
	assert.ErrorIs(t, err, remote.ErrNotFound)
}
