// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/manovay/AP-Study-Guide-Generator/internal/model"
)

// JSONExporter exports guides in the same shape the API returns them, so
// an export can be re-imported with save-study-guide.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonTurn struct {
	UserPrompt string `json:"user_prompt"`
	Response   string `json:"response"`
}

type jsonGuide struct {
	ID           string     `json:"_id,omitempty"`
	Title        string     `json:"title"`
	Conversation []jsonTurn `json:"conversation"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Export converts a guide to indented JSON.
func (e *JSONExporter) Export(g *model.StudyGuide) ([]byte, error) {
	turns, err := completeTurns(g)
	if err != nil {
		return nil, err
	}
	out := jsonGuide{
		ID:           g.ID,
		Title:        g.GetTitle(),
		Conversation: make([]jsonTurn, len(turns)),
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
	for i, t := range turns {
		out.Conversation[i] = jsonTurn{UserPrompt: t.Prompt, Response: t.Response}
	}
	return json.MarshalIndent(out, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
