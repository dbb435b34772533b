// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generate

import (
	"context"
	"fmt"
	"strings"
)

// Offline is a deterministic generator that never leaves the process. It
// is used for local development and tests.
type Offline struct{}

// Generate implements Generator.
func (Offline) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var sb strings.Builder
	topic := req.Prompt
	if len(req.History) > 0 {
		topic = req.History[0].Prompt
	}
	fmt.Fprintf(&sb, "# Study Guide: %s\n\n", topic)
	if len(req.History) > 0 {
		fmt.Fprintf(&sb, "Follow-up %d: %s\n\n", len(req.History), req.Prompt)
	}
	sb.WriteString("## Key Points\n\n")
	for _, w := range strings.Fields(req.Prompt) {
		fmt.Fprintf(&sb, "- %s\n", w)
	}
	return sb.String(), nil
}
