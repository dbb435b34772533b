// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes study guides to files.
//
// # Supported Formats
//
//   - Markdown: frontmatter plus the responses verbatim
//   - JSON: the API's guide shape, accepted back by save-study-guide
//   - HTML: standalone page with responses rendered by goldmark
//
// Only complete turns are exported; a pending turn is skipped.
//
// # Usage
//
//	ex, err := export.ForFormat("html", opts)
//	...
//	path, err := export.ExportToFile(guide, ex, opts)
package export
