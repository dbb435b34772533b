// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the tootur command line.
//
// # Commands
//
//   - (none): interactive study guide screen
//   - ask: generate a guide or follow-up and print it
//   - chat: line-mode conversation with history
//   - guides: list, show, rename, delete, export, search and import guides
//   - serve: run the HTTP API
//   - config: show, path, init, get and set configuration
//   - user: register or check a user
//   - version: print version information
//
// Every command accepts --config, --email, --mode, --debug and --json.
// Errors map to exit codes through ExitCode.
package cli
