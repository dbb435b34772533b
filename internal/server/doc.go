// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes study guide operations over HTTP with gin.
//
// # Endpoints
//
//   - GET  /                         - Welcome message
//   - POST /generate-guide           - Create a guide, or append with study_guide_id
//   - GET  /api/get-study-guides     - List a user's guides (?email=)
//   - POST /api/update-guide         - Append a follow-up turn
//   - POST /api/rename-study-guide   - Rename a guide
//   - POST /api/delete-study-guide   - Delete a guide
//   - POST /api/save-study-guide     - Import a finished guide
//   - POST /api/users                - Register a user
//   - GET  /api/users/check          - Check whether a user exists (?email=)
//   - GET  /api/events               - Websocket feed of change notices (?email=)
//
// Errors are returned as {"detail": "..."} with a 4xx or 5xx status.
//
// # Middleware
//
// Every request gets an X-Request-Id, a log line, panic recovery, CORS
// headers, a body size cap, a per-IP token bucket and a context deadline.
// The events route is exempt from the deadline.
//
// # Usage
//
//	srv := server.New(service.New(store, gen), server.DefaultConfig())
//	err := srv.Run(ctx)
package server
