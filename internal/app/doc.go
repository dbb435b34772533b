// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app wires configuration into a running client session.
//
// In local mode the remote store is an in-process service over the SQLite
// database; in http mode it is a client for a running "tootur serve". Either
// way the controller and registry on top are the same.
package app
