// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logger provides the process-wide structured logger.
//
// Log lines are written with log/slog's text handler to an append-only file
// (the TUI owns the terminal) or to stderr for the server and one-shot
// commands. Components attach their name with WithComponent; guide-scoped
// code uses WithGuide.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Stderr is the Init path that selects standard error.
const Stderr = "-"

var (
	root     *slog.Logger
	levelVar = new(slog.LevelVar)
	logFile  *os.File
	mu       sync.Mutex
	logPath  string
	initDone bool
)

// SetDebug enables or disables debug level logging.
func SetDebug(enabled bool) {
	if enabled {
		levelVar.Set(slog.LevelDebug)
	} else {
		levelVar.Set(slog.LevelInfo)
	}
}

// Init initializes the logger. path is a file to append to, or Stderr.
// Calling Init again after a successful call is a no-op.
func Init(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if initDone {
		return nil
	}
	if path == "" || path == Stderr {
		root = newLogger(os.Stderr)
		logPath = Stderr
		initDone = true
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	logFile = f
	logPath = path
	root = newLogger(f)
	initDone = true

	root.Info("logger initialized", "path", path)
	return nil
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelVar}))
}

// ensureInit falls back to stderr when Init was never called.
// Caller must hold mu.
func ensureInit() {
	if initDone {
		return
	}
	root = newLogger(os.Stderr)
	logPath = Stderr
	initDone = true
}

// Path returns the active log destination.
func Path() string {
	mu.Lock()
	defer mu.Unlock()
	return logPath
}

// Get returns the root logger.
func Get() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	ensureInit()
	return root
}

// WithComponent returns a logger tagged with the component name.
//
//	log := logger.WithComponent("controller")
//	log.Warn("rename failed", "guideID", id, "error", err)
//	// level=WARN msg="rename failed" component=controller guideID=... error=...
func WithComponent(component string) *slog.Logger {
	return Get().With("component", component)
}

// WithGuide returns a logger tagged with a guide id or draft key.
func WithGuide(guideID string) *slog.Logger {
	return Get().With("guideID", guideID)
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	root = nil
	initDone = false
}

// Reset resets the logger state, allowing reinitialization.
// This is primarily for testing purposes.
func Reset() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	initDone = false
	logPath = ""
	root = nil
	levelVar = new(slog.LevelVar)
}
