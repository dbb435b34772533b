// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reveal turns a complete response into a progressively revealed
// sequence of prefixes for the typing effect.
//
// A Stream is pull based: each Next call yields the next prefix, so the
// caller decides the cadence. A Player owns one stream per guide key and can
// optionally drive it from a ticker, emitting Frames to a sink. Starting a
// new stream for a key cancels the old one and no frame from the old stream
// is delivered afterwards.
//
// # Usage
//
//	s := reveal.NewStream("Hello", reveal.DefaultOptions())
//	for {
//	    prefix, ok := s.Next()
//	    if !ok {
//	        break
//	    }
//	    render(prefix) // "", "H", "He", ... "Hello"
//	}
package reveal
