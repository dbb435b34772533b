// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reveal

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Granularity selects the unit a stream advances by.
type Granularity int

const (
	// Char advances one rune per unit.
	Char Granularity = iota

	// Word advances one whitespace-delimited word per unit. Whitespace
	// before a word is revealed together with it.
	Word
)

// String returns the config name of the granularity.
func (g Granularity) String() string {
	if g == Word {
		return "word"
	}
	return "char"
}

// ParseGranularity parses "char" or "word".
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "char", "character":
		return Char, nil
	case "word":
		return Word, nil
	default:
		return Char, fmt.Errorf("unknown reveal granularity %q", s)
	}
}

// Options configures a stream.
type Options struct {
	Granularity Granularity
	Rate        int // units per Next call
}

// DefaultOptions reveals one character per step.
func DefaultOptions() Options {
	return Options{Granularity: Char, Rate: 1}
}

// =============================================================================
// STREAM
// =============================================================================

// Stream is a lazy, finite, restartable sequence of prefixes of a text.
// The first prefix is always empty and the last is the full text. Each
// prefix is a strict extension of the previous one.
//
// Stream is not safe for concurrent use; Player adds locking.
type Stream struct {
	text   string
	bounds []int // byte offsets of unit ends; bounds[0] == 0
	idx    int   // index into bounds of the last emitted prefix, -1 before start
	opts   Options
}

// NewStream creates a stream over text.
func NewStream(text string, opts Options) *Stream {
	if opts.Rate <= 0 {
		opts.Rate = 1
	}
	s := &Stream{opts: opts}
	s.Reset(text)
	return s
}

// Reset discards the current sequence and starts again from empty with text.
func (s *Stream) Reset(text string) {
	s.text = text
	s.bounds = boundaries(text, s.opts.Granularity)
	s.idx = -1
}

// Next returns the next prefix. ok is false once the full text has been
// returned.
func (s *Stream) Next() (prefix string, ok bool) {
	last := len(s.bounds) - 1
	if s.idx >= last {
		return "", false
	}
	if s.idx < 0 {
		s.idx = 0
	} else {
		s.idx += s.opts.Rate
		if s.idx > last {
			s.idx = last
		}
	}
	return s.text[:s.bounds[s.idx]], true
}

// SkipToEnd jumps to the full text.
func (s *Stream) SkipToEnd() string {
	s.idx = len(s.bounds) - 1
	return s.text
}

// Current returns the last emitted prefix.
func (s *Stream) Current() string {
	if s.idx < 0 {
		return ""
	}
	return s.text[:s.bounds[s.idx]]
}

// Offset returns the byte offset of the last emitted prefix.
func (s *Stream) Offset() int {
	if s.idx < 0 {
		return 0
	}
	return s.bounds[s.idx]
}

// Done reports whether the full text has been emitted.
func (s *Stream) Done() bool {
	return s.idx >= len(s.bounds)-1
}

// Units returns the number of units in the text.
func (s *Stream) Units() int {
	return len(s.bounds) - 1
}

// Text returns the full text.
func (s *Stream) Text() string {
	return s.text
}

// boundaries returns the byte offsets at which prefixes end, starting at 0
// and ending at len(text).
func boundaries(text string, g Granularity) []int {
	bounds := make([]int, 1, utf8.RuneCountInString(text)+1)
	if text == "" {
		return bounds
	}
	if g == Char {
		for i := range text {
			if i > 0 {
				bounds = append(bounds, i)
			}
		}
		return append(bounds, len(text))
	}

	inWord := false
	for i, r := range text {
		space := unicode.IsSpace(r)
		if inWord && space && i > 0 {
			bounds = append(bounds, i)
		}
		inWord = !space
	}
	if bounds[len(bounds)-1] != len(text) {
		bounds = append(bounds, len(text))
	}
	return bounds
}
