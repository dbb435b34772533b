// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reveal

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func collect(s *Stream) []string {
	var out []string
	for {
		p, ok := s.Next()
		if !ok {
			return out
		}
		out = append(out, p)
	}
}

func TestStreamPrefixes(t *testing.T) {
	inputs := []string{"a", "Hello", "héllo wörld", "光合作用", "line1\nline2"}
	for _, text := range inputs {
		got := collect(NewStream(text, DefaultOptions()))
		n := utf8.RuneCountInString(text)

		if len(got) != n+1 {
			t.Fatalf("%q: got %d prefixes, want %d", text, len(got), n+1)
		}
		if got[0] != "" {
			t.Errorf("%q: first prefix = %q, want empty", text, got[0])
		}
		if got[len(got)-1] != text {
			t.Errorf("%q: last prefix = %q, want full text", text, got[len(got)-1])
		}
		for i := 1; i < len(got); i++ {
			if len(got[i]) <= len(got[i-1]) || !strings.HasPrefix(got[i], got[i-1]) {
				t.Errorf("%q: prefix %d (%q) is not a strict extension of %q", text, i, got[i], got[i-1])
			}
		}
	}
}

func TestStreamEmpty(t *testing.T) {
	s := NewStream("", DefaultOptions())
	got := collect(s)
	if len(got) != 1 || got[0] != "" {
		t.Errorf("empty stream = %q, want single empty prefix", got)
	}
	if !s.Done() {
		t.Error("empty stream should be done")
	}
}

func TestStreamReset(t *testing.T) {
	s := NewStream("abcdef", DefaultOptions())
	s.Next()
	s.Next()
	s.Next()
	if s.Current() != "ab" {
		t.Fatalf("Current() = %q, want %q", s.Current(), "ab")
	}

	s.Reset("xyz")
	got := collect(s)
	want := []string{"", "x", "xy", "xyz"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("after reset got %q, want %q", got, want)
	}
}

func TestStreamWordGranularity(t *testing.T) {
	s := NewStream("The  light reactions", Options{Granularity: Word, Rate: 1})
	got := collect(s)
	want := []string{"", "The", "The  light", "The  light reactions"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("word stream = %q, want %q", got, want)
	}
	if s.Units() != 3 {
		t.Errorf("Units() = %d, want 3", s.Units())
	}
}

func TestStreamRate(t *testing.T) {
	got := collect(NewStream("abcde", Options{Granularity: Char, Rate: 2}))
	want := []string{"", "ab", "abcd", "abcde"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("rate 2 = %q, want %q", got, want)
	}
}

func TestStreamSkipToEnd(t *testing.T) {
	s := NewStream("abc", DefaultOptions())
	s.Next()
	if got := s.SkipToEnd(); got != "abc" {
		t.Errorf("SkipToEnd() = %q", got)
	}
	if _, ok := s.Next(); ok {
		t.Error("Next after SkipToEnd should report done")
	}
	if s.Offset() != 3 {
		t.Errorf("Offset() = %d, want 3", s.Offset())
	}
}

func TestParseGranularity(t *testing.T) {
	if g, err := ParseGranularity("Word"); err != nil || g != Word {
		t.Errorf("ParseGranularity(Word) = %v, %v", g, err)
	}
	if g, err := ParseGranularity(""); err != nil || g != Char {
		t.Errorf("ParseGranularity(\"\") = %v, %v", g, err)
	}
	if _, err := ParseGranularity("sentence"); err == nil {
		t.Error("expected error for unknown granularity")
	}
}
