// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package normalize

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestSanitize_StripsControlCharacters(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text unchanged", "hello world", "hello world"},
		{"NUL removed", "hel\x00lo", "hello"},
		{"C0 removed", "a\x01\x02\x03b", "ab"},
		{"DEL removed", "a\x7Fb", "ab"},
		{"C1 removed", "ab", "ab"},
		{"interior newline removed", "line1\nline2", "line1line2"},
		{"interior tab removed", "a\tb", "ab"},
		{"interior whitespace controls removed", "hello\tworld\ninner\rtext", "helloworldinnertext"},
		{"edges trimmed", "  \t hello \n ", "hello"},
		{"empty", "", ""},
		{"only control chars", "\x00\x01\x1F", ""},
		{"unicode preserved", "héllo wörld 你好", "héllo wörld 你好"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		once := Sanitize(s)
		twice := Sanitize(once)
		if once != twice {
			t.Fatalf("Sanitize not idempotent: %q -> %q -> %q", s, once, twice)
		}
	})
}

func TestSanitize_NeverContainsControlCharacters(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		for _, r := range Sanitize(s) {
			if r < 0x20 || r == 0x7F || (r >= 0x80 && r <= 0x9F) {
				t.Fatalf("control rune %U survived sanitization of %q", r, s)
			}
		}
	})
}

func TestComplexityScore_Bounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		score := ComplexityScore(s)
		if score < 0 || score > 100 {
			t.Fatalf("ComplexityScore(%q) = %d, out of [0,100]", s, score)
		}
	})
}

func TestComplexityScore_Deterministic(t *testing.T) {
	input := "The quick brown fox jumps over the lazy dog!"
	first := ComplexityScore(input)
	for i := 0; i < 10; i++ {
		if got := ComplexityScore(input); got != first {
			t.Fatalf("score changed between calls: %d vs %d", first, got)
		}
	}
}

func TestComplexityScore_Ordering(t *testing.T) {
	empty := ComplexityScore("")
	if empty != 0 {
		t.Errorf("empty text should score 0, got %d", empty)
	}

	simple := ComplexityScore("hi")
	dense := ComplexityScore(strings.Repeat("xQ7#kP2$mW9@", 30))
	if simple >= dense {
		t.Errorf("short simple text (%d) should score below long dense text (%d)", simple, dense)
	}
}

func TestDetectScript(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Script
	}{
		{"english", "hello world", ScriptLatin},
		{"chinese", "你好世界", ScriptCJK},
		{"hiragana", "こんにちは", ScriptJapanese},
		{"katakana", "カタカナ", ScriptJapanese},
		{"korean", "안녕하세요", ScriptHangul},
		{"arabic", "مرحبا", ScriptArabic},
		{"russian", "привет", ScriptCyrillic},
		{"hindi", "नमस्ते", ScriptDevanagari},
		{"thai", "สวัสดี", ScriptThai},
		{"hebrew", "שלום", ScriptHebrew},
		{"greek", "γειά σου", ScriptGreek},
		{"digits only", "12345", ScriptUnknown},
		{"empty", "", ScriptUnknown},
		// Mixed scripts resolve by list order: Latin wins over Cyrillic.
		{"mixed latin cyrillic", "hello привет", ScriptLatin},
		// Han before kana in the order, so mixed Japanese with kanji is cjk.
		{"japanese with kanji", "日本語のテキスト", ScriptCJK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectScript(tt.input); got != tt.want {
				t.Errorf("DetectScript(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExtractEntities(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantTypes []EntityType
	}{
		{
			name:      "email",
			input:     "contact me at alice@example.com please",
			wantTypes: []EntityType{EntityEmail},
		},
		{
			name:      "url",
			input:     "see https://example.com/path?q=1 for details",
			wantTypes: []EntityType{EntityURL},
		},
		{
			name:      "ipv4",
			input:     "server at 192.168.1.1 is down",
			wantTypes: []EntityType{EntityIPv4},
		},
		{
			name:      "card-like digits",
			input:     "charge 4111 1111 1111 1111 now",
			wantTypes: []EntityType{EntityCard},
		},
		{
			name:      "phone",
			input:     "call +1 555-123-4567 today",
			wantTypes: []EntityType{EntityPhone},
		},
		{
			name:      "multiple types from one text",
			input:     "email bob@test.org or visit http://test.org",
			wantTypes: []EntityType{EntityEmail, EntityURL},
		},
		{
			name:      "nothing",
			input:     "just a plain sentence",
			wantTypes: []EntityType{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractEntities(tt.input)
			if got == nil {
				t.Fatal("ExtractEntities returned nil, want empty slice")
			}
			seen := make(map[EntityType]bool)
			for _, e := range got {
				seen[e.Type] = true
			}
			for _, want := range tt.wantTypes {
				if !seen[want] {
					t.Errorf("expected entity type %q in %v", want, got)
				}
			}
			if len(tt.wantTypes) == 0 && len(got) != 0 {
				t.Errorf("expected no entities, got %v", got)
			}
		})
	}
}

func TestExtractEntities_EmailAlsoMatchesNothingElse(t *testing.T) {
	got := ExtractEntities("alice@example.com")
	for _, e := range got {
		if e.Type == EntityEmail && e.Value != "alice@example.com" {
			t.Errorf("email value = %q", e.Value)
		}
	}
}
