// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package normalize sanitizes raw request text and extracts screening signals
// from it: a complexity score, the dominant writing script, and structured
// entities (emails, URLs, phone numbers, card-like digit groups, IPv4
// addresses). Everything in this package is a pure function over the input
// string; nothing here performs I/O or holds state.
//
// Thread Safety:
//
//	All exported functions are safe for concurrent use.
package normalize

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// Sanitize strips control characters from raw input text.
//
// Description:
//
//	Removes the entire C0 range (including tab, newline, and carriage
//	return), DEL, and the C1 range, then trims leading and trailing
//	whitespace. Never fails; an empty or all-control input yields the
//	empty string.
//
//	Sanitize is idempotent: Sanitize(Sanitize(s)) == Sanitize(s).
//
// Inputs:
//   - s: Raw text. May contain arbitrary bytes decoded as UTF-8.
//
// Outputs:
//   - string: The sanitized text.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r < 0x20: // C0, including tab/newline/CR
			return -1
		case r == 0x7F: // DEL
			return -1
		case r >= 0x80 && r <= 0x9F: // C1
			return -1
		default:
			return r
		}
	}, s)
	return strings.TrimSpace(cleaned)
}

// Complexity sub-score weights. Each sub-score is capped at its weight
// before summing, so the total is always in [0, 100].
const (
	weightLength      = 25
	weightPunctuation = 25
	weightTokenLength = 25
	weightEntropy     = 25
)

// ComplexityScore computes a deterministic 0-100 complexity score for text.
//
// Description:
//
//	Weighted sum of four normalized sub-scores: rune length, punctuation
//	density, mean token length, and Shannon entropy of the character
//	distribution. Each sub-score is capped at its weight before summing.
//	The score is a screening signal (unusually dense or high-entropy input
//	correlates with obfuscation attempts), not a language-quality measure.
//
// Inputs:
//   - s: The text to score. Empty text scores 0.
//
// Outputs:
//   - int: Score in [0, 100]. Deterministic for a given input.
func ComplexityScore(s string) int {
	runes := []rune(s)
	if len(runes) == 0 {
		return 0
	}

	// Length: 200+ runes saturate the sub-score.
	lengthScore := float64(len(runes)) / 8.0
	if lengthScore > weightLength {
		lengthScore = weightLength
	}

	// Punctuation density as a percentage of all runes.
	punctCount := 0
	for _, r := range runes {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			punctCount++
		}
	}
	punctScore := float64(punctCount) / float64(len(runes)) * 100
	if punctScore > weightPunctuation {
		punctScore = weightPunctuation
	}

	// Mean token length. 10+ runes per token saturates.
	tokens := strings.Fields(s)
	tokenScore := 0.0
	if len(tokens) > 0 {
		total := 0
		for _, tok := range tokens {
			total += len([]rune(tok))
		}
		tokenScore = float64(total) / float64(len(tokens)) * 2.5
		if tokenScore > weightTokenLength {
			tokenScore = weightTokenLength
		}
	}

	// Shannon entropy of the rune distribution, in bits. English prose sits
	// around 4 bits; 4+ saturates the sub-score.
	entropyScore := shannonEntropy(runes) / 4.0 * weightEntropy
	if entropyScore > weightEntropy {
		entropyScore = weightEntropy
	}

	return int(lengthScore + punctScore + tokenScore + entropyScore)
}

// shannonEntropy computes the Shannon entropy of the rune distribution in bits.
func shannonEntropy(runes []rune) float64 {
	if len(runes) == 0 {
		return 0
	}
	freq := make(map[rune]int, len(runes))
	for _, r := range runes {
		freq[r]++
	}
	total := float64(len(runes))
	entropy := 0.0
	for _, count := range freq {
		p := float64(count) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// Script identifies the dominant Unicode writing script of a text.
type Script string

const (
	ScriptLatin      Script = "latin"
	ScriptCJK        Script = "cjk"
	ScriptJapanese   Script = "japanese"
	ScriptHangul     Script = "hangul"
	ScriptArabic     Script = "arabic"
	ScriptCyrillic   Script = "cyrillic"
	ScriptDevanagari Script = "devanagari"
	ScriptThai       Script = "thai"
	ScriptHebrew     Script = "hebrew"
	ScriptGreek      Script = "greek"
	ScriptUnknown    Script = "unknown"
)

// scriptPattern pairs a script with its Unicode-block matcher.
//
// IMPORTANT: Order matters. The first matching pattern wins, which is the
// tie-break when a text mixes scripts (e.g. CJK ideographs inside Japanese
// text match CJK first, so kana is checked through the Japanese entry only
// when no Han ideograph precedes it in the list order).
var scriptPatterns = []struct {
	script  Script
	pattern *regexp.Regexp
}{
	{ScriptLatin, regexp.MustCompile(`\p{Latin}`)},
	{ScriptCJK, regexp.MustCompile(`\p{Han}`)},
	{ScriptJapanese, regexp.MustCompile(`[\p{Hiragana}\p{Katakana}]`)},
	{ScriptHangul, regexp.MustCompile(`\p{Hangul}`)},
	{ScriptArabic, regexp.MustCompile(`\p{Arabic}`)},
	{ScriptCyrillic, regexp.MustCompile(`\p{Cyrillic}`)},
	{ScriptDevanagari, regexp.MustCompile(`\p{Devanagari}`)},
	{ScriptThai, regexp.MustCompile(`\p{Thai}`)},
	{ScriptHebrew, regexp.MustCompile(`\p{Hebrew}`)},
	{ScriptGreek, regexp.MustCompile(`\p{Greek}`)},
}

// DetectScript returns the first script whose Unicode block matches the text.
//
// Inputs:
//   - s: The text to inspect.
//
// Outputs:
//   - Script: The matched script, or ScriptUnknown when no block matches
//     (digits, punctuation, and emoji-only input fall through to unknown).
func DetectScript(s string) Script {
	for _, sp := range scriptPatterns {
		if sp.pattern.MatchString(s) {
			return sp.script
		}
	}
	return ScriptUnknown
}

// EntityType labels a structured entity found in request text.
type EntityType string

const (
	EntityEmail EntityType = "email"
	EntityURL   EntityType = "url"
	EntityPhone EntityType = "phone"
	EntityCard  EntityType = "card"
	EntityIPv4  EntityType = "ipv4"
)

// Entity is one structured value extracted from request text.
type Entity struct {
	Type  EntityType `json:"type"`
	Value string     `json:"value"`
}

// entityPatterns are the fixed extraction patterns, scanned independently.
// These are screening signals, not compliance checks: a digit group that
// merely looks like a card number is still reported.
var entityPatterns = []struct {
	entityType EntityType
	pattern    *regexp.Regexp
}{
	{EntityEmail, regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
	{EntityURL, regexp.MustCompile(`https?://[^\s<>"]+`)},
	{EntityPhone, regexp.MustCompile(`\+?\d{1,3}[\s.\-]?\(?\d{2,4}\)?[\s.\-]?\d{3,4}[\s.\-]?\d{3,4}`)},
	{EntityCard, regexp.MustCompile(`\b(?:\d[ \-]?){13,19}\b`)},
	{EntityIPv4, regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
}

// ExtractEntities scans text for emails, URLs, phone numbers, card-like
// digit groups, and IPv4 addresses.
//
// Description:
//
//	Each pattern is scanned independently, so a single text can contribute
//	entities of multiple types and the same substring can appear under more
//	than one type. No cross-validation is performed.
//
// Inputs:
//   - s: The text to scan.
//
// Outputs:
//   - []Entity: All matches in pattern order. Empty (non-nil) slice when
//     nothing matches.
func ExtractEntities(s string) []Entity {
	entities := make([]Entity, 0)
	for _, ep := range entityPatterns {
		for _, match := range ep.pattern.FindAllString(s, -1) {
			entities = append(entities, Entity{Type: ep.entityType, Value: match})
		}
	}
	return entities
}
