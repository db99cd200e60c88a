// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classify delegates normalized request text to the LLM
// classification capability and returns a structured safety verdict.
//
// The one guarantee this package makes to its callers: Classify always
// returns a well-formed Verdict. Transport failures, timeouts, and
// unparsable model replies all collapse into a degraded verdict that the
// policy layer treats as unsafe. No raw error escapes.
//
// Thread Safety:
//
//	All exported types are safe for concurrent use unless documented otherwise.
package classify

import (
	"fmt"
	"strings"
)

// Category labels the kind of safety issue a verdict identifies.
type Category string

const (
	CategoryUnknown    Category = "Unknown"
	CategorySelfHarm   Category = "Self-harm"
	CategoryViolence   Category = "Violence"
	CategoryFraud      Category = "Fraud"
	CategoryPhishing   Category = "Phishing"
	CategoryHarassment Category = "Harassment"
	CategoryPII        Category = "PII"
	CategoryMalware    Category = "Malware"
	CategoryExtremism  Category = "Extremism"
	CategoryNormal     Category = "Normal"
)

// Categories lists every known category in a stable order.
var Categories = []Category{
	CategoryUnknown, CategorySelfHarm, CategoryViolence, CategoryFraud,
	CategoryPhishing, CategoryHarassment, CategoryPII, CategoryMalware,
	CategoryExtremism, CategoryNormal,
}

// ParseCategory converts a model-supplied category string to a Category.
//
// Inputs:
//   - s: Category string from the model reply (e.g., "Fraud", "self-harm").
//
// Outputs:
//   - Category: The matched category. Defaults to CategoryUnknown for
//     anything unrecognized (fail-safe).
func ParseCategory(s string) Category {
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c
		}
	}
	// Common aliases the model produces.
	switch {
	case strings.EqualFold(s, "selfharm"), strings.EqualFold(s, "self_harm"):
		return CategorySelfHarm
	case strings.EqualFold(s, "safe"):
		return CategoryNormal
	}
	return CategoryUnknown
}

// Severity grades how serious a flagged category is.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// ParseSeverity converts a model-supplied severity string to a Severity.
// Unrecognized values default to SeverityMedium, matching the degraded
// verdict's severity.
func ParseSeverity(s string) Severity {
	switch {
	case strings.EqualFold(s, "low"):
		return SeverityLow
	case strings.EqualFold(s, "medium"):
		return SeverityMedium
	case strings.EqualFold(s, "high"):
		return SeverityHigh
	default:
		return SeverityMedium
	}
}


// Verdict is the structured safety classification for one input text.
//
// Invariant: when Err is non-empty the verdict must be treated as unsafe
// regardless of the literal IsSafe value. Unsafe() encodes this; callers
// must never read IsSafe directly for enforcement decisions.
//
// Thread Safety: Verdict is a value type and safe to copy.
type Verdict struct {
	// IsSafe is the model's literal safety assessment.
	IsSafe bool `json:"is_safe"`

	// Category is the identified issue category (CategoryNormal when safe).
	Category Category `json:"category"`

	// Severity grades the issue. Meaningless when IsSafe.
	Severity Severity `json:"severity"`

	// RiskScore is the model's risk estimate in [0, 1].
	RiskScore float64 `json:"risk_score"`

	// Err records why classification degraded. Empty on a clean verdict.
	Err string `json:"error,omitempty"`
}

// Unsafe reports whether enforcement must treat this verdict as unsafe.
// A degraded verdict (Err set) is always unsafe, whatever IsSafe says.
func (v Verdict) Unsafe() bool {
	return v.Err != "" || !v.IsSafe
}

// Degraded reports whether this verdict came from a classification failure.
func (v Verdict) Degraded() bool {
	return v.Err != ""
}

// DegradedVerdict builds the fail-closed verdict returned when the
// classification capability fails or replies with something unparsable.
//
// Inputs:
//   - reason: Why classification failed. Stored in Err; never shown to
//     end users (the policy layer maps ERROR outcomes to a fixed message).
//
// Outputs:
//   - Verdict: Unknown category, Medium severity, unsafe.
func DegradedVerdict(reason string) Verdict {
	return Verdict{
		IsSafe:    false,
		Category:  CategoryUnknown,
		Severity:  SeverityMedium,
		RiskScore: 0.5,
		Err:       reason,
	}
}

// wireVerdict is the JSON shape expected from the model. Fields are
// deliberately loose (strings, not enums) so coercion happens in one place.
type wireVerdict struct {
	IsSafe    *bool   `json:"is_safe"`
	Category  string  `json:"category"`
	Severity  string  `json:"severity"`
	RiskScore float64 `json:"risk_score"`
	Reasoning string  `json:"reasoning"`
}

// toVerdict coerces a wire reply into a strict Verdict.
// A missing is_safe field is a schema violation, reported by the caller.
func (w wireVerdict) toVerdict() (Verdict, error) {
	if w.IsSafe == nil {
		return Verdict{}, fmt.Errorf("reply missing is_safe field")
	}
	score := w.RiskScore
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	v := Verdict{
		IsSafe:    *w.IsSafe,
		Category:  ParseCategory(w.Category),
		Severity:  ParseSeverity(w.Severity),
		RiskScore: score,
	}
	if v.IsSafe && w.Category == "" {
		v.Category = CategoryNormal
	}
	return v, nil
}
