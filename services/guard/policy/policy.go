// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package policy maps classification verdicts to enforcement outcomes.
//
// The threshold table is keyed by (category, severity). Per-client
// overrides take precedence over the default table; a lookup that matches
// neither blocks (fail closed). Outcome messages are fixed user-facing
// strings per category; internal verdict fields never appear in them.
package policy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianGuard/services/guard/classify"
)

// Action is the concrete enforcement decision for one request.
type Action string

const (
	ActionAllow Action = "ALLOW"
	ActionWarn  Action = "WARN"
	ActionBlock Action = "BLOCK"
	ActionError Action = "ERROR"
)

// valid reports whether a string names a threshold-table action.
// ALLOW and ERROR are pipeline outcomes, never table entries.
func (a Action) valid() bool {
	return a == ActionWarn || a == ActionBlock
}

// Key addresses one cell of the threshold table.
type Key struct {
	Category classify.Category
	Severity classify.Severity
}

// Thresholds maps (category, severity) to the action taken for an unsafe
// verdict in that cell. Missing cells block.
type Thresholds map[Key]Action

// Outcome is the enforcement decision plus its user-facing message.
//
// Invariant: Action == ActionAllow only for a clean safe verdict. The
// Message on an allow outcome is empty; the response generator supplies
// the content.
type Outcome struct {
	Action  Action `json:"action"`
	Message string `json:"message"`
}

// processingFailedMessage is the only message ever shown for degraded
// classifications. Deliberately uninformative: the failure reason stays
// in the audit record.
const processingFailedMessage = "Processing failed"

// GenericBlockedMessage replaces the category-specific message on blocked
// and warned responses for clients whose policy withholds classification
// detail.
const GenericBlockedMessage = "Request blocked by safety policy."

// categoryMessages are the user-facing explanations per category. These
// are the complete set of strings a blocked or warned caller can see.
var categoryMessages = map[classify.Category]string{
	classify.CategorySelfHarm:   "This request was flagged by our safety system. If you are in crisis, please reach out to a local support service.",
	classify.CategoryViolence:   "This request appears to involve violent content and cannot be processed.",
	classify.CategoryFraud:      "This request appears to involve fraudulent activity and cannot be processed.",
	classify.CategoryPhishing:   "This request appears to involve phishing and cannot be processed.",
	classify.CategoryHarassment: "This request appears to involve harassment and cannot be processed.",
	classify.CategoryPII:        "This request appears to contain personal identifying information and cannot be processed.",
	classify.CategoryMalware:    "This request appears to involve malicious software and cannot be processed.",
	classify.CategoryExtremism:  "This request appears to involve extremist content and cannot be processed.",
	classify.CategoryUnknown:    "This request could not be verified as safe and cannot be processed.",
}

// DefaultThresholds returns the built-in threshold table.
//
// Description:
//
//	High severity blocks everywhere. Medium severity blocks for the
//	categories where a warning is not an acceptable floor (self-harm,
//	violence, malware, extremism) and warns elsewhere. Low severity
//	warns. Unknown blocks at every severity: an unverifiable verdict
//	never passes with a warning.
func DefaultThresholds() Thresholds {
	t := make(Thresholds)
	for _, cat := range classify.Categories {
		if cat == classify.CategoryNormal {
			continue
		}
		t[Key{cat, classify.SeverityHigh}] = ActionBlock
		t[Key{cat, classify.SeverityMedium}] = ActionWarn
		t[Key{cat, classify.SeverityLow}] = ActionWarn
	}
	for _, cat := range []classify.Category{
		classify.CategorySelfHarm,
		classify.CategoryViolence,
		classify.CategoryMalware,
		classify.CategoryExtremism,
		classify.CategoryUnknown,
	} {
		t[Key{cat, classify.SeverityMedium}] = ActionBlock
	}
	t[Key{classify.CategoryUnknown, classify.SeverityLow}] = ActionBlock
	return t
}

// Enforcer derives enforcement outcomes from verdicts.
//
// Thread Safety: Safe for concurrent use; the table is read-only after
// construction.
type Enforcer struct {
	defaults Thresholds
}

// NewEnforcer creates an Enforcer over the given default table.
// A nil table uses DefaultThresholds.
func NewEnforcer(defaults Thresholds) *Enforcer {
	if defaults == nil {
		defaults = DefaultThresholds()
	}
	return &Enforcer{defaults: defaults}
}

// Enforce maps a verdict and per-client overrides to an Outcome.
//
// Description:
//
//	Decision order:
//	  1. Degraded verdict (Err set) → ERROR with a fixed message. This is
//	     the fail-closed arm; a degraded verdict can never allow.
//	  2. Clean safe verdict → ALLOW (message deferred to the generator).
//	  3. Unsafe verdict → client override, then default table, then BLOCK.
//
// Inputs:
//   - verdict: The classification verdict.
//   - overrides: Per-client threshold overrides. May be nil.
//
// Outputs:
//   - Outcome: The enforcement decision. Never zero-valued.
func (e *Enforcer) Enforce(verdict classify.Verdict, overrides Thresholds) Outcome {
	if verdict.Degraded() {
		return Outcome{Action: ActionError, Message: processingFailedMessage}
	}
	if !verdict.Unsafe() {
		return Outcome{Action: ActionAllow}
	}

	key := Key{verdict.Category, verdict.Severity}
	action := ActionBlock
	if a, ok := overrides[key]; ok && a.valid() {
		action = a
	} else if a, ok := e.defaults[key]; ok && a.valid() {
		action = a
	}

	message, ok := categoryMessages[verdict.Category]
	if !ok {
		message = categoryMessages[classify.CategoryUnknown]
	}
	return Outcome{Action: action, Message: message}
}

// =============================================================================
// YAML threshold file
// =============================================================================

// thresholdFile is the on-disk YAML shape:
//
//	thresholds:
//	  Fraud:
//	    High: BLOCK
//	    Medium: WARN
type thresholdFile struct {
	Thresholds map[string]map[string]string `yaml:"thresholds"`
}

// LoadThresholds reads a threshold table from a YAML file.
//
// Description:
//
//	Unknown categories, severities, or actions are rejected rather than
//	silently ignored, so a typo in the policy file fails startup instead
//	of weakening enforcement at runtime.
//
// Inputs:
//   - path: Path to the YAML file.
//
// Outputs:
//   - Thresholds: The parsed table.
//   - error: Non-nil on read, parse, or vocabulary errors.
func LoadThresholds(path string) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read thresholds file: %w", err)
	}
	return ParseThresholds(data)
}

// ParseThresholds parses YAML threshold content. See LoadThresholds.
func ParseThresholds(data []byte) (Thresholds, error) {
	var file thresholdFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("policy: parse thresholds YAML: %w", err)
	}
	return ThresholdsFromWire(file.Thresholds)
}

// Wire converts a threshold table into the nested string-map form used
// for YAML files and stored client records.
func (t Thresholds) Wire() map[string]map[string]string {
	if len(t) == 0 {
		return nil
	}
	m := make(map[string]map[string]string)
	for key, action := range t {
		cell, ok := m[string(key.Category)]
		if !ok {
			cell = make(map[string]string)
			m[string(key.Category)] = cell
		}
		cell[string(key.Severity)] = string(action)
	}
	return m
}

// ThresholdsFromWire validates and converts the nested string-map form
// back into a threshold table. Vocabulary errors are rejected the same
// way ParseThresholds rejects them.
func ThresholdsFromWire(wire map[string]map[string]string) (Thresholds, error) {
	t := make(Thresholds)
	for catName, severities := range wire {
		cat := classify.ParseCategory(catName)
		if cat == classify.CategoryUnknown && catName != string(classify.CategoryUnknown) {
			return nil, fmt.Errorf("policy: unknown category %q in thresholds", catName)
		}
		for sevName, actionName := range severities {
			var sev classify.Severity
			switch classify.ParseSeverity(sevName) {
			case classify.SeverityLow:
				sev = classify.SeverityLow
			case classify.SeverityHigh:
				sev = classify.SeverityHigh
			case classify.SeverityMedium:
				if !strings.EqualFold(sevName, string(classify.SeverityMedium)) {
					return nil, fmt.Errorf("policy: unknown severity %q for category %q", sevName, catName)
				}
				sev = classify.SeverityMedium
			}
			action := Action(actionName)
			if !action.valid() {
				return nil, fmt.Errorf("policy: action %q for (%s, %s) must be WARN or BLOCK", actionName, catName, sevName)
			}
			t[Key{cat, sev}] = action
		}
	}
	return t, nil
}
