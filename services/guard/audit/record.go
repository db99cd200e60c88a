// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package audit persists one immutable record per screened request and
// writes the matching structured log entry.
//
// Audit writes are best-effort and detached from the caller's request
// context: a client that disconnects mid-request still leaves a record,
// and an audit failure never changes the caller-visible outcome.
package audit

import (
	"errors"
	"time"

	"github.com/AleutianAI/AleutianGuard/services/guard/classify"
	"github.com/AleutianAI/AleutianGuard/services/guard/policy"
)

// ErrDuplicate is returned by Store.Append when a record already exists
// for the request ID. Records are append-only and never rewritten.
var ErrDuplicate = errors.New("audit: record already exists")

// ErrNotFound is returned by Store.Get for an unknown request ID.
var ErrNotFound = errors.New("audit: record not found")

// Record is the audit trail entry for one request.
//
// Invariant: exactly one Record exists per request ID, written after the
// pipeline outcome is known. Text holds the sanitized message, never the
// raw input.
type Record struct {
	RequestID      string `json:"request_id"`
	ClientID       string `json:"client_id"`
	ConversationID string `json:"conversation_id,omitempty"`

	Text    string `json:"text"`
	Context string `json:"context,omitempty"`

	// Verdict snapshot. Empty category means classification never ran
	// (for example a rate-limited request).
	IsSafe     bool              `json:"is_safe"`
	Category   classify.Category `json:"category,omitempty"`
	Severity   classify.Severity `json:"severity,omitempty"`
	RiskScore  float64           `json:"risk_score"`
	VerdictErr string            `json:"verdict_err,omitempty"`

	Action   policy.Action `json:"action"`
	Response string        `json:"response,omitempty"`

	Timestamp        time.Time `json:"timestamp"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
}

func (r Record) validate() error {
	if r.RequestID == "" {
		return errors.New("audit: record missing request ID")
	}
	if r.ClientID == "" {
		return errors.New("audit: record missing client ID")
	}
	if r.Action == "" {
		return errors.New("audit: record missing action")
	}
	return nil
}
