// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package guard implements the inline safety-screening pipeline: every
// inbound message is rate-limited, authenticated, normalized, classified,
// enforced against policy, and audited before any generated reply is
// returned.
package guard

import (
	"time"

	"github.com/AleutianAI/AleutianGuard/services/guard/classify"
	"github.com/AleutianAI/AleutianGuard/services/guard/policy"
)

// ChatRequest is the inbound body for POST /v1/chat.
type ChatRequest struct {
	Text           string `json:"text" binding:"required"`
	APIKey         string `json:"apiKey" binding:"required"`
	ClientID       string `json:"clientId" binding:"required"`
	ConversationID string `json:"conversationId"`
	Context        string `json:"context"`
}

// state names the orchestrator's position in the pipeline. Surfaced in
// logs and trace attributes only.
type state string

const (
	stateReceived       state = "RECEIVED"
	stateRateLimitCheck state = "RATE_LIMIT_CHECK"
	stateAuthenticating state = "AUTHENTICATING"
	stateNormalizing    state = "NORMALIZING"
	stateClassifying    state = "CLASSIFYING"
	stateGenerating     state = "GENERATING"
	stateEnforcing      state = "ENFORCING"
	stateLogging        state = "LOGGING"
	stateResponding     state = "RESPONDING"
)

// Kind is the terminal disposition of one screened request.
type Kind int

const (
	// KindOK is a safe request with a generated reply.
	KindOK Kind = iota
	// KindBlocked covers WARN, BLOCK, and degraded-classification ERROR
	// outcomes. The reply is the policy message, never generated text.
	KindBlocked
	// KindUnauthorized is a failed credential check.
	KindUnauthorized
	// KindRateLimited is a rejected admission.
	KindRateLimited
	// KindError is a pipeline-level failure (generation failure or
	// internal error).
	KindError
)

// Result is the pipeline's terminal output for one request, independent
// of transport encoding.
type Result struct {
	RequestID string
	Kind      Kind
	Verdict   classify.Verdict
	Outcome   policy.Outcome
	Response  string
	Timestamp time.Time
}

// =============================================================================
// Response envelopes
// =============================================================================

type successResponse struct {
	Success     bool    `json:"success"`
	RequestID   string  `json:"request_id"`
	Status      string  `json:"status"`
	IsSafe      bool    `json:"is_safe"`
	SafetyScore float64 `json:"safety_score"`
	Category    string  `json:"category"`
	Severity    string  `json:"severity"`
	Response    string  `json:"response"`
	Timestamp   string  `json:"timestamp"`
}

type blockedResponse struct {
	Success     bool    `json:"success"`
	RequestID   string  `json:"request_id"`
	Status      string  `json:"status"`
	IsSafe      bool    `json:"is_safe"`
	SafetyScore float64 `json:"safety_score"`
	Category    string  `json:"category"`
	Severity    string  `json:"severity"`
	Action      string  `json:"action"`
	Message     string  `json:"message"`
	Timestamp   string  `json:"timestamp"`
}

type authErrorResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

type rateLimitedResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

type validationErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

type serverErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}
