// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides clients for the hosted text-generation capability
// that the screening pipeline delegates to. The pipeline consumes only the
// Chat contract defined here; the hosted model's internals are opaque.
package llm

import "context"

// Message is one turn in a conversation sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams are optional knobs for a chat request. Nil pointer
// fields are omitted from the wire request so the provider's defaults apply.
type GenerationParams struct {
	Temperature   *float32
	MaxTokens     *int
	Stop          []string
	ModelOverride string
}

// Client is the contract the pipeline holds against the hosted model.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Client interface {
	// Chat sends a conversation and returns the assistant's reply text.
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)

	// Name identifies the provider (e.g. "openai").
	Name() string

	// Model identifies the configured model.
	Model() string
}

// FloatPtr returns a pointer to v. Convenience for GenerationParams.
func FloatPtr(v float32) *float32 { return &v }

// IntPtr returns a pointer to v. Convenience for GenerationParams.
func IntPtr(v int) *int { return &v }
