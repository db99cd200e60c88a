// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianGuard/services/llm"
)

const generationPrompt = `You are a helpful assistant answering on behalf of a commercial API.
Answer the user's message directly and concisely. Do not mention safety
screening or content policy.`

// Generator produces the reply for requests the enforcer allowed.
//
// Thread Safety: Safe for concurrent use.
type Generator struct {
	client    llm.Client
	timeout   time.Duration
	maxTokens int
}

// NewGenerator creates a Generator over an LLM client.
func NewGenerator(client llm.Client, timeout time.Duration, maxTokens int) (*Generator, error) {
	if client == nil {
		return nil, errors.New("guard: generator client must not be nil")
	}
	if timeout <= 0 {
		return nil, errors.New("guard: generator timeout must be positive")
	}
	return &Generator{client: client, timeout: timeout, maxTokens: maxTokens}, nil
}

// Generate returns a reply for sanitized input text.
//
// Description:
//
//	Bounded by the configured timeout. Any failure, including an empty
//	reply, is returned as an error; a partial reply is never returned.
//
// Inputs:
//   - ctx: Request context.
//   - text: The sanitized user message.
//
// Outputs:
//   - string: The generated reply.
//   - error: Non-nil on any generation failure.
func (g *Generator) Generate(ctx context.Context, text string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	messages := []llm.Message{
		{Role: "system", Content: generationPrompt},
		{Role: "user", Content: text},
	}
	reply, err := g.client.Chat(callCtx, messages, llm.GenerationParams{
		Temperature: llm.FloatPtr(0.7),
		MaxTokens:   llm.IntPtr(g.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("guard: generation failed: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", errors.New("guard: generation returned empty reply")
	}
	return reply, nil
}
