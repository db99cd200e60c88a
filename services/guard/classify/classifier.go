// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianGuard/services/llm"
)

// classificationPrompt instructs the model to return a single JSON verdict.
// The category vocabulary matches the Category constants exactly.
const classificationPrompt = `You are a content safety classifier for an AI gateway.

Analyze the user's message and determine whether it is safe to forward to a
text-generation model. Flag content in these categories:
Self-harm, Violence, Fraud, Phishing, Harassment, PII, Malware, Extremism.
Safe content is category "Normal".

Respond with ONLY valid JSON (no markdown, no preamble):
{"is_safe":bool,"category":"Normal","severity":"Low|Medium|High","risk_score":0.0-1.0,"reasoning":"brief"}`

// Config configures the classifier's delegation behavior.
//
// Thread Safety: Config should not be modified after passing to NewClassifier.
type Config struct {
	// MaxAttempts bounds internal delegation attempts per request.
	// Must be >= 1. The pipeline default is 3.
	MaxAttempts int

	// Timeout bounds each delegation attempt.
	Timeout time.Duration

	// RetryBackoff is the base duration for exponential backoff between
	// attempts. Attempt N waits RetryBackoff * 2^(N-1).
	RetryBackoff time.Duration

	// MaxTokens limits the model's classification reply length.
	MaxTokens int
}

// DefaultConfig returns the production classifier configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		Timeout:      15 * time.Second,
		RetryBackoff: 200 * time.Millisecond,
		MaxTokens:    256,
	}
}

// Validate checks config invariants.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return errors.New("classify: MaxAttempts must be >= 1")
	}
	if c.Timeout <= 0 {
		return errors.New("classify: Timeout must be positive")
	}
	if c.MaxTokens <= 0 {
		return errors.New("classify: MaxTokens must be positive")
	}
	return nil
}

// Classifier delegates text to the LLM capability and returns Verdicts.
//
// Description:
//
//	Wraps an llm.Client with bounded retries, per-attempt timeouts,
//	defensive JSON parsing, and request coalescing: identical texts
//	classified concurrently share one upstream call via singleflight.
//	Classify never returns an error; every failure mode produces a
//	degraded (fail-closed) Verdict.
//
// Thread Safety: Safe for concurrent use after construction.
type Classifier struct {
	client   llm.Client
	config   Config
	inflight singleflight.Group
}

// NewClassifier creates a Classifier over the given LLM client.
//
// Inputs:
//   - client: The classification capability. Must not be nil.
//   - config: Delegation configuration. Validated here.
//
// Outputs:
//   - *Classifier: Ready-to-use classifier.
//   - error: If client is nil or config invalid.
func NewClassifier(client llm.Client, config Config) (*Classifier, error) {
	if client == nil {
		return nil, errors.New("classify: client must not be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{client: client, config: config}, nil
}

// Classify produces a safety Verdict for the given text.
//
// Description:
//
//	Delegates to the LLM capability with at most MaxAttempts tries and a
//	per-attempt timeout. The reply is parsed defensively (fences and
//	surrounding prose tolerated); anything that cannot be coerced into
//	the verdict schema yields a degraded verdict instead of an error.
//	Context cancellation also degrades rather than erroring: the caller
//	always gets a well-formed Verdict.
//
// Inputs:
//   - ctx: Context for cancellation. The per-attempt timeout is layered
//     on top of it.
//   - text: Sanitized request text.
//   - contextLabel: The request's free-form context label, given to the
//     model as conversational framing.
//
// Outputs:
//   - Verdict: Always well-formed. Check Degraded() for failure detail.
//
// Thread Safety: Safe for concurrent use. Identical texts in flight at
// the same time share a single upstream call.
func (c *Classifier) Classify(ctx context.Context, text, contextLabel string) Verdict {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := otel.Tracer("aleutian.guard").Start(ctx, "classify.Classifier.Classify",
		oteltrace.WithAttributes(
			attribute.Int("text_length", len(text)),
			attribute.String("context", contextLabel),
		),
	)
	defer span.End()

	if ctx.Err() != nil {
		v := DegradedVerdict(fmt.Sprintf("cancelled before classification: %v", ctx.Err()))
		span.SetStatus(codes.Error, v.Err)
		recordVerdict(v, false)
		return v
	}

	// The coalesced call runs detached from the winning caller's
	// cancellation: a follower's verdict must not depend on whether the
	// winner's request survived. Per-attempt timeouts and MaxAttempts
	// still bound the detached call.
	callCtx := context.WithoutCancel(ctx)

	key := coalesceKey(text, contextLabel)
	result, err, shared := c.inflight.Do(key, func() (interface{}, error) {
		return c.classifyWithRetry(callCtx, text, contextLabel), nil
	})
	if err != nil {
		// singleflight only surfaces the callback's error, which is always nil.
		span.SetStatus(codes.Error, err.Error())
		return DegradedVerdict(err.Error())
	}

	verdict := result.(Verdict)
	span.SetAttributes(
		attribute.Bool("is_safe", verdict.IsSafe),
		attribute.String("category", string(verdict.Category)),
		attribute.Bool("degraded", verdict.Degraded()),
		attribute.Bool("coalesced", shared),
	)
	if verdict.Degraded() {
		span.SetStatus(codes.Error, verdict.Err)
	}

	recordVerdict(verdict, shared)
	return verdict
}

// classifyWithRetry runs delegation attempts with exponential backoff.
func (c *Classifier) classifyWithRetry(ctx context.Context, text, contextLabel string) Verdict {
	var lastErr error

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := c.config.RetryBackoff * time.Duration(1<<(attempt-2))
			select {
			case <-ctx.Done():
				return DegradedVerdict(fmt.Sprintf("cancelled before attempt %d: %v", attempt, ctx.Err()))
			case <-time.After(backoff):
			}
		}

		verdict, err := c.doClassify(ctx, text, contextLabel)
		if err == nil {
			return verdict
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// The caller's own deadline fired; retrying cannot help.
			if ctx.Err() != nil {
				return DegradedVerdict(fmt.Sprintf("classification cancelled: %v", err))
			}
		}

		slog.Debug("classification attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.config.MaxAttempts),
			slog.String("error", err.Error()),
		)
		recordRetry()
	}

	return DegradedVerdict(fmt.Sprintf("classification failed after %d attempts: %v", c.config.MaxAttempts, lastErr))
}

// doClassify performs a single delegation attempt.
func (c *Classifier) doClassify(ctx context.Context, text, contextLabel string) (Verdict, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	messages := []llm.Message{
		{Role: "system", Content: classificationPrompt},
		{Role: "user", Content: fmt.Sprintf("Context: %s\n\nMessage:\n%s", contextLabel, text)},
	}

	reply, err := c.client.Chat(reqCtx, messages, llm.GenerationParams{
		Temperature: llm.FloatPtr(0.0),
		MaxTokens:   llm.IntPtr(c.config.MaxTokens),
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("llm call: %w", err)
	}

	raw, err := ExtractJSON(reply)
	if err != nil {
		return Verdict{}, fmt.Errorf("extract verdict JSON: %w", err)
	}

	var wire wireVerdict
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return Verdict{}, fmt.Errorf("parse verdict JSON: %w", err)
	}

	verdict, err := wire.toVerdict()
	if err != nil {
		return Verdict{}, fmt.Errorf("coerce verdict: %w", err)
	}
	return verdict, nil
}

// coalesceKey hashes text and context label for singleflight grouping.
func coalesceKey(text, contextLabel string) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte("|"))
	h.Write([]byte(contextLabel))
	return hex.EncodeToString(h.Sum(nil))
}
