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
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianGuard/services/guard/audit"
	"github.com/AleutianAI/AleutianGuard/services/guard/classify"
	"github.com/AleutianAI/AleutianGuard/services/guard/clients"
	"github.com/AleutianAI/AleutianGuard/services/guard/normalize"
	"github.com/AleutianAI/AleutianGuard/services/guard/policy"
	"github.com/AleutianAI/AleutianGuard/services/guard/ratelimit"
)

// Service sequences the screening pipeline for one request at a time.
// It owns request ID generation and timing; the only cross-request
// shared mutable state is the rate limiter's window map.
//
// Thread Safety: Safe for concurrent use. Each request runs entirely on
// its caller's goroutine.
type Service struct {
	cfg        Config
	limiter    *ratelimit.Limiter
	registry   clients.Store
	validator  *clients.Validator
	classifier *classify.Classifier
	enforcer   *policy.Enforcer
	generator  *Generator
	auditor    *audit.Auditor
	logger     *slog.Logger
	started    time.Time
}

// NewService wires the pipeline stages into a Service.
func NewService(
	cfg Config,
	limiter *ratelimit.Limiter,
	registry clients.Store,
	validator *clients.Validator,
	classifier *classify.Classifier,
	generator *Generator,
	auditor *audit.Auditor,
	logger *slog.Logger,
) (*Service, error) {
	if limiter == nil || registry == nil || validator == nil || classifier == nil || generator == nil || auditor == nil {
		return nil, errors.New("guard: all pipeline stages are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:        cfg,
		limiter:    limiter,
		registry:   registry,
		validator:  validator,
		classifier: classifier,
		enforcer:   policy.NewEnforcer(cfg.Thresholds),
		generator:  generator,
		auditor:    auditor,
		logger:     logger,
		started:    time.Now(),
	}, nil
}

// newRequestID returns a time-ordered globally unique request ID.
func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Entropy exhaustion. Random IDs lose time ordering but stay unique.
		return uuid.NewString()
	}
	return id.String()
}

// Screen runs one request through the full pipeline.
//
// Description:
//
//	RECEIVED → RATE_LIMIT_CHECK → AUTHENTICATING → NORMALIZING →
//	CLASSIFYING → ENFORCING → (GENERATING) → LOGGING → RESPONDING.
//	Every path that passes authentication, and the rate-limited and
//	auth-failure paths, writes exactly one audit record. No stage is
//	retried here; retries live inside the classifier.
//
// Inputs:
//   - ctx: Request context. Cancellation stops classification and
//     generation but never the audit write.
//   - req: The decoded request body. Required fields are the handler's
//     responsibility; Screen assumes they are present.
//
// Outputs:
//   - Result: The terminal pipeline outcome. Never zero-valued.
func (s *Service) Screen(ctx context.Context, req ChatRequest) Result {
	ctx, span := otel.Tracer("aleutian.guard").Start(ctx, "guard.Screen")
	defer span.End()

	requestID := newRequestID()
	start := time.Now()
	span.SetAttributes(attribute.String("request_id", requestID))

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = "conv-" + requestID
	}
	contextLabel := req.Context
	if contextLabel == "" {
		contextLabel = "general"
	}

	// RATE_LIMIT_CHECK. The registry read here is best-effort metadata:
	// a missing or unreadable record means the default allowance.
	s.setState(span, stateRateLimitCheck)
	capacity := 0
	if c, err := s.registry.Get(ctx, req.ClientID); err == nil {
		capacity = c.Policy.RateCapacity
	}
	if !s.limiter.AdmitN(req.ClientID, capacity) {
		rec := audit.Record{
			RequestID:      requestID,
			ClientID:       req.ClientID,
			ConversationID: conversationID,
			Text:           normalize.Sanitize(req.Text),
			Context:        contextLabel,
			VerdictErr:     "rate limit exceeded",
			Action:         policy.ActionError,
			Response:       "Rate limit exceeded",
		}
		return s.finish(ctx, span, start, rec, Result{
			RequestID: requestID,
			Kind:      KindRateLimited,
		})
	}

	// AUTHENTICATING.
	s.setState(span, stateAuthenticating)
	clientPolicy, ok := s.validator.Validate(ctx, req.ClientID, req.APIKey)
	if !ok {
		rec := audit.Record{
			RequestID:      requestID,
			ClientID:       req.ClientID,
			ConversationID: conversationID,
			Text:           normalize.Sanitize(req.Text),
			Context:        contextLabel,
			VerdictErr:     "Invalid API key or client",
			Action:         policy.ActionError,
			Response:       "Authentication failed",
		}
		return s.finish(ctx, span, start, rec, Result{
			RequestID: requestID,
			Kind:      KindUnauthorized,
		})
	}

	// NORMALIZING.
	s.setState(span, stateNormalizing)
	sanitized := normalize.Sanitize(req.Text)
	script := normalize.DetectScript(sanitized)
	complexity := normalize.ComplexityScore(sanitized)
	entities := normalize.ExtractEntities(sanitized)
	s.logger.Debug("input normalized",
		slog.String("request_id", requestID),
		slog.String("script", string(script)),
		slog.Int("complexity", complexity),
		slog.Int("entities", len(entities)),
	)

	// CLASSIFYING. The classifier always returns a well-formed verdict;
	// failures arrive as a degraded verdict, never an error.
	s.setState(span, stateClassifying)
	classifyCtx, cancelClassify := context.WithTimeout(ctx, s.cfg.ClassifierTimeout)
	verdict := s.classifier.Classify(classifyCtx, sanitized, contextLabel)
	cancelClassify()

	// ENFORCING.
	s.setState(span, stateEnforcing)
	outcome := s.enforcer.Enforce(verdict, clientPolicy.Thresholds)

	rec := audit.Record{
		RequestID:      requestID,
		ClientID:       req.ClientID,
		ConversationID: conversationID,
		Text:           sanitized,
		Context:        contextLabel,
		IsSafe:         verdict.IsSafe,
		Category:       verdict.Category,
		Severity:       verdict.Severity,
		RiskScore:      verdict.RiskScore,
		VerdictErr:     verdict.Err,
		Action:         outcome.Action,
	}

	if outcome.Action != policy.ActionAllow {
		// The category-specific message is only returned to clients whose
		// policy allows partial detail. Degraded outcomes keep their fixed
		// message either way.
		if outcome.Action != policy.ActionError && !clientPolicy.AllowPartial {
			outcome.Message = policy.GenericBlockedMessage
		}
		rec.Response = outcome.Message
		return s.finish(ctx, span, start, rec, Result{
			RequestID: requestID,
			Kind:      KindBlocked,
			Verdict:   verdict,
			Outcome:   outcome,
		})
	}

	// GENERATING. Only reached on a clean allow. A generation failure is
	// a pipeline-level error; a partial reply is never returned.
	s.setState(span, stateGenerating)
	reply, err := s.generator.Generate(ctx, sanitized)
	if err != nil {
		s.logger.Error("generation failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		rec.Action = policy.ActionError
		rec.Response = "Processing failed"
		rec.VerdictErr = "generation failure"
		return s.finish(ctx, span, start, rec, Result{
			RequestID: requestID,
			Kind:      KindError,
			Verdict:   verdict,
			Outcome:   policy.Outcome{Action: policy.ActionError, Message: "Processing failed"},
		})
	}

	rec.Response = reply
	return s.finish(ctx, span, start, rec, Result{
		RequestID: requestID,
		Kind:      KindOK,
		Verdict:   verdict,
		Outcome:   outcome,
		Response:  reply,
	})
}

// finish runs LOGGING and RESPONDING: stamps timing, writes the single
// audit record for the request, and records metrics.
func (s *Service) finish(ctx context.Context, span trace.Span, start time.Time, rec audit.Record, res Result) Result {
	s.setState(span, stateLogging)
	rec.Timestamp = time.Now().UTC()
	rec.ProcessingTimeMs = time.Since(start).Milliseconds()
	s.auditor.Record(ctx, rec)

	s.setState(span, stateResponding)
	res.Timestamp = rec.Timestamp
	observeRequest(res.Kind, time.Since(start))
	if res.Kind == KindBlocked {
		recordBlocked(rec.Category)
	}
	span.SetAttributes(attribute.String("action", string(rec.Action)))
	return res
}

func (s *Service) setState(span trace.Span, st state) {
	span.SetAttributes(attribute.String("pipeline.state", string(st)))
}

// Uptime reports how long the service has been running.
func (s *Service) Uptime() time.Duration {
	return time.Since(s.started)
}
