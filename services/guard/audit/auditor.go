// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
)

var auditFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guard_audit_failures_total",
	Help: "Audit records that could not be persisted.",
})

// Auditor writes audit records and the matching structured log entries.
//
// Thread Safety: Safe for concurrent use.
type Auditor struct {
	store  Store
	logger *slog.Logger
}

// NewAuditor creates an Auditor. A nil logger uses slog.Default.
func NewAuditor(store Store, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{store: store, logger: logger}
}

// Record persists one audit record, best-effort.
//
// Description:
//
//	The write runs on a context detached from the caller's cancellation
//	with its own deadline, so a disconnected client still leaves a
//	record. Persistence failures are logged and counted but never
//	returned; the caller's outcome does not depend on the audit trail.
//	Trace IDs from the request span are carried into the log entry.
//
// Inputs:
//   - ctx: The request context. Used only for trace extraction; its
//     cancellation does not stop the write.
//   - rec: The completed record. Timestamp is filled if zero.
func (a *Auditor) Record(ctx context.Context, rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	logger := a.loggerWithTrace(ctx)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.store.Append(writeCtx, rec); err != nil {
		auditFailures.Inc()
		logger.Error("audit record write failed",
			slog.String("request_id", rec.RequestID),
			slog.String("client_id", rec.ClientID),
			slog.String("error", err.Error()),
		)
		return
	}

	logger.Info("request screened",
		slog.String("event", "audit"),
		slog.String("request_id", rec.RequestID),
		slog.String("client_id", rec.ClientID),
		slog.String("action", string(rec.Action)),
		slog.Bool("is_safe", rec.IsSafe),
		slog.String("category", string(rec.Category)),
		slog.String("severity", string(rec.Severity)),
		slog.Float64("risk_score", rec.RiskScore),
		slog.Int64("processing_time_ms", rec.ProcessingTimeMs),
		slog.Int64("timestamp", rec.Timestamp.UnixMilli()),
	)
}

// loggerWithTrace returns a logger enriched with trace context.
func (a *Auditor) loggerWithTrace(ctx context.Context) *slog.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return a.logger
	}
	return a.logger.With(
		slog.String("trace_id", spanCtx.TraceID().String()),
		slog.String("span_id", spanCtx.SpanID().String()),
	)
}
