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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/AleutianGuard/services/guard/classify"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_requests_total",
		Help: "Screened requests by terminal disposition.",
	}, []string{"disposition"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "guard_request_duration_seconds",
		Help:    "End-to-end pipeline latency.",
		Buckets: prometheus.DefBuckets,
	})

	blockedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_blocked_total",
		Help: "Blocked or warned requests by category.",
	}, []string{"category"})
)

func dispositionLabel(k Kind) string {
	switch k {
	case KindOK:
		return "ok"
	case KindBlocked:
		return "blocked"
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "error"
	}
}

func observeRequest(k Kind, d time.Duration) {
	requestsTotal.WithLabelValues(dispositionLabel(k)).Inc()
	requestDuration.Observe(d.Seconds())
}

func recordBlocked(category classify.Category) {
	blockedTotal.WithLabelValues(string(category)).Inc()
}
