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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// verdictsTotal counts verdicts by category and safety outcome.
	// Labels: category, result (safe, unsafe, degraded)
	verdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guard",
		Subsystem: "classify",
		Name:      "verdicts_total",
		Help:      "Total classification verdicts by category and result",
	}, []string{"category", "result"})

	// retriesTotal counts delegation retries.
	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guard",
		Subsystem: "classify",
		Name:      "retries_total",
		Help:      "Total classification delegation retries",
	})

	// coalescedTotal counts verdicts served from a shared in-flight call.
	coalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guard",
		Subsystem: "classify",
		Name:      "coalesced_total",
		Help:      "Total classifications coalesced onto a shared upstream call",
	})
)

// recordVerdict records a completed classification.
func recordVerdict(v Verdict, coalesced bool) {
	result := "safe"
	switch {
	case v.Degraded():
		result = "degraded"
	case !v.IsSafe:
		result = "unsafe"
	}
	verdictsTotal.WithLabelValues(string(v.Category), result).Inc()
	if coalesced {
		coalescedTotal.Inc()
	}
}

// recordRetry records one delegation retry.
func recordRetry() {
	retriesTotal.Inc()
}
