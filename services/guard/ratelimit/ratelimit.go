// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ratelimit implements sliding-window admission control keyed by
// caller identity. State is in-memory only and lost on restart; rate
// limiting here is advisory admission control, not a security boundary.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter admits at most Capacity requests per identity within a trailing
// Window. Each identity has its own critical section, so contention on one
// identity never serializes traffic for another.
//
// Thread Safety: Safe for concurrent use. The purge-check-record sequence
// for a single identity is atomic under that identity's mutex.
type Limiter struct {
	capacity int
	window   time.Duration
	windows  sync.Map // identity -> *identityWindow

	// now is swappable for tests.
	now func() time.Time
}

// identityWindow holds the admission timestamps for one identity.
type identityWindow struct {
	mu         sync.Mutex
	timestamps []int64 // Unix milliseconds, oldest first
}

// NewLimiter creates a limiter admitting capacity requests per window.
//
// Inputs:
//   - capacity: Maximum admitted requests per identity within the window.
//     Zero or negative means no limit (every call is admitted).
//   - window: Sliding window width. Must be positive when capacity is set.
//
// Outputs:
//   - *Limiter: Configured limiter.
func NewLimiter(capacity int, window time.Duration) *Limiter {
	return &Limiter{
		capacity: capacity,
		window:   window,
		now:      time.Now,
	}
}

// Admit reports whether a request for the given identity is within the limit.
//
// Description:
//
//	Purges entries older than the window, then checks capacity. If the
//	identity is at capacity the call is rejected without consuming a
//	slot; otherwise the request is recorded and admitted. Purge, check,
//	and record happen under the identity's own mutex so two concurrent
//	calls can never both claim the last remaining slot.
//
// Inputs:
//   - identity: The caller identity (client ID).
//
// Outputs:
//   - bool: True if admitted.
func (l *Limiter) Admit(identity string) bool {
	return l.AdmitN(identity, 0)
}

// AdmitN is Admit with a per-call capacity override for identities whose
// policy grants a different allowance. capacity <= 0 uses the limiter's
// default.
func (l *Limiter) AdmitN(identity string, capacity int) bool {
	if capacity <= 0 {
		capacity = l.capacity
	}
	if capacity <= 0 {
		return true
	}

	w := l.windowFor(identity)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := l.now().UnixMilli()
	cutoff := now - l.window.Milliseconds()

	// Entries are appended in time order, so find the first live one. An
	// entry stamped exactly at the window edge still counts.
	live := w.timestamps
	for len(live) > 0 && live[0] < cutoff {
		live = live[1:]
	}

	if len(live) >= capacity {
		w.timestamps = live
		return false
	}

	w.timestamps = append(live, now)
	return true
}

// Pending returns the number of admitted requests currently inside the
// window for an identity. Intended for tests and diagnostics.
func (l *Limiter) Pending(identity string) int {
	w := l.windowFor(identity)

	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := l.now().UnixMilli() - l.window.Milliseconds()
	count := 0
	for _, ts := range w.timestamps {
		if ts >= cutoff {
			count++
		}
	}
	return count
}

// windowFor returns the identity's window, creating it on first use.
func (l *Limiter) windowFor(identity string) *identityWindow {
	if w, ok := l.windows.Load(identity); ok {
		return w.(*identityWindow)
	}
	w, _ := l.windows.LoadOrStore(identity, &identityWindow{})
	return w.(*identityWindow)
}
