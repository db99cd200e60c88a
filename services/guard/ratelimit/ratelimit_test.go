// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fixedClock lets tests advance time deterministically.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(capacity int, window time.Duration) (*Limiter, *fixedClock) {
	clock := &fixedClock{now: time.Unix(1_700_000_000, 0)}
	l := NewLimiter(capacity, window)
	l.now = clock.Now
	return l, clock
}

func TestLimiter_ExactlyNAdmittedWithinWindow(t *testing.T) {
	l, _ := newTestLimiter(5, time.Minute)

	for i := 0; i < 5; i++ {
		if !l.Admit("client-1") {
			t.Fatalf("request %d should be admitted", i+1)
		}
	}
	if l.Admit("client-1") {
		t.Error("request 6 should be rejected")
	}
}

func TestLimiter_RejectionDoesNotConsumeSlot(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	l.Admit("c1")
	l.Admit("c1")
	for i := 0; i < 10; i++ {
		if l.Admit("c1") {
			t.Fatal("should stay rejected at capacity")
		}
	}
	if got := l.Pending("c1"); got != 2 {
		t.Errorf("rejected calls must not be recorded: pending = %d, want 2", got)
	}

	// Only the two admitted entries age out; admission resets afterwards.
	clock.Advance(61 * time.Second)
	if !l.Admit("c1") {
		t.Error("admission should reset after the window elapses")
	}
}

func TestLimiter_WindowReset(t *testing.T) {
	l, clock := newTestLimiter(3, 10*time.Second)

	for i := 0; i < 3; i++ {
		l.Admit("c1")
	}
	if l.Admit("c1") {
		t.Fatal("should be at capacity")
	}

	clock.Advance(11 * time.Second)
	for i := 0; i < 3; i++ {
		if !l.Admit("c1") {
			t.Fatalf("request %d should be admitted after reset", i+1)
		}
	}
}

func TestLimiter_IndependentIdentities(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	if !l.Admit("alice") {
		t.Error("alice's first request should be admitted")
	}
	if l.Admit("alice") {
		t.Error("alice should be at capacity")
	}
	if !l.Admit("bob") {
		t.Error("bob is unaffected by alice's limit")
	}
}

func TestLimiter_ZeroCapacityMeansUnlimited(t *testing.T) {
	l, _ := newTestLimiter(0, time.Minute)

	for i := 0; i < 1000; i++ {
		if !l.Admit("c1") {
			t.Fatal("zero capacity should disable limiting")
		}
	}
}

func TestLimiter_ConcurrentAdmitNeverOvercommits(t *testing.T) {
	const capacity = 50
	const goroutines = 200

	l, _ := newTestLimiter(capacity, time.Minute)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if l.Admit("shared") {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := admitted.Load(); got != capacity {
		t.Errorf("admitted %d requests concurrently, want exactly %d", got, capacity)
	}
}

func TestLimiter_ConcurrentDistinctIdentities(t *testing.T) {
	l, _ := newTestLimiter(10, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id byte) {
			defer wg.Done()
			identity := string([]byte{'a' + id})
			for j := 0; j < 10; j++ {
				if !l.Admit(identity) {
					t.Errorf("identity %s request %d rejected below capacity", identity, j+1)
				}
			}
		}(byte(i))
	}
	wg.Wait()
}

func TestLimiter_AdmitNCapacityOverride(t *testing.T) {
	l, _ := newTestLimiter(2, time.Minute)

	for i := 0; i < 5; i++ {
		if !l.AdmitN("premium", 5) {
			t.Fatalf("request %d rejected below overridden capacity", i+1)
		}
	}
	if l.AdmitN("premium", 5) {
		t.Error("request above overridden capacity admitted")
	}

	// Zero override falls back to the default capacity.
	l.AdmitN("standard", 0)
	l.AdmitN("standard", 0)
	if l.AdmitN("standard", 0) {
		t.Error("request above default capacity admitted")
	}
}

func TestLimiter_WindowEdgeEntryStillCounts(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)

	if !l.Admit("c1") {
		t.Fatal("first request should be admitted")
	}

	// Advance to exactly the window edge: the prior entry is stamped at
	// now-window and must still occupy its slot.
	clock.Advance(time.Minute)
	if l.Admit("c1") {
		t.Error("entry stamped exactly one window ago must still count")
	}
	if got := l.Pending("c1"); got != 1 {
		t.Errorf("pending = %d, want 1 at the window edge", got)
	}

	// One millisecond past the edge it ages out.
	clock.Advance(time.Millisecond)
	if !l.Admit("c1") {
		t.Error("entry older than the window should have aged out")
	}
}
