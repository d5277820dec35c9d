package server

import (
	"testing"
	"time"
)

func TestTokenBucketExhaustsAndRefills(t *testing.T) {
	bucket := newTokenBucket(1000, 2)
	if !bucket.Allow() || !bucket.Allow() {
		t.Fatal("burst capacity not available")
	}
	if bucket.Allow() {
		t.Fatal("bucket allowed beyond burst")
	}
	time.Sleep(5 * time.Millisecond)
	if !bucket.Allow() {
		t.Fatal("bucket did not refill")
	}
}

func TestAllowRequestUnlimitedByDefault(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{})
	for i := 0; i < 100; i++ {
		if !rl.AllowRequest() {
			t.Fatal("unconfigured limiter must not throttle")
		}
	}
	var nilLimiter *rateLimiter
	if !nilLimiter.AllowRequest() {
		t.Fatal("nil limiter must not throttle")
	}
}

func TestAllowUploadPerKey(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{UploadLimit: 2, UploadWindow: time.Hour})

	for i := 0; i < 2; i++ {
		allowed, _, err := rl.AllowUpload("10.0.0.1")
		if err != nil || !allowed {
			t.Fatalf("upload %d: allowed=%v err=%v", i, allowed, err)
		}
	}
	allowed, retryAfter, err := rl.AllowUpload("10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if allowed {
		t.Fatal("third upload within the window must be throttled")
	}
	if retryAfter <= 0 {
		t.Fatalf("retry after = %v", retryAfter)
	}

	// A different address has its own budget.
	if allowed, _, _ := rl.AllowUpload("10.0.0.2"); !allowed {
		t.Fatal("unrelated key throttled")
	}
}

func TestAllowUploadDisabledWithoutLimit(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{})
	for i := 0; i < 50; i++ {
		if allowed, _, _ := rl.AllowUpload("10.0.0.1"); !allowed {
			t.Fatal("limiter without an upload limit must not throttle")
		}
	}
}

func TestUploadBucketCleanup(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{UploadLimit: 1, UploadWindow: 10 * time.Millisecond})

	if allowed, _, _ := rl.AllowUpload("stale-ip"); !allowed {
		t.Fatal("first upload throttled")
	}
	rl.uploadMu.Lock()
	rl.uploadBuckets["stale-ip"].lastSeen = time.Now().Add(-time.Hour)
	rl.uploadMu.Unlock()

	if allowed, _, _ := rl.AllowUpload("fresh-ip"); !allowed {
		t.Fatal("fresh upload throttled")
	}
	rl.uploadMu.Lock()
	_, exists := rl.uploadBuckets["stale-ip"]
	rl.uploadMu.Unlock()
	if exists {
		t.Fatal("stale bucket not cleaned up")
	}
}

func TestClientIPExtraction(t *testing.T) {
	if got := clientIP("192.0.2.1:4711"); got != "192.0.2.1" {
		t.Fatalf("got %q", got)
	}
	if got := clientIP("[2001:db8::1]:443"); got != "2001:db8::1" {
		t.Fatalf("got %q", got)
	}
	if got := clientIP("no-port"); got != "no-port" {
		t.Fatalf("got %q", got)
	}
	if got := clientIP(""); got != "" {
		t.Fatalf("got %q", got)
	}
}
