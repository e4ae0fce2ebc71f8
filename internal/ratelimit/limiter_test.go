package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

// TestNewRateLimiterStartsFull verifies the bucket starts at full capacity.
func TestNewRateLimiterStartsFull(t *testing.T) {
	rl := NewRateLimiter(1.0, 10.0)
	tokens := rl.GetCurrentTokens()
	if tokens < 9.9 { // Allow small float imprecision
		t.Errorf("expected ~10 tokens, got %.2f", tokens)
	}
}

// TestTryAcquireConsumesToken verifies token consumption.
func TestTryAcquireConsumesToken(t *testing.T) {
	rl := NewRateLimiter(1.0, 5.0)

	for i := 0; i < 5; i++ {
		if !rl.TryAcquire() {
			t.Fatalf("TryAcquire() failed on attempt %d", i+1)
		}
	}

	// 6th should fail (bucket exhausted, no time for refill)
	if rl.TryAcquire() {
		t.Error("TryAcquire() should fail when bucket is empty")
	}
}

// TestTokenRefill verifies tokens refill over time.
func TestTokenRefill(t *testing.T) {
	rl := NewRateLimiter(10.0, 10.0)

	for i := 0; i < 10; i++ {
		rl.TryAcquire()
	}

	time.Sleep(200 * time.Millisecond) // Should refill ~2 tokens

	tokens := rl.GetCurrentTokens()
	if tokens < 1.5 || tokens > 3.0 {
		t.Errorf("expected ~2 tokens after 200ms at 10/sec, got %.2f", tokens)
	}
}

// TestWaitBlocksUntilTokenAvailable verifies Wait blocks on an empty bucket.
func TestWaitBlocksUntilTokenAvailable(t *testing.T) {
	rl := NewRateLimiter(10.0, 1.0)
	rl.TryAcquire()

	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Wait() returned too quickly: %v", elapsed)
	}
}

// TestWaitRespectsContextCancellation verifies Wait returns on cancel.
func TestWaitRespectsContextCancellation(t *testing.T) {
	rl := NewRateLimiter(0.1, 1.0) // 1 token per 10 seconds
	rl.TryAcquire()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); err == nil {
		t.Error("expected context error, got nil")
	}
}

// TestSetCooldown verifies cooldown blocks Wait.
func TestSetCooldown(t *testing.T) {
	rl := NewRateLimiter(100.0, 100.0)
	rl.SetCooldown(200 * time.Millisecond)

	if rl.TryAcquire() {
		t.Error("TryAcquire() should fail during cooldown")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	start := time.Now()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("Wait() during cooldown returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond || elapsed > 400*time.Millisecond {
		t.Errorf("Wait() during cooldown took %v, expected ~200ms", elapsed)
	}
}

// TestCooldownMergeDoesNotShorten verifies a shorter cooldown is ignored.
func TestCooldownMergeDoesNotShorten(t *testing.T) {
	rl := NewRateLimiter(100.0, 100.0)

	rl.SetCooldown(500 * time.Millisecond)
	rl.SetCooldown(100 * time.Millisecond)

	if remaining := rl.CooldownRemaining(); remaining < 350*time.Millisecond {
		t.Errorf("cooldown shortened to %v", remaining)
	}
}

// TestCooldownExpires verifies cooldown eventually reaches zero.
func TestCooldownExpires(t *testing.T) {
	rl := NewRateLimiter(1.0, 1.0)

	if d := rl.CooldownRemaining(); d != 0 {
		t.Errorf("CooldownRemaining() = %v, want 0", d)
	}

	rl.SetCooldown(100 * time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	if d := rl.CooldownRemaining(); d != 0 {
		t.Errorf("CooldownRemaining() = %v, want 0 (cooldown should have expired)", d)
	}
}

// TestConcurrentAccess verifies no more tokens than capacity are handed out.
func TestConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(0.001, 50.0) // Effectively no refill

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if rl.TryAcquire() {
					mu.Lock()
					acquired++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if acquired != 50 {
		t.Errorf("acquired %d tokens, want exactly 50", acquired)
	}
}

// TestTimeUntilNextToken verifies the wait estimate.
func TestTimeUntilNextToken(t *testing.T) {
	rl := NewRateLimiter(10.0, 1.0)
	rl.TryAcquire()

	d := rl.TimeUntilNextToken()
	if d < 50*time.Millisecond || d > 200*time.Millisecond {
		t.Errorf("TimeUntilNextToken() = %v, want ~100ms", d)
	}
}
