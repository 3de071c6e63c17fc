package util

import (
	"context"
	"testing"
	"time"
)

func TestLimiterBurstAndRefill(t *testing.T) {
	l := NewLimiter(10, 2)

	if !l.Allow(1) || !l.Allow(1) {
		t.Fatal("expected the burst to be allowed")
	}
	if l.Allow(1) {
		t.Fatal("expected the third token to be rejected")
	}

	time.Sleep(150 * time.Millisecond)
	if !l.Allow(1) {
		t.Error("expected a token after refill")
	}
}

func TestLimiterReserve(t *testing.T) {
	l := NewLimiter(10, 1)

	if d := l.Reserve(); d != 0 {
		t.Fatalf("expected the first reservation to be immediate, got %v", d)
	}
	d := l.Reserve()
	if d <= 0 || d > 100*time.Millisecond {
		t.Fatalf("expected a delay of about 100ms, got %v", d)
	}
}

func TestLimiterWait(t *testing.T) {
	l := NewLimiter(100, 1)
	l.Allow(1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := l.Wait(ctx, 1); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Error("wait returned too early")
	}
}

func TestLimiterRegistryPerConnection(t *testing.T) {
	reg := NewLimiterRegistry(100, 10, time.Hour)
	defer reg.Close()

	a := reg.Get("conn-a")
	if a == reg.Get("conn-b") {
		t.Fatal("expected distinct limiters per key")
	}
	if reg.Get("conn-a") != a {
		t.Fatal("expected the same limiter for the same key")
	}

	reg.Remove("conn-a")
	if reg.Len() != 1 {
		t.Fatalf("expected 1 limiter after remove, got %d", reg.Len())
	}
	if reg.Get("conn-a") == a {
		t.Error("expected a fresh limiter after remove")
	}
	reg.Close()
	reg.Close()
}

func TestLimiterRegistrySweepsIdleEntries(t *testing.T) {
	reg := NewLimiterRegistry(100, 10, time.Minute)
	defer reg.Close()

	reg.Get("idle")
	reg.sweep(time.Now().Add(2 * time.Minute))
	if reg.Len() != 0 {
		t.Fatalf("expected idle limiter to be swept, got %d", reg.Len())
	}
}
