package utils

import (
	"context"
	"testing"
	"time"
)

func TestWaitFor(t *testing.T) {
	original := sleep
	defer func() { sleep = original }()

	var slept time.Duration
	sleep = func(d time.Duration) { slept = d }

	if err := WaitFor(context.Background(), 3*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slept != 3*time.Second {
		t.Fatalf("expected 3s sleep, got %v", slept)
	}

	if err := WaitFor(context.Background(), 0); err != nil {
		t.Fatalf("expected no wait for zero duration, got %v", err)
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		in     float64
		places int
		want   float64
	}{
		{in: 0.61234, places: 4, want: 0.6123},
		{in: 61.236, places: 2, want: 61.24},
		{in: 100, places: 2, want: 100},
		{in: 45.004999, places: 2, want: 45},
	}

	for _, tt := range tests {
		if got := Round(tt.in, tt.places); got != tt.want {
			t.Fatalf("Round(%v, %d) = %v, want %v", tt.in, tt.places, got, tt.want)
		}
	}
}

func TestQuote(t *testing.T) {
	if got := Quote("  SQL  ", 10); got != "'SQL'" {
		t.Fatalf("unexpected quote: %q", got)
	}
}
