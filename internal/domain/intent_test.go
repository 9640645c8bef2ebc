package domain

import (
	"testing"
	"time"
)

func TestTradeDayOf(t *testing.T) {
	cases := []struct {
		name string
		ts   time.Time
		loc  *time.Location
		want string
	}{
		{"morning UTC same day", time.Date(2026, 1, 28, 5, 0, 0, 0, time.UTC), nil, "2026-01-28"},
		{"evening UTC rolls forward", time.Date(2026, 1, 28, 20, 0, 0, 0, time.UTC), nil, "2026-01-29"},
		{"boundary 15:00 UTC is midnight KST", time.Date(2026, 1, 28, 15, 0, 0, 0, time.UTC), nil, "2026-01-29"},
		{"explicit UTC zone", time.Date(2026, 1, 28, 20, 0, 0, 0, time.UTC), time.UTC, "2026-01-28"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TradeDayOf(tc.ts, tc.loc); got != tc.want {
				t.Errorf("Expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestExpired(t *testing.T) {
	createdAt := time.Date(2026, 1, 28, 9, 30, 0, 0, time.UTC)
	intent := &OrderIntent{CreatedAt: createdAt, TTLMs: 5000}

	if intent.Expired(createdAt.Add(5 * time.Second)) {
		t.Error("Expected intent alive exactly at the TTL boundary")
	}
	if !intent.Expired(createdAt.Add(6 * time.Second)) {
		t.Error("Expected intent expired past its TTL")
	}

	// A non-positive TTL disables expiry entirely.
	intent.TTLMs = 0
	if intent.Expired(createdAt.Add(24 * time.Hour)) {
		t.Error("Expected zero TTL to never expire")
	}
}

func TestAgeAt(t *testing.T) {
	createdAt := time.Date(2026, 1, 28, 9, 30, 0, 0, time.UTC)
	intent := &OrderIntent{CreatedAt: createdAt}

	if got := intent.AgeAt(createdAt.Add(1500 * time.Millisecond)); got != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s age, got %v", got)
	}
}
