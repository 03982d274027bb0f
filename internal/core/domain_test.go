package core

import (
	"testing"
	"time"
)

func TestValidYear(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	cases := map[int]bool{
		1799: false,
		1800: true,
		2015: true,
		2025: true,
		2026: false,
	}
	for y, want := range cases {
		if got := ValidYear(y, now); got != want {
			t.Fatalf("ValidYear(%d)=%v want %v", y, got, want)
		}
	}
}
