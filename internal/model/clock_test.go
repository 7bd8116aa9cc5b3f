package model

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := map[string]TimeOfDay{
		"08:00": {Hour: 8, Minute: 0},
		"8:05":  {Hour: 8, Minute: 5},
		"23:59": {Hour: 23, Minute: 59},
		"00:00": {Hour: 0, Minute: 0},
	}
	for raw, want := range cases {
		got, err := ParseTimeOfDay(raw)
		if err != nil {
			t.Fatalf("parse %q failed: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %+v want %+v", raw, got, want)
		}
	}
}

func TestParseTimeOfDayRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "8", "24:00", "12:60", "ab:cd", "12:5", "123:00", "12-30"} {
		if _, err := ParseTimeOfDay(raw); !errors.Is(err, ErrInvalidTime) {
			t.Fatalf("expected ErrInvalidTime for %q, got %v", raw, err)
		}
	}
}

func TestTimeOfDayNextAfter(t *testing.T) {
	tod := TimeOfDay{Hour: 8, Minute: 0}

	before := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	next, err := tod.NextAfter(before)
	if err != nil {
		t.Fatalf("next after failed: %v", err)
	}
	if next.Format("2006-01-02 15:04") != "2026-03-10 08:00" {
		t.Fatalf("unexpected next occurrence: %s", next.Format(time.RFC3339))
	}

	after := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	next, err = tod.NextAfter(after)
	if err != nil {
		t.Fatalf("next after failed: %v", err)
	}
	if next.Format("2006-01-02 15:04") != "2026-03-11 08:00" {
		t.Fatalf("unexpected next occurrence: %s", next.Format(time.RFC3339))
	}
}

func TestTimeOfDayNextAfterIsStrict(t *testing.T) {
	tod := TimeOfDay{Hour: 8, Minute: 0}
	exact := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	next, err := tod.NextAfter(exact)
	if err != nil {
		t.Fatalf("next after failed: %v", err)
	}
	if !next.After(exact) {
		t.Fatalf("expected next occurrence strictly after %s, got %s", exact, next)
	}
	if next.Format("2006-01-02 15:04") != "2026-03-11 08:00" {
		t.Fatalf("unexpected next occurrence: %s", next.Format(time.RFC3339))
	}
}

func TestTimeOfDayOn(t *testing.T) {
	tod := TimeOfDay{Hour: 21, Minute: 30}
	got := tod.On(time.Date(2026, 1, 31, 4, 12, 9, 0, time.UTC))
	if got.Format(time.RFC3339) != "2026-01-31T21:30:00Z" {
		t.Fatalf("unexpected instant: %s", got.Format(time.RFC3339))
	}
	if tod.String() != "21:30" {
		t.Fatalf("unexpected string: %s", tod.String())
	}
}
