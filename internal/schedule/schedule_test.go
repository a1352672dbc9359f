package schedule

import (
	"strings"
	"testing"
	"time"
)

func TestParseBareCron(t *testing.T) {
	s, err := Parse("*/5 * * * *")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Kind != KindCron || s.CronExpr != "*/5 * * * *" {
		t.Errorf("unexpected schedule: %+v", s)
	}
}

func TestParseJSONForms(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind string
	}{
		{"cron", `{"kind":"cron","cron_expr":"0 9 * * 1"}`, KindCron},
		{"interval", `{"kind":"interval","interval_ms":60000}`, KindInterval},
		{"once", `{"kind":"once","at_ms":4102444800000}`, KindOnce},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if s.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, s.Kind)
			}
		})
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []string{
		"not a cron",
		`{"kind":"cron","cron_expr":"bad"}`,
		`{"kind":"interval","interval_ms":0}`,
		`{"kind":"once","at_ms":-1}`,
		`{"kind":"weird"}`,
	}
	for _, raw := range tests {
		if _, err := Parse(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestNextInterval(t *testing.T) {
	s := &Schedule{Kind: KindInterval, IntervalMs: 60000}
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	next := s.Next(now)
	if next == nil {
		t.Fatal("expected a next run")
	}
	if !next.Equal(now.Add(time.Minute)) {
		t.Errorf("expected %v, got %v", now.Add(time.Minute), next)
	}
}

func TestNextCron(t *testing.T) {
	s := &Schedule{Kind: KindCron, CronExpr: "0 9 * * *"}
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	next := s.Next(now)
	if next == nil {
		t.Fatal("expected a next run")
	}
	if next.Hour() != 9 || !next.After(now) {
		t.Errorf("expected next 09:00 after %v, got %v", now, next)
	}
}

func TestNextOnce(t *testing.T) {
	now := time.Now()

	future := &Schedule{Kind: KindOnce, AtMs: now.Add(time.Hour).UnixMilli()}
	if next := future.Next(now); next == nil {
		t.Error("expected a next run for future once schedule")
	}

	past := &Schedule{Kind: KindOnce, AtMs: now.Add(-time.Hour).UnixMilli()}
	if next := past.Next(now); next != nil {
		t.Errorf("expected exhausted schedule, got %v", next)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	s := &Schedule{Kind: KindInterval, IntervalMs: 5000}
	raw, err := s.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse encoded: %v", err)
	}
	if parsed.IntervalMs != 5000 {
		t.Errorf("expected 5000ms, got %d", parsed.IntervalMs)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		s    Schedule
		want string
	}{
		{Schedule{Kind: KindCron, CronExpr: "0 9 * * *"}, "cron 0 9 * * *"},
		{Schedule{Kind: KindInterval, IntervalMs: 3_600_000}, "every hour"},
		{Schedule{Kind: KindInterval, IntervalMs: 7_200_000}, "every 2 hours"},
		{Schedule{Kind: KindInterval, IntervalMs: 60_000}, "every minute"},
		{Schedule{Kind: KindInterval, IntervalMs: 45_000}, "every 45 seconds"},
	}
	for _, tt := range tests {
		if got := tt.s.Describe(); got != tt.want {
			t.Errorf("Describe(%+v) = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestParseTrimsWhitespace(t *testing.T) {
	s, err := Parse("  */5 * * * *  ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if strings.TrimSpace(s.CronExpr) != s.CronExpr {
		t.Errorf("expression not trimmed: %q", s.CronExpr)
	}
}
