package fetchevents

import (
	"testing"
	"time"

	"github.com/thkoch2001/lara/internal/model"
)

func TestFromFetchResult(t *testing.T) {
	fr := model.FetchResult{
		Status:   200,
		Duration: 250 * time.Millisecond,
		Start:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	ev := FromFetchResult("https://example.test/a", "example.test", model.Other, fr)

	if ev.Status != 200 || ev.Authority != "example.test" {
		t.Errorf("ev = %+v", ev)
	}
	if ev.DurationMs != 250 {
		t.Errorf("DurationMs = %d, want 250", ev.DurationMs)
	}
	if ev.ArchivedAt != "2024-06-01T12:00:00Z" {
		t.Errorf("ArchivedAt = %q", ev.ArchivedAt)
	}
	if ev.Context != "other" {
		t.Errorf("Context = %q, want other", ev.Context)
	}
}

func TestParseBrokers(t *testing.T) {
	got := ParseBrokers(" broker-a:9092 , broker-b:9092,,")
	if len(got) != 2 || got[0] != "broker-a:9092" || got[1] != "broker-b:9092" {
		t.Errorf("ParseBrokers = %+v", got)
	}
}

func TestParseBrokersEmpty(t *testing.T) {
	if got := ParseBrokers(""); got != nil {
		t.Errorf("ParseBrokers(\"\") = %+v, want nil", got)
	}
}
