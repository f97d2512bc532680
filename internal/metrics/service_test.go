package metrics

import (
	"testing"
	"time"
)

func TestDayOfBucketsToUTCMidnight(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	// 23:30 in Sao Paulo is already the next day in UTC
	at := time.Date(2026, 8, 15, 23, 30, 0, 0, loc)

	day := dayOf(at)
	if day.Hour() != 0 || day.Minute() != 0 || day.Second() != 0 {
		t.Errorf("not truncated to midnight: %v", day)
	}
	if day.Location() != time.UTC {
		t.Errorf("not UTC: %v", day.Location())
	}
	if got := day.Format("2006-01-02"); got != "2026-08-16" {
		t.Errorf("day = %s, want 2026-08-16", got)
	}
}

func TestDayOfIsIdempotent(t *testing.T) {
	at := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	once := dayOf(at)
	twice := dayOf(once)
	if !once.Equal(twice) {
		t.Errorf("dayOf not idempotent: %v vs %v", once, twice)
	}
}
