package session

import (
	"testing"
	"time"
)

func at(day time.Weekday, hour int) time.Time {
	// 2025-06-02 is a Monday
	base := time.Date(2025, 6, 2, hour, 0, 0, 0, time.UTC)
	offset := int(day) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	return base.AddDate(0, 0, offset)
}

func TestMarketClosedAllRestDay(t *testing.T) {
	c := New()
	for hour := 0; hour < 24; hour++ {
		if c.IsMarketOpen(at(time.Saturday, hour)) {
			t.Fatalf("expected closed on Saturday %02d:00", hour)
		}
	}
}

func TestMarketReopensSundayEvening(t *testing.T) {
	c := New()
	if c.IsMarketOpen(at(time.Sunday, 21)) {
		t.Fatalf("expected closed Sunday 21:00")
	}
	if !c.IsMarketOpen(at(time.Sunday, 22)) {
		t.Fatalf("expected open Sunday 22:00")
	}
}

func TestMarketClosesFridayEvening(t *testing.T) {
	c := New()
	if !c.IsMarketOpen(at(time.Friday, 21)) {
		t.Fatalf("expected open Friday 21:00")
	}
	if c.IsMarketOpen(at(time.Friday, 22)) {
		t.Fatalf("expected closed Friday 22:00")
	}
	if c.IsMarketOpen(at(time.Friday, 23)) {
		t.Fatalf("expected closed Friday 23:00")
	}
}

func TestMidweekAlwaysOpen(t *testing.T) {
	c := New()
	for _, day := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday} {
		for hour := 0; hour < 24; hour++ {
			if !c.IsMarketOpen(at(day, hour)) {
				t.Fatalf("expected open %v %02d:00", day, hour)
			}
		}
	}
}

func TestApproachingCloseWindow(t *testing.T) {
	c := New()
	if c.IsApproachingClose(at(time.Friday, 20)) {
		t.Fatalf("20:00 is before the warning window")
	}
	if !c.IsApproachingClose(at(time.Friday, 21)) {
		t.Fatalf("21:00 should be inside the warning window")
	}
	if c.IsApproachingClose(at(time.Friday, 22)) {
		t.Fatalf("22:00 is past the close, not approaching it")
	}
	if c.IsApproachingClose(at(time.Thursday, 21)) {
		t.Fatalf("warning window applies to the close day only")
	}
}

func TestCalendarRespectsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	c := New(WithLocation(loc))
	// 20:30 UTC on Friday is 22:30 in UTC+2, past the close.
	utc := at(time.Friday, 20).Add(30 * time.Minute)
	if c.IsMarketOpen(utc) {
		t.Fatalf("expected closed: %v is past the close in %v", utc, loc)
	}
}
