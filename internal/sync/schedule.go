package sync

import (
	"fmt"
	"time"
)

// schedule decides when an automatic sync run becomes due.
//
// With an anchor time configured, a run is due at the first anchor
// instant (the source's daily publication time) strictly after the last
// run finished. Without one, a run is due once the plain interval has
// elapsed.
type schedule struct {
	interval   time.Duration
	anchorHour int
	anchorMin  int
	anchored   bool
}

func newSchedule(interval time.Duration, anchorTime string) (*schedule, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive")
	}

	s := &schedule{interval: interval}
	if anchorTime != "" {
		t, err := time.Parse("15:04", anchorTime)
		if err != nil {
			return nil, fmt.Errorf("invalid anchor time %q: %w", anchorTime, err)
		}
		s.anchorHour = t.Hour()
		s.anchorMin = t.Minute()
		s.anchored = true
	}
	return s, nil
}

// due reports whether a run is due at now, given when the last run finished
func (s *schedule) due(now, lastFinished time.Time) bool {
	if !s.anchored {
		return now.Sub(lastFinished) >= s.interval
	}
	return !now.Before(s.nextAnchorAfter(lastFinished))
}

// nextAnchorAfter returns the first anchor instant strictly after t
func (s *schedule) nextAnchorAfter(t time.Time) time.Time {
	anchor := time.Date(t.Year(), t.Month(), t.Day(), s.anchorHour, s.anchorMin, 0, 0, t.Location())
	if !anchor.After(t) {
		anchor = anchor.AddDate(0, 0, 1)
	}
	return anchor
}
