package worker

import (
	"context"
	"fmt"
	"time"
)

// ParseClock parses a wall-clock time in HH:MM form.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock %q, want HH:MM: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// NextDaily returns the first hour:minute in loc strictly after now.
func NextDaily(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

// Daily returns a channel that receives once a day at the given HH:MM in loc.
// The channel is closed when ctx is cancelled.
func Daily(ctx context.Context, at string, loc *time.Location) (<-chan time.Time, error) {
	hour, minute, err := ParseClock(at)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}

	ch := make(chan time.Time)
	go func() {
		defer close(ch)
		for {
			timer := time.NewTimer(time.Until(NextDaily(time.Now(), hour, minute, loc)))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case fired := <-timer.C:
				select {
				case ch <- fired:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
