// Package system provides the wall clock runs are timed and scheduled by.
package system

import (
	"context"
	"fmt"
	"time"
)

// Clock reports time in the market's location.
type Clock struct {
	loc *time.Location
}

// New creates a Clock for the named IANA location. An empty name means UTC.
func New(location string) (*Clock, error) {
	if location == "" {
		return &Clock{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(location)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", location, err)
	}
	return &Clock{loc: loc}, nil
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location returns the clock's location.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Sleep waits for d or until ctx is done, whichever comes first.
func (*Clock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
