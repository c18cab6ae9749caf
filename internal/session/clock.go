package session

import "time"

// Clock encodes the weekly trading calendar of the authoritative market.
// All methods are pure functions of wall-clock time, evaluated in the
// configured location: closed all of the rest day, closed before the reopen
// hour on the reopen day, closed from the close hour onward on the close day,
// open all other days.
type Clock struct {
	loc        *time.Location
	restDay    time.Weekday
	reopenDay  time.Weekday
	reopenHour int
	closeDay   time.Weekday
	closeHour  int
	warnHour   int
}

// Option configures Clock.
type Option func(*Clock)

// WithLocation sets the time zone the calendar is evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(c *Clock) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithRestDay sets the fully closed day.
func WithRestDay(day time.Weekday) Option {
	return func(c *Clock) { c.restDay = day }
}

// WithReopen sets the reopening day and hour.
func WithReopen(day time.Weekday, hour int) Option {
	return func(c *Clock) {
		c.reopenDay = day
		c.reopenHour = hour
	}
}

// WithClose sets the closing day, the closing hour, and the hour the
// approaching-close warning window starts.
func WithClose(day time.Weekday, closeHour, warnHour int) Option {
	return func(c *Clock) {
		c.closeDay = day
		c.closeHour = closeHour
		c.warnHour = warnHour
	}
}

// New creates a Clock with the standard forex week: closed Saturday, reopens
// Sunday 22:00, closes Friday 22:00 with a warning window from 21:00.
func New(opts ...Option) *Clock {
	c := &Clock{
		loc:        time.UTC,
		restDay:    time.Saturday,
		reopenDay:  time.Sunday,
		reopenHour: 22,
		closeDay:   time.Friday,
		closeHour:  22,
		warnHour:   21,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsMarketOpen reports whether the authoritative market trades at t.
func (c *Clock) IsMarketOpen(t time.Time) bool {
	t = t.In(c.loc)
	switch t.Weekday() {
	case c.restDay:
		return false
	case c.reopenDay:
		return t.Hour() >= c.reopenHour
	case c.closeDay:
		return t.Hour() < c.closeHour
	default:
		return true
	}
}

// IsApproachingClose reports whether t falls inside the warning window
// before the weekly closing boundary.
func (c *Clock) IsApproachingClose(t time.Time) bool {
	t = t.In(c.loc)
	if t.Weekday() != c.closeDay {
		return false
	}
	return t.Hour() >= c.warnHour && t.Hour() < c.closeHour
}
