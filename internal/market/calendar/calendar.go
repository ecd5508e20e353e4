// Package calendar decides whether the market is open at an instant and
// computes the next open, threading time through a Clock so tests can
// compress minutes into microseconds.
package calendar

import "time"

// Clock abstracts time reads so components can be driven by a fake clock
// in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// FakeClock is a settable instant for deterministic tests. It is not
// synchronized: Set and Advance must not run concurrently with Now.
type FakeClock struct {
	at time.Time
}

// NewFakeClock builds a FakeClock pinned at at.
func NewFakeClock(at time.Time) *FakeClock {
	return &FakeClock{at: at}
}

// Now returns the pinned instant.
func (c *FakeClock) Now() time.Time { return c.at }

// Set moves the pinned instant.
func (c *FakeClock) Set(at time.Time) { c.at = at }

// Advance moves the pinned instant forward by d.
func (c *FakeClock) Advance(d time.Duration) { c.at = c.at.Add(d) }

const (
	defaultOpenHour, defaultOpenMinute   = 9, 0
	defaultCloseHour, defaultCloseMinute = 15, 30
	defaultTimezone                      = "Asia/Seoul"
)

// Config carries the trading-day schedule from spec.md §9: open/close
// clock times and the zone they're read in.
type Config struct {
	OpenHour, OpenMinute   int
	CloseHour, CloseMinute int
	Timezone               string
}

// DefaultConfig matches spec.md's literal schedule: 09:00-15:30 Asia/Seoul.
func DefaultConfig() Config {
	return Config{
		OpenHour: defaultOpenHour, OpenMinute: defaultOpenMinute,
		CloseHour: defaultCloseHour, CloseMinute: defaultCloseMinute,
		Timezone: defaultTimezone,
	}
}

// Calendar decides market-open state from a Clock against a Config's
// schedule, inclusive of both endpoints. Holidays are not modeled.
type Calendar struct {
	clock                  Clock
	loc                    *time.Location
	openHour, openMinute   int
	closeHour, closeMinute int
}

// New builds a Calendar from cfg. Falls back to UTC if cfg.Timezone's zone
// database entry is unavailable, which should not happen on a real
// deployment target but keeps tests from panicking on a stripped-down
// image.
func New(clock Clock, cfg Config) *Calendar {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Calendar{
		clock: clock, loc: loc,
		openHour: cfg.OpenHour, openMinute: cfg.OpenMinute,
		closeHour: cfg.CloseHour, closeMinute: cfg.CloseMinute,
	}
}

// Now returns the clock's current instant.
func (c *Calendar) Now() time.Time { return c.clock.Now() }

// IsOpen reports whether the market is open at t.
func (c *Calendar) IsOpen(t time.Time) bool {
	local := t.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	open := time.Date(local.Year(), local.Month(), local.Day(), c.openHour, c.openMinute, 0, 0, c.loc)
	close := time.Date(local.Year(), local.Month(), local.Day(), c.closeHour, c.closeMinute, 0, 0, c.loc)
	return !local.Before(open) && !local.After(close)
}

// IsOpenNow reports whether the market is open at the clock's current
// instant.
func (c *Calendar) IsOpenNow() bool { return c.IsOpen(c.Now()) }

// NextOpen computes the market's next open at the configured open time
// and zone (09:00 Asia/Seoul by default), skipping weekends. It only rolls
// to the following day once t has reached or passed today's close (15:30
// by default); called anywhere in between (including during market hours)
// it returns today's open, already past or not.
func (c *Calendar) NextOpen(t time.Time) time.Time {
	local := t.In(c.loc)
	todayOpen := time.Date(local.Year(), local.Month(), local.Day(), c.openHour, c.openMinute, 0, 0, c.loc)
	todayClose := time.Date(local.Year(), local.Month(), local.Day(), c.closeHour, c.closeMinute, 0, 0, c.loc)

	candidate := todayOpen
	if !local.Before(todayClose) {
		candidate = todayOpen.AddDate(0, 0, 1)
	}

	for {
		switch candidate.Weekday() {
		case time.Saturday:
			candidate = candidate.AddDate(0, 0, 2)
		case time.Sunday:
			candidate = candidate.AddDate(0, 0, 1)
		default:
			return candidate
		}
	}
}
