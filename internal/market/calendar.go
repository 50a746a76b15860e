package market

import (
	"fmt"
	"time"
	_ "time/tzdata" // containers without zoneinfo still resolve America/New_York
)

const (
	DefaultTimezone = "America/New_York"
	openMinute      = 9*60 + 30
	closeMinute     = 16 * 60
)

// Calendar answers trading-hours questions for a single exchange.
// Weekdays 09:30 to 16:00 local time, no holiday calendar.
type Calendar struct {
	loc *time.Location
}

// Status is the market state exposed to clients
type Status struct {
	IsOpen      bool   `json:"isOpen"`
	CurrentTime string `json:"currentTime"`
	Timezone    string `json:"timezone"`
	Hours       string `json:"hours"`
	Message     string `json:"message"`
}

// NewCalendar loads the exchange time zone
func NewCalendar(tz string) (*Calendar, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", tz, err)
	}
	return &Calendar{loc: loc}, nil
}

// NYSE returns the New York calendar
func NYSE() *Calendar {
	cal, err := NewCalendar(DefaultTimezone)
	if err != nil {
		// unreachable with embedded tzdata
		panic(err)
	}
	return cal
}

// Location returns the exchange time zone
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsOpen reports whether t falls inside the regular session
func (c *Calendar) IsOpen(t time.Time) bool {
	local := t.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	return minute >= openMinute && minute < closeMinute
}

// Status describes the market at t
func (c *Calendar) Status(t time.Time) Status {
	open := c.IsOpen(t)
	msg := "Market closed"
	if open {
		msg = "Market open"
	}
	return Status{
		IsOpen:      open,
		CurrentTime: t.In(c.loc).Format("03:04:05 PM"),
		Timezone:    c.loc.String(),
		Hours:       "09:30-16:00 Mon-Fri",
		Message:     msg,
	}
}

// Clock adapts a plain predicate, e.g. AlwaysOpen for --ignore-hours
type Clock func(t time.Time) bool

// IsOpen implements contracts.MarketClock
func (f Clock) IsOpen(t time.Time) bool {
	return f(t)
}

// AlwaysOpen treats every instant as a trading session
var AlwaysOpen = Clock(func(time.Time) bool { return true })
