package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Interval is the cadence of the timer trigger.
type Interval string

// Supported intervals.
const (
	// IntervalHourly fires once an hour at the configured minute.
	IntervalHourly Interval = "hourly"

	// IntervalDaily fires once a day at the configured time.
	IntervalDaily Interval = "daily"

	// IntervalWeekly fires once a week on the configured weekday and time.
	IntervalWeekly Interval = "weekly"
)

// IsValid returns true if the interval is recognised.
func (i Interval) IsValid() bool {
	switch i {
	case IntervalHourly, IntervalDaily, IntervalWeekly:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (i Interval) String() string {
	return string(i)
}

// DefaultScheduleTime is the wall-clock anchor used when none is configured.
const DefaultScheduleTime = "02:00"

// Schedule describes when the timer trigger fires.
type Schedule struct {
	// Interval is hourly, daily or weekly.
	Interval Interval

	// Hour and Minute anchor the fire time. Hourly schedules use Minute only.
	Hour   int
	Minute int

	// Weekday is used by weekly schedules.
	Weekday time.Weekday
}

// NewSchedule builds a Schedule from its configuration strings.
// An empty at defaults to DefaultScheduleTime; an empty weekday to Sunday.
func NewSchedule(interval, at, weekday string) (Schedule, error) {
	s := Schedule{Interval: Interval(strings.ToLower(strings.TrimSpace(interval)))}
	if s.Interval == "" {
		s.Interval = IntervalDaily
	}
	if !s.Interval.IsValid() {
		return Schedule{}, fmt.Errorf("%w: unknown schedule interval %q", ErrInvalidInput, interval)
	}

	if at == "" {
		at = DefaultScheduleTime
	}
	hour, minute, err := ParseClock(at)
	if err != nil {
		return Schedule{}, err
	}
	s.Hour, s.Minute = hour, minute

	day, err := ParseWeekday(weekday)
	if err != nil {
		return Schedule{}, err
	}
	s.Weekday = day
	return s, nil
}

// Next returns the first fire time strictly after the given instant.
// Fire times are anchored to the wall clock in after's location, so missed
// ticks are never replayed: a process that slept through several fire times
// gets only the next one.
func (s Schedule) Next(after time.Time) time.Time {
	y, m, d := after.Date()
	loc := after.Location()

	switch s.Interval {
	case IntervalHourly:
		next := time.Date(y, m, d, after.Hour(), s.Minute, 0, 0, loc)
		if !next.After(after) {
			next = next.Add(time.Hour)
		}
		return next
	case IntervalWeekly:
		next := time.Date(y, m, d, s.Hour, s.Minute, 0, 0, loc)
		days := (int(s.Weekday) - int(after.Weekday()) + 7) % 7
		next = next.AddDate(0, 0, days)
		if !next.After(after) {
			next = next.AddDate(0, 0, 7)
		}
		return next
	default:
		next := time.Date(y, m, d, s.Hour, s.Minute, 0, 0, loc)
		if !next.After(after) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
}

// String describes the schedule, e.g. "weekly on Sunday at 02:00".
func (s Schedule) String() string {
	switch s.Interval {
	case IntervalHourly:
		return fmt.Sprintf("hourly at :%02d", s.Minute)
	case IntervalWeekly:
		return fmt.Sprintf("weekly on %s at %02d:%02d", s.Weekday, s.Hour, s.Minute)
	default:
		return fmt.Sprintf("daily at %02d:%02d", s.Hour, s.Minute)
	}
}

// ParseClock parses an "HH:MM" 24-hour wall-clock time.
func ParseClock(value string) (hour, minute int, err error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: schedule time %q is not HH:MM", ErrInvalidInput, value)
	}
	hour, err = strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: schedule time %q has an invalid hour", ErrInvalidInput, value)
	}
	minute, err = strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: schedule time %q has an invalid minute", ErrInvalidInput, value)
	}
	return hour, minute, nil
}

// ParseWeekday parses an English weekday name or its three-letter prefix.
// The empty string means Sunday.
func ParseWeekday(value string) (time.Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return time.Sunday, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if v == name || v == name[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("%w: unknown weekday %q", ErrInvalidInput, value)
}
