package calendar

import (
	"fmt"
	"time"
)

const dayFormat = "2006-01-02"

// Day is a calendar day key in YYYY-MM-DD form, anchored to the reporting timezone.
type Day string

// Range is an inclusive date range, From <= To.
type Range struct {
	From Day `json:"from"`
	To   Day `json:"to"`
}

// Clock abstracts wall-clock time so freshness classification is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Config holds resolver configuration.
type Config struct {
	Timezone           string `mapstructure:"timezone"`
	VolatileWindowDays int    `mapstructure:"volatile_window_days"`
}

// DefaultConfig returns default resolver configuration.
func DefaultConfig() Config {
	return Config{
		Timezone:           "Asia/Tokyo",
		VolatileWindowDays: 2,
	}
}

// Resolver normalizes instants into calendar days in one fixed reporting timezone
// and computes comparison periods. All "today" decisions in the service go through it.
type Resolver struct {
	loc    *time.Location
	window int
	clock  Clock
}

// NewResolver creates a resolver for the configured reporting timezone.
func NewResolver(cfg Config, clock Clock) (*Resolver, error) {
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultConfig().Timezone
	}
	if cfg.VolatileWindowDays == 0 {
		cfg.VolatileWindowDays = DefaultConfig().VolatileWindowDays
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid reporting timezone %q: %w", cfg.Timezone, err)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Resolver{loc: loc, window: cfg.VolatileWindowDays, clock: clock}, nil
}

// Location returns the reporting timezone.
func (r *Resolver) Location() *time.Location { return r.loc }

// ParseDay validates a YYYY-MM-DD string and returns it as a Day.
func ParseDay(s string) (Day, error) {
	if _, err := time.Parse(dayFormat, s); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Day(s), nil
}

// DayOf converts an instant to its calendar day in the reporting timezone.
func (r *Resolver) DayOf(t time.Time) Day {
	return Day(t.In(r.loc).Format(dayFormat))
}

// Today returns the current calendar day in the reporting timezone.
func (r *Resolver) Today() Day {
	return r.DayOf(r.clock.Now())
}

// Now returns the resolver clock's current instant.
func (r *Resolver) Now() time.Time {
	return r.clock.Now()
}

// Time returns midnight of the day in the reporting timezone.
func (r *Resolver) Time(d Day) (time.Time, error) {
	return time.ParseInLocation(dayFormat, string(d), r.loc)
}

// ExpandRange returns the inclusive ordered list of days between From and To.
func (r *Resolver) ExpandRange(rng Range) ([]Day, error) {
	from, err := r.Time(rng.From)
	if err != nil {
		return nil, err
	}
	to, err := r.Time(rng.To)
	if err != nil {
		return nil, err
	}
	if from.After(to) {
		return nil, fmt.Errorf("range from %s is after to %s", rng.From, rng.To)
	}

	var days []Day
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, Day(d.Format(dayFormat)))
	}
	return days, nil
}

// PreviousPeriod shifts both bounds one calendar month back. When the day of month
// does not exist in the target month it is clamped to that month's last day
// (2024-03-31 -> 2024-02-29), never rolled over into the next month.
func (r *Resolver) PreviousPeriod(rng Range) (Range, error) {
	from, err := r.Time(rng.From)
	if err != nil {
		return Range{}, err
	}
	to, err := r.Time(rng.To)
	if err != nil {
		return Range{}, err
	}
	return Range{
		From: Day(monthBack(from).Format(dayFormat)),
		To:   Day(monthBack(to).Format(dayFormat)),
	}, nil
}

func monthBack(t time.Time) time.Time {
	y, m, d := t.Date()
	// First of the previous month, normalized by time.Date.
	first := time.Date(y, m-1, 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}

// IsVolatile reports whether the day is recent enough that its upstream metrics may
// still change: day >= today - VolatileWindowDays, today included.
func (r *Resolver) IsVolatile(d, today Day) bool {
	dt, err := r.Time(d)
	if err != nil {
		return true
	}
	tt, err := r.Time(today)
	if err != nil {
		return true
	}
	threshold := tt.AddDate(0, 0, -r.window)
	return !dt.Before(threshold)
}

// Span returns the contiguous range covering an ordered, non-empty day list.
func Span(days []Day) Range {
	return Range{From: days[0], To: days[len(days)-1]}
}
