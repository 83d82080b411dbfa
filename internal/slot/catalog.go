// Package slot defines the clinic's bookable time windows. The catalog is a
// pure lookup built once from configuration: it never touches storage, so the
// same date always yields the same ordered slot templates.
package slot

import (
	"fmt"
	"time"
)

const (
	DateFormat = "2006-01-02"
	TimeFormat = "15:04"
)

// TimeSlot is a bookable window template. Start and End are wall-clock HH:MM
// strings, which is also how they travel over the API and sit in the ledger.
type TimeSlot struct {
	Start    string
	End      string
	Capacity int
}

type Config struct {
	Open        string // first slot start, HH:MM
	Close       string // no slot may end after this, HH:MM
	SlotMinutes int
	BreakStart  string // optional midday break, empty disables
	BreakEnd    string
	Capacity    int
	Grace       time.Duration // how long after start a slot stays selectable
	ClosedDays  []time.Weekday
}

func DefaultConfig() Config {
	return Config{
		Open:        "08:00",
		Close:       "16:00",
		SlotMinutes: 30,
		BreakStart:  "13:00",
		BreakEnd:    "14:00",
		Capacity:    2,
		Grace:       15 * time.Minute,
		ClosedDays:  []time.Weekday{time.Saturday, time.Sunday},
	}
}

type Catalog struct {
	template []TimeSlot
	byStart  map[string]TimeSlot
	closed   map[time.Weekday]bool
	grace    time.Duration
}

func NewCatalog(cfg Config) (*Catalog, error) {
	open, err := minutesOfDay(cfg.Open)
	if err != nil {
		return nil, fmt.Errorf("parse open time: %w", err)
	}
	close, err := minutesOfDay(cfg.Close)
	if err != nil {
		return nil, fmt.Errorf("parse close time: %w", err)
	}
	if close <= open {
		return nil, fmt.Errorf("close %s must be after open %s", cfg.Close, cfg.Open)
	}
	if cfg.SlotMinutes <= 0 {
		return nil, fmt.Errorf("slot length must be positive, got %d", cfg.SlotMinutes)
	}
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("slot capacity must be positive, got %d", cfg.Capacity)
	}

	breakStart, breakEnd := -1, -1
	if cfg.BreakStart != "" && cfg.BreakEnd != "" {
		if breakStart, err = minutesOfDay(cfg.BreakStart); err != nil {
			return nil, fmt.Errorf("parse break start: %w", err)
		}
		if breakEnd, err = minutesOfDay(cfg.BreakEnd); err != nil {
			return nil, fmt.Errorf("parse break end: %w", err)
		}
		if breakEnd < breakStart {
			return nil, fmt.Errorf("break end %s before break start %s", cfg.BreakEnd, cfg.BreakStart)
		}
	}

	c := &Catalog{
		byStart: make(map[string]TimeSlot),
		closed:  make(map[time.Weekday]bool),
		grace:   cfg.Grace,
	}
	for _, d := range cfg.ClosedDays {
		c.closed[d] = true
	}

	for start := open; start+cfg.SlotMinutes <= close; start += cfg.SlotMinutes {
		end := start + cfg.SlotMinutes
		if breakStart >= 0 && start < breakEnd && end > breakStart {
			continue
		}
		ts := TimeSlot{
			Start:    formatMinutes(start),
			End:      formatMinutes(end),
			Capacity: cfg.Capacity,
		}
		c.template = append(c.template, ts)
		c.byStart[ts.Start] = ts
	}

	if len(c.template) == 0 {
		return nil, fmt.Errorf("schedule %s-%s with %d-minute slots yields no windows", cfg.Open, cfg.Close, cfg.SlotMinutes)
	}

	return c, nil
}

// SlotsForDate returns the ordered slot templates for the given date. Closed
// days return an empty, non-nil slice so callers can tell "clinic closed"
// apart from "not fetched".
func (c *Catalog) SlotsForDate(date time.Time) []TimeSlot {
	if c.closed[date.Weekday()] {
		return []TimeSlot{}
	}
	out := make([]TimeSlot, len(c.template))
	copy(out, c.template)
	return out
}

// Slot looks up the template whose start matches the given HH:MM on a date.
func (c *Catalog) Slot(date time.Time, start string) (TimeSlot, bool) {
	if c.closed[date.Weekday()] {
		return TimeSlot{}, false
	}
	ts, ok := c.byStart[start]
	return ts, ok
}

// IsPast reports whether the slot starting at start on date is no longer
// selectable at the given instant. A slot stays selectable for the grace
// window after its start; any date before today is past outright.
func (c *Catalog) IsPast(date time.Time, start string, now time.Time) bool {
	y, m, d := date.Date()
	ny, nm, nd := now.Date()
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, now.Location())
	day := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	if day.Before(today) {
		return true
	}
	if day.After(today) {
		return false
	}

	mins, err := minutesOfDay(start)
	if err != nil {
		return false
	}
	slotStart := day.Add(time.Duration(mins) * time.Minute)
	return !now.Before(slotStart.Add(c.grace))
}

// ParseDate parses the wire date format used across the service.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateFormat, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func minutesOfDay(s string) (int, error) {
	t, err := time.Parse(TimeFormat, s)
	if err != nil {
		return 0, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
