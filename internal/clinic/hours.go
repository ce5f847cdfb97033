// Package clinic models the tenants (clinics) the booking widget acts for,
// their optional locations and agents, and the working hours they publish.
package clinic

import (
	"fmt"
	"time"
)

// DayHours represents the opening hours for a single day.
// Nil means the clinic is closed that day.
type DayHours struct {
	Open  string `json:"open"`  // "09:00" in 24-hour format
	Close string `json:"close"` // "18:00" in 24-hour format
}

// BusinessHours maps day names to their hours.
type BusinessHours struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

// Window returns open and close as minutes after midnight. ok is false when
// either value is malformed or the day does not open before it closes.
func (d *DayHours) Window() (openMin, closeMin int, ok bool) {
	if d == nil {
		return 0, 0, false
	}
	openMin, err := parseClock(d.Open)
	if err != nil {
		return 0, 0, false
	}
	closeMin, err = parseClock(d.Close)
	if err != nil {
		return 0, 0, false
	}
	if closeMin <= openMin {
		return 0, 0, false
	}
	return openMin, closeMin, true
}

// GetHoursForDay returns the hours for weekday, or nil when closed.
func (b *BusinessHours) GetHoursForDay(weekday time.Weekday) *DayHours {
	if b == nil {
		return nil
	}
	switch weekday {
	case time.Sunday:
		return b.Sunday
	case time.Monday:
		return b.Monday
	case time.Tuesday:
		return b.Tuesday
	case time.Wednesday:
		return b.Wednesday
	case time.Thursday:
		return b.Thursday
	case time.Friday:
		return b.Friday
	case time.Saturday:
		return b.Saturday
	default:
		return nil
	}
}

// HasAnyHours returns true if at least one day has usable hours configured.
func (b *BusinessHours) HasAnyHours() bool {
	if b == nil {
		return false
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if _, _, ok := b.GetHoursForDay(wd).Window(); ok {
			return true
		}
	}
	return false
}

func parseClock(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		// "24:00" is accepted as end of day.
		if value == "24:00" {
			return 24 * 60, nil
		}
		return 0, fmt.Errorf("clinic: invalid clock value %q: %w", value, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// LoadLocation resolves an IANA zone name, falling back to UTC when the name is
// empty or unknown.
func LoadLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
