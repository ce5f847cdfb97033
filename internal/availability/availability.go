// Package availability turns a weekly schedule, a time zone and the set of
// already-booked start times into bookable slots. Everything here is pure: no
// I/O and no clock reads, so callers pass "now" explicitly.
package availability

import (
	"time"

	"github.com/wolfman30/clinic-booking-widget/internal/clinic"
)

const (
	DefaultSlotLength  = 30 * time.Minute
	DefaultHorizonDays = 14
	DefaultNextCount   = 8
)

// Params describes one availability computation.
type Params struct {
	Hours       clinic.BusinessHours
	Location    *time.Location
	Booked      []time.Time
	Now         time.Time
	SlotLength  time.Duration
	HorizonDays int
}

// Slot is a bookable unit. Start and End are RFC3339 in the tenant zone.
type Slot struct {
	Label string `json:"label"`
	Start string `json:"start"`
	End   string `json:"end"`

	StartTime time.Time `json:"-"`
	EndTime   time.Time `json:"-"`
}

// Day is a calendar day with at least one open slot.
type Day struct {
	Date  string `json:"date"`
	Label string `json:"label"`
}

// Date is a calendar date in the tenant zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses "2006-01-02".
func ParseDate(value string) (Date, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return Date{}, err
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d Date) String() string {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

func (p Params) normalized() Params {
	if p.Location == nil {
		p.Location = time.UTC
	}
	if p.SlotLength <= 0 {
		p.SlotLength = DefaultSlotLength
	}
	if p.HorizonDays <= 0 {
		p.HorizonDays = DefaultHorizonDays
	}
	return p
}

// ForDate returns every open slot on date. Dates outside the horizon, which
// starts today in the tenant zone, yield no slots.
func ForDate(p Params, date Date) []Slot {
	p = p.normalized()
	booked := bookedSet(p.Booked)
	for _, day := range horizonDays(p) {
		if day.Year == date.Year && day.Month == date.Month && day.Day == date.Day {
			return daySlots(p, day, booked)
		}
	}
	return nil
}

// NextSlots returns the first n open slots across the horizon in
// chronological order.
func NextSlots(p Params, n int) []Slot {
	if n <= 0 {
		return nil
	}
	p = p.normalized()
	booked := bookedSet(p.Booked)
	out := make([]Slot, 0, n)
	for _, day := range horizonDays(p) {
		for _, slot := range daySlots(p, day, booked) {
			out = append(out, slot)
			if len(out) == n {
				return out
			}
		}
	}
	return out
}

// NextOpenDays returns up to k days within the horizon that still have at
// least one open slot.
func NextOpenDays(p Params, k int) []Day {
	if k <= 0 {
		return nil
	}
	p = p.normalized()
	booked := bookedSet(p.Booked)
	var out []Day
	for _, day := range horizonDays(p) {
		if len(daySlots(p, day, booked)) == 0 {
			continue
		}
		midnight := time.Date(day.Year, day.Month, day.Day, 0, 0, 0, 0, p.Location)
		out = append(out, Day{Date: day.String(), Label: midnight.Format("Monday, January 2")})
		if len(out) == k {
			break
		}
	}
	return out
}

// Fits reports whether [start, end) lies inside the working window of start's
// weekday in the tenant zone.
func Fits(p Params, start, end time.Time) bool {
	p = p.normalized()
	if !end.After(start) {
		return false
	}
	local := start.In(p.Location)
	openAt, closeAt, ok := window(p, Date{Year: local.Year(), Month: local.Month(), Day: local.Day()})
	if !ok {
		return false
	}
	return !start.Before(openAt) && !end.After(closeAt)
}

func horizonDays(p Params) []Date {
	today := p.Now.In(p.Location)
	days := make([]Date, 0, p.HorizonDays)
	for i := 0; i < p.HorizonDays; i++ {
		d := time.Date(today.Year(), today.Month(), today.Day()+i, 12, 0, 0, 0, p.Location)
		days = append(days, Date{Year: d.Year(), Month: d.Month(), Day: d.Day()})
	}
	return days
}

func window(p Params, day Date) (time.Time, time.Time, bool) {
	noon := time.Date(day.Year, day.Month, day.Day, 12, 0, 0, 0, p.Location)
	openMin, closeMin, ok := p.Hours.GetHoursForDay(noon.Weekday()).Window()
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	openAt := time.Date(day.Year, day.Month, day.Day, openMin/60, openMin%60, 0, 0, p.Location)
	closeAt := time.Date(day.Year, day.Month, day.Day, closeMin/60, closeMin%60, 0, 0, p.Location)
	return openAt, closeAt, true
}

func daySlots(p Params, day Date, booked map[int64]struct{}) []Slot {
	openAt, closeAt, ok := window(p, day)
	if !ok {
		return nil
	}
	var out []Slot
	for start := openAt; !start.Add(p.SlotLength).After(closeAt); start = start.Add(p.SlotLength) {
		if !start.After(p.Now) {
			continue
		}
		if _, taken := booked[start.Unix()]; taken {
			continue
		}
		end := start.Add(p.SlotLength)
		out = append(out, Slot{
			Label:     start.Format("Mon, Jan 2 at 3:04 PM"),
			Start:     start.Format(time.RFC3339),
			End:       end.Format(time.RFC3339),
			StartTime: start,
			EndTime:   end,
		})
	}
	return out
}

func bookedSet(booked []time.Time) map[int64]struct{} {
	set := make(map[int64]struct{}, len(booked))
	for _, b := range booked {
		set[b.Unix()] = struct{}{}
	}
	return set
}
