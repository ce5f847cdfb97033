package availability

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking-widget/internal/clinic"
)

var utcMinus5 = time.FixedZone("UTC-5", -5*60*60)

func weekdays(open, close string) clinic.BusinessHours {
	h := &clinic.DayHours{Open: open, Close: close}
	return clinic.BusinessHours{Monday: h, Tuesday: h, Wednesday: h, Thursday: h, Friday: h}
}

func baseParams(now time.Time) Params {
	return Params{
		Hours:      weekdays("09:00", "17:00"),
		Location:   utcMinus5,
		Now:        now,
		SlotLength: 30 * time.Minute,
	}
}

func TestForDateNextMondayCoversWorkingDay(t *testing.T) {
	// Wednesday morning, the Monday after is 2025-06-09.
	now := time.Date(2025, 6, 4, 10, 0, 0, 0, utcMinus5)
	slots := ForDate(baseParams(now), Date{Year: 2025, Month: time.June, Day: 9})

	require.Len(t, slots, 16)
	assert.Equal(t, "2025-06-09T09:00:00-05:00", slots[0].Start)
	assert.Equal(t, "2025-06-09T09:30:00-05:00", slots[0].End)
	assert.Equal(t, "Mon, Jun 9 at 9:00 AM", slots[0].Label)
	assert.Equal(t, "2025-06-09T16:30:00-05:00", slots[len(slots)-1].Start)
	assert.Equal(t, "2025-06-09T17:00:00-05:00", slots[len(slots)-1].End)

	open := time.Date(2025, 6, 9, 9, 0, 0, 0, utcMinus5)
	close := time.Date(2025, 6, 9, 17, 0, 0, 0, utcMinus5)
	for _, s := range slots {
		assert.False(t, s.StartTime.Before(open))
		assert.True(t, s.StartTime.Before(s.EndTime))
		assert.False(t, s.EndTime.After(close))
	}
}

func TestForDateExcludesBookedStarts(t *testing.T) {
	now := time.Date(2025, 6, 4, 10, 0, 0, 0, utcMinus5)
	p := baseParams(now)
	// Booked instants arrive in UTC; 15:00Z is 10:00 in the clinic.
	p.Booked = []time.Time{
		time.Date(2025, 6, 9, 15, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 9, 21, 30, 0, 0, time.UTC),
	}

	slots := ForDate(p, Date{Year: 2025, Month: time.June, Day: 9})
	require.Len(t, slots, 14)
	for _, s := range slots {
		assert.NotEqual(t, "2025-06-09T10:00:00-05:00", s.Start)
		assert.NotEqual(t, "2025-06-09T16:30:00-05:00", s.Start)
	}
}

func TestForDateDropsPastUnits(t *testing.T) {
	now := time.Date(2025, 6, 9, 12, 10, 0, 0, utcMinus5)
	slots := ForDate(baseParams(now), Date{Year: 2025, Month: time.June, Day: 9})

	require.NotEmpty(t, slots)
	assert.Equal(t, "2025-06-09T12:30:00-05:00", slots[0].Start)

	exactly := time.Date(2025, 6, 9, 12, 30, 0, 0, utcMinus5)
	slots = ForDate(baseParams(exactly), Date{Year: 2025, Month: time.June, Day: 9})
	assert.Equal(t, "2025-06-09T13:00:00-05:00", slots[0].Start, "a unit starting now is not in the future")
}

func TestForDateClosedPastAndOutOfHorizon(t *testing.T) {
	now := time.Date(2025, 6, 4, 10, 0, 0, 0, utcMinus5)
	p := baseParams(now)

	assert.Empty(t, ForDate(p, Date{Year: 2025, Month: time.June, Day: 7}), "saturday is closed")
	assert.Empty(t, ForDate(p, Date{Year: 2025, Month: time.June, Day: 3}), "yesterday is in the past")
	assert.Empty(t, ForDate(p, Date{Year: 2025, Month: time.June, Day: 30}), "beyond the 14 day horizon")

	afterClose := time.Date(2025, 6, 4, 17, 5, 0, 0, utcMinus5)
	assert.Empty(t, ForDate(baseParams(afterClose), Date{Year: 2025, Month: time.June, Day: 4}))
}

func TestMalformedScheduleIsClosed(t *testing.T) {
	now := time.Date(2025, 6, 4, 10, 0, 0, 0, utcMinus5)
	p := baseParams(now)
	p.Hours.Monday = &clinic.DayHours{Open: "nine", Close: "17:00"}
	p.Hours.Tuesday = &clinic.DayHours{Open: "17:00", Close: "09:00"}

	assert.Empty(t, ForDate(p, Date{Year: 2025, Month: time.June, Day: 9}))
	assert.Empty(t, ForDate(p, Date{Year: 2025, Month: time.June, Day: 10}))
}

func TestNextSlotsCrossesDaysChronologically(t *testing.T) {
	// Friday 16:15: one unit left today, then Monday.
	now := time.Date(2025, 6, 6, 16, 15, 0, 0, utcMinus5)
	slots := NextSlots(baseParams(now), 3)

	require.Len(t, slots, 3)
	assert.Equal(t, "2025-06-06T16:30:00-05:00", slots[0].Start)
	assert.Equal(t, "2025-06-09T09:00:00-05:00", slots[1].Start)
	assert.Equal(t, "2025-06-09T09:30:00-05:00", slots[2].Start)

	assert.Nil(t, NextSlots(baseParams(now), 0))
}

func TestNextSlotsIsBoundedByHorizon(t *testing.T) {
	now := time.Date(2025, 6, 4, 10, 0, 0, 0, utcMinus5)
	slots := NextSlots(baseParams(now), 10000)

	last := slots[len(slots)-1].StartTime
	assert.True(t, last.Before(now.AddDate(0, 0, 14)))

	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].StartTime.Before(slots[i].StartTime))
	}
}

func TestNextOpenDays(t *testing.T) {
	now := time.Date(2025, 6, 6, 17, 30, 0, 0, utcMinus5)
	p := baseParams(now)

	days := NextOpenDays(p, 3)
	require.Len(t, days, 3)
	assert.Equal(t, Day{Date: "2025-06-09", Label: "Monday, June 9"}, days[0])
	assert.Equal(t, "2025-06-10", days[1].Date)
	assert.Equal(t, "2025-06-11", days[2].Date)

	// A fully booked Monday is skipped.
	for _, s := range ForDate(p, Date{Year: 2025, Month: time.June, Day: 9}) {
		p.Booked = append(p.Booked, s.StartTime)
	}
	days = NextOpenDays(p, 1)
	require.Len(t, days, 1)
	assert.Equal(t, "2025-06-10", days[0].Date)
}

func TestFits(t *testing.T) {
	now := time.Date(2025, 6, 4, 10, 0, 0, 0, utcMinus5)
	p := baseParams(now)
	at := func(day, hour, minute int) time.Time {
		return time.Date(2025, 6, day, hour, minute, 0, 0, utcMinus5)
	}

	assert.True(t, Fits(p, at(9, 9, 0), at(9, 9, 30)))
	assert.True(t, Fits(p, at(9, 16, 0), at(9, 17, 0)))
	assert.False(t, Fits(p, at(9, 8, 30), at(9, 9, 30)), "starts before open")
	assert.False(t, Fits(p, at(9, 16, 45), at(9, 17, 15)), "ends after close")
	assert.False(t, Fits(p, at(7, 10, 0), at(7, 10, 30)), "closed saturday")
	assert.False(t, Fits(p, at(9, 10, 0), at(9, 10, 0)), "empty window")

	// 14:00Z is 09:00 in the clinic zone.
	assert.True(t, Fits(p, time.Date(2025, 6, 9, 14, 0, 0, 0, time.UTC), time.Date(2025, 6, 9, 14, 30, 0, 0, time.UTC)))
}

func TestUsesTenantZoneNotCaller(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 03:00 UTC on Tuesday is still Monday evening in New York.
	now := time.Date(2025, 6, 10, 3, 0, 0, 0, time.UTC)
	p := Params{Hours: weekdays("09:00", "17:00"), Location: ny, Now: now}

	slots := NextSlots(p, 1)
	require.Len(t, slots, 1)
	assert.Equal(t, "2025-06-10T09:00:00-04:00", slots[0].Start)
	assert.Equal(t, "Tue, Jun 10 at 9:00 AM", slots[0].Label)
}

func TestDefaultsApplied(t *testing.T) {
	now := time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)
	p := Params{Hours: weekdays("09:00", "10:00"), Now: now}

	slots := ForDate(p, Date{Year: 2025, Month: time.June, Day: 5})
	require.Len(t, slots, 2, "30 minute default granularity")
	assert.Equal(t, "2025-06-05T09:00:00Z", slots[0].Start)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-09")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2025, Month: time.June, Day: 9}, d)
	assert.Equal(t, "2025-06-09", d.String())

	_, err = ParseDate("06/09/2025")
	assert.Error(t, err)
}
