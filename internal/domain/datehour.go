package domain

import (
	"slices"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

// NoHoliday is the holiday name of ordinary days.
const NoHoliday = "None"

// DateHourSlot is one row of the date-hour dimension.
type DateHourSlot struct {
	DateHourKey   int64
	Hour          int
	TimeOfDay     string
	DayNumber     int
	WeekDayNumber int // Monday = 0
	WeekDayName   string
	WeekendFlag   int
	MonthNumber   int
	MonthName     string
	Year          int
	HolidayFlag   int
	HolidayName   string
}

// HolidayCalendar names the public holiday falling on a date, if any.
type HolidayCalendar interface {
	Holiday(date time.Time) (name string, ok bool)
}

// USHolidays is the US federal holiday calendar.
type USHolidays struct {
	calendar *cal.BusinessCalendar
}

// NewUSHolidays creates a calendar of US federal holidays, including observed
// dates of holidays falling on a weekend.
func NewUSHolidays() *USHolidays {
	c := cal.NewBusinessCalendar()
	c.AddHoliday(us.Holidays...)
	return &USHolidays{calendar: c}
}

// Holiday implements HolidayCalendar.
func (h *USHolidays) Holiday(date time.Time) (string, bool) {
	actual, observed, holiday := h.calendar.IsHoliday(date)
	switch {
	case actual:
		return holiday.Name, true
	case observed:
		return holiday.Name + " (observed)", true
	default:
		return "", false
	}
}

// GenerateDateHours produces one slot per hour from start to end inclusive,
// both truncated to the hour. An empty range yields no slots. A nil calendar
// marks no holidays.
func GenerateDateHours(start, end time.Time, holidays HolidayCalendar) []DateHourSlot {
	start, end = start.Truncate(time.Hour), end.Truncate(time.Hour)
	if end.Before(start) {
		return nil
	}

	out := make([]DateHourSlot, 0, int(end.Sub(start)/time.Hour)+1)
	seen := map[int64]bool{}
	for t := start; !t.After(end); t = t.Add(time.Hour) {
		key := DateHourKey(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, newDateHourSlot(t, holidays))
	}
	return out
}

func newDateHourSlot(t time.Time, holidays HolidayCalendar) DateHourSlot {
	weekday := (int(t.Weekday()) + 6) % 7
	s := DateHourSlot{
		DateHourKey:   DateHourKey(t),
		Hour:          t.Hour(),
		TimeOfDay:     "PM",
		DayNumber:     t.YearDay(),
		WeekDayNumber: weekday,
		WeekDayName:   t.Weekday().String(),
		MonthNumber:   int(t.Month()),
		MonthName:     t.Month().String(),
		Year:          t.Year(),
		HolidayName:   NoHoliday,
	}
	if s.Hour < 12 {
		s.TimeOfDay = "AM"
	}
	if weekday >= 5 {
		s.WeekendFlag = 1
	}
	if holidays != nil {
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		if name, ok := holidays.Holiday(day); ok {
			s.HolidayFlag = 1
			s.HolidayName = name
		}
	}
	return s
}

// DateHourKeys returns the keys of slots, sorted.
func DateHourKeys(slots []DateHourSlot) []int64 {
	keys := make([]int64, 0, len(slots))
	for _, s := range slots {
		keys = append(keys, s.DateHourKey)
	}
	slices.Sort(keys)
	return keys
}
