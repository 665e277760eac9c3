// Package daytype decides which timetable day type (weekday or holiday) applies on a date
package daytype

import (
	"math"
	"time"

	"github.com/rickar/cal/v2"
)

// DayType identifies the timetable in effect on a service day
type DayType string

const (
	// Weekday timetable, Monday to Friday that are not holidays
	Weekday DayType = "weekday"
	// Holiday timetable, weekends, public holidays and the year end break
	Holiday DayType = "holiday"
)

// Valid returns true for the known day types
func (d DayType) Valid() bool {
	return d == Weekday || d == Holiday
}

// substitute holiday rule, a holiday falling on sunday is observed the following monday
var substituteMonday = []cal.AltDay{{Day: time.Sunday, Offset: 1}}

func fixedHoliday(name string, month time.Month, day int) *cal.Holiday {
	return &cal.Holiday{
		Name:     name,
		Type:     cal.ObservancePublic,
		Month:    month,
		Day:      day,
		Observed: substituteMonday,
		Func:     cal.CalcDayOfMonth,
	}
}

func happyMonday(name string, month time.Month, nth int) *cal.Holiday {
	return &cal.Holiday{
		Name:    name,
		Type:    cal.ObservancePublic,
		Month:   month,
		Weekday: time.Monday,
		Offset:  nth,
		Func:    cal.CalcWeekdayOffset,
	}
}

//equinoxHoliday calculates equinox days with the approximation published for 1980-2099
func equinoxHoliday(name string, month time.Month, base float64) *cal.Holiday {
	return &cal.Holiday{
		Name:     name,
		Type:     cal.ObservancePublic,
		Month:    month,
		Observed: substituteMonday,
		Func: func(h *cal.Holiday, year int) time.Time {
			y := float64(year - 1980)
			day := int(math.Floor(base + 0.242194*y - math.Floor(y/4)))
			return time.Date(year, h.Month, day, 0, 0, 0, 0, cal.DefaultLoc)
		},
	}
}

// railway timetables switch to the holiday pattern over the new year break
func yearEndBreak(month time.Month, day int) *cal.Holiday {
	return &cal.Holiday{
		Name:  "年末年始",
		Type:  cal.ObservanceOther,
		Month: month,
		Day:   day,
		Func:  cal.CalcDayOfMonth,
	}
}

// Calendar answers DayType questions for a service area
type Calendar struct {
	calendar *cal.BusinessCalendar
	location *time.Location
}

//MakeCalendar builds a Calendar with japanese public holidays evaluated in location
func MakeCalendar(location *time.Location) *Calendar {
	if location == nil {
		location = time.UTC
	}
	calendar := cal.NewBusinessCalendar()
	calendar.AddHoliday(
		fixedHoliday("元日", time.January, 1),
		happyMonday("成人の日", time.January, 2),
		fixedHoliday("建国記念の日", time.February, 11),
		fixedHoliday("天皇誕生日", time.February, 23),
		equinoxHoliday("春分の日", time.March, 20.8431),
		fixedHoliday("昭和の日", time.April, 29),
		fixedHoliday("憲法記念日", time.May, 3),
		fixedHoliday("みどりの日", time.May, 4),
		fixedHoliday("こどもの日", time.May, 5),
		happyMonday("海の日", time.July, 3),
		fixedHoliday("山の日", time.August, 11),
		happyMonday("敬老の日", time.September, 3),
		equinoxHoliday("秋分の日", time.September, 23.2488),
		happyMonday("スポーツの日", time.October, 2),
		fixedHoliday("文化の日", time.November, 3),
		fixedHoliday("勤労感謝の日", time.November, 23),
		yearEndBreak(time.December, 30),
		yearEndBreak(time.December, 31),
		yearEndBreak(time.January, 2),
		yearEndBreak(time.January, 3),
	)
	return &Calendar{calendar: calendar, location: location}
}

//IsHoliday returns true if at falls on a holiday or its observed substitute day
func (c *Calendar) IsHoliday(at time.Time) bool {
	local := at.In(c.location)
	date := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, cal.DefaultLoc)
	actual, observed, _ := c.calendar.IsHoliday(date)
	return actual || observed
}

//DayTypeAt returns the timetable day type in effect at a point in time
func (c *Calendar) DayTypeAt(at time.Time) DayType {
	local := at.In(c.location)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return Holiday
	}
	if c.IsHoliday(at) {
		return Holiday
	}
	return Weekday
}
