package schedule

import "time"

// Calendar decides whether a date is a public holiday.
type Calendar interface {
	IsHoliday(t time.Time) bool
}

type monthDay struct {
	month time.Month
	day   int
}

var fixedHolidays = []monthDay{
	{time.January, 1},
	{time.May, 1},
	{time.May, 8},
	{time.July, 5},
	{time.July, 6},
	{time.September, 28},
	{time.October, 28},
	{time.November, 17},
	{time.December, 24},
	{time.December, 25},
	{time.December, 26},
}

// CzechCalendar is the Czech public holiday calendar: fixed dates plus
// Good Friday and Easter Monday.
type CzechCalendar struct{}

func (CzechCalendar) IsHoliday(t time.Time) bool {
	m, d := t.Month(), t.Day()
	for _, h := range fixedHolidays {
		if h.month == m && h.day == d {
			return true
		}
	}
	easter := EasterSunday(t.Year())
	for _, off := range []int{-2, 1} {
		e := easter.AddDate(0, 0, off)
		if e.Month() == m && e.Day() == d {
			return true
		}
	}
	return false
}

// EasterSunday returns Gregorian Easter Sunday of year (anonymous
// Gregorian algorithm).
func EasterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
