// Package schedule evaluates weekly time plans.
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	ErrInvalidTime = errors.New("invalid time of day")
	ErrWindowOrder = errors.New("day plan windows out of order")
)

var timeOfDay = regexp.MustCompile(`^(?:[01]\d|2[0-3]):[0-5]\d:[0-5]\d$`)

// ParseTimeOfDay parses HH:MM:SS into an offset from midnight.
func ParseTimeOfDay(s string) (time.Duration, error) {
	if !timeOfDay.MatchString(s) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	h, _ := strconv.Atoi(s[0:2])
	m, _ := strconv.Atoi(s[3:5])
	sec, _ := strconv.Atoi(s[6:8])
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

// DayPlan is one day's two open windows, as offsets from midnight.
type DayPlan struct {
	FirstStart, FirstEnd   time.Duration
	SecondStart, SecondEnd time.Duration
}

// NewDayPlan parses four HH:MM:SS strings and enforces
// first start < first end < second start < second end.
func NewDayPlan(firstStart, firstEnd, secondStart, secondEnd string) (DayPlan, error) {
	var ts [4]time.Duration
	for i, s := range [4]string{firstStart, firstEnd, secondStart, secondEnd} {
		d, err := ParseTimeOfDay(s)
		if err != nil {
			return DayPlan{}, err
		}
		ts[i] = d
	}
	for i := 1; i < len(ts); i++ {
		if ts[i-1] >= ts[i] {
			return DayPlan{}, fmt.Errorf("%w: %s %s %s %s", ErrWindowOrder, firstStart, firstEnd, secondStart, secondEnd)
		}
	}
	return DayPlan{FirstStart: ts[0], FirstEnd: ts[1], SecondStart: ts[2], SecondEnd: ts[3]}, nil
}

// Contains reports whether t falls strictly inside either window.
func (d DayPlan) Contains(t time.Duration) bool {
	return (t > d.FirstStart && t < d.FirstEnd) || (t > d.SecondStart && t < d.SecondEnd)
}

// sinceMidnight truncates t to whole seconds and returns its offset from midnight.
func sinceMidnight(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}
