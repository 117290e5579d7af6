package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/clock"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
	"github.com/BrandonDHaskell/Portunus/unit/internal/schedule"
)

// officeRecord opens 08:00-12:00 and 13:00-17:00 on weekdays; weekend and
// holiday windows sit in the first minutes after midnight.
func officeRecord(id int, action types.Action) types.TimePlanRecord {
	rec := types.TimePlanRecord{ID: id, Name: "office", Action: action}
	for day := 0; day < types.TimePlanDays; day++ {
		w := []string{"08:00:00", "12:00:00", "13:00:00", "17:00:00"}
		if day >= 5 {
			w = []string{"00:00:01", "00:00:02", "00:00:03", "00:00:04"}
		}
		copy(rec.Times[day*4:], w)
	}
	return rec
}

func at(year int, month time.Month, day, h, m, s int) time.Time {
	return time.Date(year, month, day, h, m, s, 0, time.UTC)
}

// ── DayPlan ──────────────────────────────────────────────────────────────────

func TestNewDayPlan_Ordering(t *testing.T) {
	_, err := schedule.NewDayPlan("08:00:00", "12:00:00", "13:00:00", "17:00:00")
	require.NoError(t, err)

	cases := [][4]string{
		{"12:00:00", "08:00:00", "13:00:00", "17:00:00"},
		{"08:00:00", "13:00:00", "13:00:00", "17:00:00"},
		{"08:00:00", "12:00:00", "17:00:00", "13:00:00"},
		{"00:00:00", "00:00:00", "00:00:00", "00:00:00"},
	}
	for _, c := range cases {
		_, err := schedule.NewDayPlan(c[0], c[1], c[2], c[3])
		assert.ErrorIs(t, err, schedule.ErrWindowOrder, c)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	d, err := schedule.ParseTimeOfDay("23:59:59")
	require.NoError(t, err)
	assert.Equal(t, 23*time.Hour+59*time.Minute+59*time.Second, d)

	for _, bad := range []string{"24:00:00", "8:00:00", "08:60:00", "08:00", "aa:bb:cc"} {
		_, err := schedule.ParseTimeOfDay(bad)
		assert.ErrorIs(t, err, schedule.ErrInvalidTime, bad)
	}
}

func TestDayPlan_ContainsIsStrict(t *testing.T) {
	dp, err := schedule.NewDayPlan("08:00:00", "12:00:00", "13:00:00", "17:00:00")
	require.NoError(t, err)

	assert.False(t, dp.Contains(8*time.Hour))
	assert.True(t, dp.Contains(8*time.Hour+time.Second))
	assert.False(t, dp.Contains(12*time.Hour))
	assert.False(t, dp.Contains(12*time.Hour+30*time.Minute))
	assert.True(t, dp.Contains(16*time.Hour))
	assert.False(t, dp.Contains(17*time.Hour))
}

// ── Engine ───────────────────────────────────────────────────────────────────

func newEngine(t *testing.T) *schedule.Engine {
	t.Helper()
	e := schedule.NewEngine(zap.NewNop(), clock.NewFake(at(2025, 3, 3, 9, 0, 0)), nil)
	require.NoError(t, e.Parse(officeRecord(5, types.ActionSilentOpen)))
	return e
}

func TestEvaluate_PlanZeroAlwaysPulses(t *testing.T) {
	e := newEngine(t)
	for _, now := range []time.Time{at(2025, 3, 3, 3, 0, 0), at(2025, 12, 25, 10, 0, 0)} {
		assert.Equal(t, types.ActionPulse, e.Evaluate(0, now))
	}
}

func TestEvaluate_UnknownPlanPulses(t *testing.T) {
	e := newEngine(t)
	assert.Equal(t, types.ActionPulse, e.Evaluate(99, at(2025, 3, 3, 3, 0, 0)))
}

func TestEvaluate_Windows(t *testing.T) {
	e := newEngine(t)

	// Monday 3 March 2025.
	assert.Equal(t, types.ActionSilentOpen, e.Evaluate(5, at(2025, 3, 3, 9, 0, 0)))
	assert.Equal(t, types.ActionSilentOpen, e.Evaluate(5, at(2025, 3, 3, 14, 0, 0)))
	assert.Equal(t, types.ActionNone, e.Evaluate(5, at(2025, 3, 3, 12, 30, 0)))
	assert.Equal(t, types.ActionNone, e.Evaluate(5, at(2025, 3, 3, 18, 0, 0)))

	// Saturday 8 March 2025.
	assert.Equal(t, types.ActionNone, e.Evaluate(5, at(2025, 3, 8, 9, 0, 0)))
}

func TestEvaluate_HolidayTakesPrecedence(t *testing.T) {
	e := newEngine(t)

	// Good Friday 18 April 2025 and Christmas Day 2025 are weekdays.
	assert.Equal(t, types.ActionNone, e.Evaluate(5, at(2025, 4, 18, 9, 0, 0)))
	assert.Equal(t, types.ActionNone, e.Evaluate(5, at(2025, 12, 25, 9, 0, 0)))
	// The Thursday before Good Friday is a normal day.
	assert.Equal(t, types.ActionSilentOpen, e.Evaluate(5, at(2025, 4, 17, 9, 0, 0)))
}

func TestEngine_ActionUsesClock(t *testing.T) {
	fake := clock.NewFake(at(2025, 3, 3, 9, 0, 0))
	e := schedule.NewEngine(zap.NewNop(), fake, nil)
	require.NoError(t, e.Parse(officeRecord(5, types.ActionReverse)))

	assert.Equal(t, types.ActionReverse, e.Action(5))
	fake.Set(at(2025, 3, 3, 20, 0, 0))
	assert.Equal(t, types.ActionNone, e.Action(5))
}

func TestLoad_RejectsInvalidAndReplaces(t *testing.T) {
	e := newEngine(t)

	bad := officeRecord(6, types.ActionPulse)
	bad.Times[9] = "25:00:00"
	rejected := e.Load([]types.TimePlanRecord{officeRecord(7, types.ActionPulse), bad})

	assert.Equal(t, 1, rejected)
	assert.Equal(t, 1, e.Len())
	// Plan 5 was replaced wholesale and now degrades to pulse.
	assert.Equal(t, types.ActionPulse, e.Evaluate(5, at(2025, 3, 3, 20, 0, 0)))
	assert.Equal(t, types.ActionNone, e.Evaluate(7, at(2025, 3, 3, 20, 0, 0)))
}

func TestParse_UnknownAction(t *testing.T) {
	e := newEngine(t)
	assert.Error(t, e.Parse(officeRecord(8, types.Action(9))))
}

func TestEasterSunday(t *testing.T) {
	assert.Equal(t, at(2025, 4, 20, 0, 0, 0), schedule.EasterSunday(2025))
	assert.Equal(t, at(2024, 3, 31, 0, 0, 0), schedule.EasterSunday(2024))
	assert.Equal(t, at(2026, 4, 5, 0, 0, 0), schedule.EasterSunday(2026))
}

func TestCzechCalendar(t *testing.T) {
	cal := schedule.CzechCalendar{}
	assert.True(t, cal.IsHoliday(at(2025, 4, 21, 10, 0, 0)))
	assert.True(t, cal.IsHoliday(at(2026, 4, 3, 10, 0, 0)))
	assert.True(t, cal.IsHoliday(at(2030, 11, 17, 10, 0, 0)))
	assert.False(t, cal.IsHoliday(at(2025, 4, 20, 10, 0, 0)))
}
