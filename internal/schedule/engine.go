package schedule

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/clock"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

// HolidayBucket is the index of the holiday day plan.
const HolidayBucket = 7

// TimePlan is a parsed, validated weekly plan.
type TimePlan struct {
	ID          int
	Name        string
	Description string
	Action      types.Action
	// Days is indexed monday=0 .. sunday=6, holiday=7.
	Days [types.TimePlanDays]DayPlan
}

// ParseTimePlan validates a persisted record.
func ParseTimePlan(rec types.TimePlanRecord) (TimePlan, error) {
	if !rec.Action.Valid() {
		return TimePlan{}, fmt.Errorf("time plan %d: unknown action %d", rec.ID, rec.Action)
	}
	tp := TimePlan{ID: rec.ID, Name: rec.Name, Description: rec.Description, Action: rec.Action}
	for day := range tp.Days {
		t := rec.Times[day*4 : day*4+4]
		dp, err := NewDayPlan(t[0], t[1], t[2], t[3])
		if err != nil {
			return TimePlan{}, fmt.Errorf("time plan %d day %d: %w", rec.ID, day, err)
		}
		tp.Days[day] = dp
	}
	return tp, nil
}

// dayBucket maps a weekday to the monday-first bucket index.
func dayBucket(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// Engine holds the loaded time plans.
type Engine struct {
	logger   *zap.Logger
	clock    clock.Clock
	calendar Calendar

	mu    sync.RWMutex
	plans map[int]TimePlan
}

func NewEngine(logger *zap.Logger, clk clock.Clock, cal Calendar) *Engine {
	if cal == nil {
		cal = CzechCalendar{}
	}
	return &Engine{
		logger:   logger.Named("schedule"),
		clock:    clk,
		calendar: cal,
		plans:    make(map[int]TimePlan),
	}
}

// Parse validates rec and adds it. An invalid record is logged and skipped.
func (e *Engine) Parse(rec types.TimePlanRecord) error {
	tp, err := ParseTimePlan(rec)
	if err != nil {
		e.logger.Error("time plan rejected", zap.Int("plan", rec.ID), zap.Error(err))
		return err
	}
	e.mu.Lock()
	e.plans[tp.ID] = tp
	e.mu.Unlock()
	return nil
}

// Load replaces every plan with the valid subset of recs and returns how
// many were rejected.
func (e *Engine) Load(recs []types.TimePlanRecord) int {
	plans := make(map[int]TimePlan, len(recs))
	rejected := 0
	for _, rec := range recs {
		tp, err := ParseTimePlan(rec)
		if err != nil {
			e.logger.Error("time plan rejected", zap.Int("plan", rec.ID), zap.Error(err))
			rejected++
			continue
		}
		plans[tp.ID] = tp
	}
	e.mu.Lock()
	e.plans = plans
	e.mu.Unlock()
	e.logger.Info("time plans loaded", zap.Int("plans", len(plans)), zap.Int("rejected", rejected))
	return rejected
}

// Len returns the number of loaded plans.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.plans)
}

// Action evaluates planID at the current time.
func (e *Engine) Action(planID int) types.Action {
	return e.Evaluate(planID, e.clock.Now())
}

// Evaluate returns the action of planID at now. Plan 0 always pulses and an
// unknown plan also pulses, so card-gated doors fail open.
func (e *Engine) Evaluate(planID int, now time.Time) types.Action {
	if planID == 0 {
		return types.ActionPulse
	}

	e.mu.RLock()
	tp, ok := e.plans[planID]
	e.mu.RUnlock()
	if !ok {
		e.logger.Warn("time plan does not exist, review card time plans", zap.Int("plan", planID))
		return types.ActionPulse
	}

	bucket := dayBucket(now)
	if e.calendar.IsHoliday(now) {
		bucket = HolidayBucket
	}
	if tp.Days[bucket].Contains(sinceMidnight(now)) {
		return tp.Action
	}
	return types.ActionNone
}
