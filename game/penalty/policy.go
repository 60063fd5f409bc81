package penalty

import (
	"fmt"
	"time"

	"github.com/nanakusa/questward/model"
)

// QuestSnapshot is the engine's read-only view of a quest. The quest
// service builds these; the engine never mutates them.
type QuestSnapshot struct {
	ID        int64
	AccountID int64
	Title     string
	Repeat    model.RepeatType
	DueDate   time.Time
	// Completions holds the DayKey of every day the quest was satisfied.
	Completions map[string]bool
	// ScheduledDays holds weekday numbers 1..7 (scheduled repeat only).
	ScheduledDays map[int]bool
	IsCompleted   bool
	IsActive      bool
}

// Costs holds the per-unit penalty amounts and the flat-penalty
// re-trigger switch.
type Costs struct {
	DailyUnit     int
	WeeklyCost    int
	OneTimeCost   int
	ScheduledUnit int
	// RetriggerFlat charges weekly/one-time quests on every run while they
	// remain overdue. When false the flat cost is charged once, in the run
	// whose window contains the due date.
	RetriggerFlat bool
}

// DefaultCosts returns the stock penalty amounts.
func DefaultCosts() Costs {
	return Costs{DailyUnit: 3, WeeklyCost: 8, OneTimeCost: 10, ScheduledUnit: 5, RetriggerFlat: true}
}

// Result describes the penalty owed by one quest over one check window.
type Result struct {
	Damage      int
	MissedUnits int
	Reason      string
	WindowStart time.Time
	WindowEnd   time.Time
}

// Evaluate applies the policy matching q.Repeat over the half-open day
// window (windowStart, now]. It is pure and total: a malformed snapshot or
// an empty/inverted window yields zero missed units, never an error.
func Evaluate(costs Costs, q QuestSnapshot, windowStart, now time.Time) Result {
	start, end := DayOf(windowStart), DayOf(now)
	res := Result{WindowStart: start, WindowEnd: end}
	if !start.Before(end) {
		return res
	}

	switch q.Repeat {
	case model.RepeatDaily:
		missed := missedDays(q, start, end, func(d time.Time) bool {
			return d.After(DayOf(q.DueDate))
		})
		if missed > 0 {
			res.MissedUnits = missed
			res.Damage = missed * costs.DailyUnit
			res.Reason = fmt.Sprintf("%s: missed %d daily check-in(s)", q.Title, missed)
		}

	case model.RepeatScheduled:
		missed := missedDays(q, start, end, func(d time.Time) bool {
			return q.ScheduledDays[weekdayNumber(d)]
		})
		if missed > 0 {
			res.MissedUnits = missed
			res.Damage = missed * costs.ScheduledUnit
			res.Reason = fmt.Sprintf("%s: missed %d scheduled day(s)", q.Title, missed)
		}

	case model.RepeatWeekly:
		flatOverdue(&res, q, costs.WeeklyCost, costs.RetriggerFlat, "weekly")

	case model.RepeatOneTime:
		flatOverdue(&res, q, costs.OneTimeCost, costs.RetriggerFlat, "one-time")

	default:
		// Unknown repeat type: nothing owed. The window is still consumed
		// by the caller advancing the tracker.
	}
	return res
}

// missedDays walks each day strictly after start up to and including end,
// counting days that are obligated (per the policy predicate) and not
// present in the completion set.
func missedDays(q QuestSnapshot, start, end time.Time, obligated func(time.Time) bool) int {
	missed := 0
	for d := start.AddDate(0, 0, 1); !d.After(end); d = d.AddDate(0, 0, 1) {
		if obligated(d) && !q.Completions[DayKey(d)] {
			missed++
		}
	}
	return missed
}

// flatOverdue fills res with the fixed cost when the quest's due day lies
// before the window end and the quest is incomplete.
func flatOverdue(res *Result, q QuestSnapshot, cost int, retrigger bool, kind string) {
	due := DayOf(q.DueDate)
	if q.IsCompleted || !due.Before(res.WindowEnd) {
		return
	}
	// Once-per-episode mode: only the run whose window first covers the due
	// date charges the cost; later windows start past it.
	if !retrigger && due.Before(res.WindowStart) {
		return
	}
	res.MissedUnits = 1
	res.Damage = cost
	res.Reason = fmt.Sprintf("%s: %s quest overdue, 1 missed deadline", q.Title, kind)
}
