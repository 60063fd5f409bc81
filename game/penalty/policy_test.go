package penalty

import (
	"testing"
	"time"

	"github.com/nanakusa/questward/model"
	"github.com/stretchr/testify/assert"
)

// day returns midnight local time n days after an arbitrary fixed Monday.
func day(n int) time.Time {
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local) // a Monday
	return base.AddDate(0, 0, n)
}

func dailyQuest(due time.Time, completions ...time.Time) QuestSnapshot {
	set := make(map[string]bool)
	for _, c := range completions {
		set[DayKey(c)] = true
	}
	return QuestSnapshot{
		ID:          1,
		Title:       "Morning run",
		Repeat:      model.RepeatDaily,
		DueDate:     due,
		Completions: set,
		IsActive:    true,
	}
}

func TestEvaluate_Daily_ThreeMissedDays(t *testing.T) {
	q := dailyQuest(day(0))
	res := Evaluate(DefaultCosts(), q, day(0), day(3))

	assert.Equal(t, 3, res.MissedUnits)
	assert.Equal(t, 9, res.Damage)
	assert.Contains(t, res.Reason, "Morning run")
	assert.Contains(t, res.Reason, "3")
	assert.Equal(t, day(0), res.WindowStart)
	assert.Equal(t, day(3), res.WindowEnd)
}

func TestEvaluate_Daily_ZeroWidthWindow(t *testing.T) {
	q := dailyQuest(day(0))
	res := Evaluate(DefaultCosts(), q, day(3), day(3))
	assert.Zero(t, res.Damage)
	assert.Zero(t, res.MissedUnits)
}

func TestEvaluate_Daily_InvertedWindow(t *testing.T) {
	// Clock moved backwards: degrade to zero, never negative or panicking.
	q := dailyQuest(day(0))
	res := Evaluate(DefaultCosts(), q, day(5), day(3))
	assert.Zero(t, res.Damage)
}

func TestEvaluate_Daily_CompletionsSuppressDamage(t *testing.T) {
	q := dailyQuest(day(0), day(1), day(2), day(3))
	res := Evaluate(DefaultCosts(), q, day(0), day(3))
	assert.Zero(t, res.Damage)
	assert.Zero(t, res.MissedUnits)
}

func TestEvaluate_Daily_PartialCompletions(t *testing.T) {
	q := dailyQuest(day(0), day(2))
	res := Evaluate(DefaultCosts(), q, day(0), day(3))
	assert.Equal(t, 2, res.MissedUnits) // days 1 and 3
	assert.Equal(t, 6, res.Damage)
}

func TestEvaluate_Daily_DaysBeforeDueAreFree(t *testing.T) {
	// Due at day 2: days 1 and 2 carry no obligation yet.
	q := dailyQuest(day(2))
	res := Evaluate(DefaultCosts(), q, day(0), day(4))
	assert.Equal(t, 2, res.MissedUnits) // days 3 and 4
	assert.Equal(t, 6, res.Damage)
}

func TestEvaluate_Daily_TimeOfDayIsIgnored(t *testing.T) {
	// Same calendar day at different clock times is a zero-width window.
	q := dailyQuest(day(0))
	morning := day(3).Add(8 * time.Hour)
	evening := day(3).Add(22 * time.Hour)
	res := Evaluate(DefaultCosts(), q, morning, evening)
	assert.Zero(t, res.Damage)
}

func scheduledQuest(days []int, completions ...time.Time) QuestSnapshot {
	set := make(map[string]bool)
	for _, c := range completions {
		set[DayKey(c)] = true
	}
	sched := make(map[int]bool)
	for _, d := range days {
		sched[d] = true
	}
	return QuestSnapshot{
		ID:            2,
		Title:         "Gym session",
		Repeat:        model.RepeatScheduled,
		DueDate:       day(0),
		Completions:   set,
		ScheduledDays: sched,
		IsActive:      true,
	}
}

func TestEvaluate_Scheduled_FiltersToScheduledDays(t *testing.T) {
	// Monday(2) and Wednesday(4) over a full week: exactly 2 missed units.
	q := scheduledQuest([]int{2, 4})
	res := Evaluate(DefaultCosts(), q, day(5), day(12)) // Sat → next Sat
	assert.Equal(t, 2, res.MissedUnits)
	assert.Equal(t, 10, res.Damage)
	assert.Contains(t, res.Reason, "Gym session")
}

func TestEvaluate_Scheduled_CompletedDayNotCounted(t *testing.T) {
	// day(0) is Monday, day(2) is Wednesday.
	q := scheduledQuest([]int{2, 4}, day(7))
	res := Evaluate(DefaultCosts(), q, day(5), day(12))
	assert.Equal(t, 1, res.MissedUnits) // only Wednesday day(9) missed
	assert.Equal(t, 5, res.Damage)
}

func TestEvaluate_Scheduled_NoScheduledDays(t *testing.T) {
	q := scheduledQuest(nil)
	res := Evaluate(DefaultCosts(), q, day(0), day(30))
	assert.Zero(t, res.Damage)
}

func weeklyQuest(due time.Time, completed bool) QuestSnapshot {
	return QuestSnapshot{
		ID:          3,
		Title:       "Weekly review",
		Repeat:      model.RepeatWeekly,
		DueDate:     due,
		Completions: map[string]bool{},
		IsCompleted: completed,
		IsActive:    true,
	}
}

func TestEvaluate_Weekly_OverdueChargesFlatCost(t *testing.T) {
	// Due yesterday, checked yesterday, evaluated today.
	q := weeklyQuest(day(0), false)
	res := Evaluate(DefaultCosts(), q, day(0), day(1))
	assert.Equal(t, 8, res.Damage)
	assert.Equal(t, 1, res.MissedUnits)
	assert.Contains(t, res.Reason, "Weekly review")
}

func TestEvaluate_Weekly_SameDayRunIsIdempotent(t *testing.T) {
	q := weeklyQuest(day(0), false)
	res := Evaluate(DefaultCosts(), q, day(1), day(1))
	assert.Zero(t, res.Damage)
}

func TestEvaluate_Weekly_RetriggersWhileOverdue(t *testing.T) {
	q := weeklyQuest(day(0), false)
	res := Evaluate(DefaultCosts(), q, day(1), day(2))
	assert.Equal(t, 8, res.Damage)
}

func TestEvaluate_Weekly_OncePerEpisodeMode(t *testing.T) {
	costs := DefaultCosts()
	costs.RetriggerFlat = false
	q := weeklyQuest(day(1), false)

	// Window covering the due day charges.
	res := Evaluate(costs, q, day(1), day(2))
	assert.Equal(t, 8, res.Damage)

	// Later windows start past the due day and do not.
	res = Evaluate(costs, q, day(2), day(3))
	assert.Zero(t, res.Damage)
}

func TestEvaluate_Weekly_CompletedQuestOwesNothing(t *testing.T) {
	q := weeklyQuest(day(0), true)
	res := Evaluate(DefaultCosts(), q, day(0), day(5))
	assert.Zero(t, res.Damage)
}

func TestEvaluate_Weekly_NotYetDue(t *testing.T) {
	q := weeklyQuest(day(9), false)
	res := Evaluate(DefaultCosts(), q, day(0), day(5))
	assert.Zero(t, res.Damage)
}

func TestEvaluate_OneTime_UsesOwnCost(t *testing.T) {
	q := QuestSnapshot{
		ID:          4,
		Title:       "File taxes",
		Repeat:      model.RepeatOneTime,
		DueDate:     day(0),
		Completions: map[string]bool{},
		IsActive:    true,
	}
	res := Evaluate(DefaultCosts(), q, day(0), day(1))
	assert.Equal(t, 10, res.Damage)
	assert.Equal(t, 1, res.MissedUnits)
	assert.Contains(t, res.Reason, "File taxes")
}

func TestEvaluate_UnknownRepeatType(t *testing.T) {
	q := dailyQuest(day(0))
	q.Repeat = "fortnightly"
	res := Evaluate(DefaultCosts(), q, day(0), day(10))
	assert.Zero(t, res.Damage)
	assert.Zero(t, res.MissedUnits)
}

func TestWeekdayNumber(t *testing.T) {
	assert.Equal(t, 2, weekdayNumber(day(0))) // Monday
	assert.Equal(t, 1, weekdayNumber(day(6))) // Sunday
	assert.Equal(t, 7, weekdayNumber(day(5))) // Saturday
}

func TestDayOf_Truncates(t *testing.T) {
	at := time.Date(2026, 3, 2, 17, 45, 12, 999, time.Local)
	assert.Equal(t, day(0), DayOf(at))
}
