package penalty

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nanakusa/questward/cache"
	"github.com/nanakusa/questward/model"
	"go.uber.org/zap"
)

// ErrRunInFlight is returned when Run is called while another run is in
// progress. Callers may retry after the current run finishes.
var ErrRunInFlight = errors.New("penalty: run already in flight")

const runLockKey = "penalty:run_lock"

// QuestDamage is one quest's share of a run's damage.
type QuestDamage struct {
	QuestID   int64  `json:"quest_id"`
	AccountID int64  `json:"account_id"`
	Amount    int    `json:"amount"`
	Reason    string `json:"reason"`
}

// QuestFailure records a quest whose tracker could not be persisted.
// Its check window did not advance, so the next run re-evaluates it
// without double counting.
type QuestFailure struct {
	QuestID int64  `json:"quest_id"`
	Err     string `json:"error"`
}

// RunResult is the outcome of one engine run.
type RunResult struct {
	TotalDamage int            `json:"total_damage"`
	PerQuest    []QuestDamage  `json:"per_quest"`
	Failures    []QuestFailure `json:"failures"`
	RanAt       time.Time      `json:"ran_at"`
}

// Engine walks the caller-supplied quests, charges each one's neglect
// penalty exactly once per day window, and persists the trackers. It is
// the only component here with side effects; the policies are pure.
type Engine struct {
	store   Store
	costs   Costs
	locker  cache.Cache // optional cross-process run lock, may be nil
	lockTTL time.Duration
	logger  *zap.Logger

	mu sync.Mutex // one run at a time
}

// NewEngine creates an Engine. locker may be nil when the process is the
// only writer to the tracker store.
func NewEngine(store Store, costs Costs, locker cache.Cache, lockTTL time.Duration, logger *zap.Logger) *Engine {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Engine{store: store, costs: costs, locker: locker, lockTTL: lockTTL, logger: logger}
}

// Run evaluates every quest in the slice at the given instant and returns
// the aggregated result. Quests must be pre-filtered to active, incomplete
// ones; the engine trusts that filter.
//
// Per-quest persistence failures are collected into the result rather than
// aborting the run. Cancellation is honored between quests, never mid-quest.
func (e *Engine) Run(ctx context.Context, quests []QuestSnapshot, now time.Time) (*RunResult, error) {
	if !e.mu.TryLock() {
		return nil, ErrRunInFlight
	}
	defer e.mu.Unlock()

	if e.locker != nil {
		ok, err := e.locker.SetNX(ctx, runLockKey, now.Format(time.RFC3339), e.lockTTL)
		if err != nil {
			e.logger.Warn("penalty run lock unavailable, relying on local lock", zap.Error(err))
		} else if !ok {
			return nil, ErrRunInFlight
		} else {
			defer func() {
				if delErr := e.locker.Del(context.WithoutCancel(ctx), runLockKey); delErr != nil {
					e.logger.Warn("penalty run lock release failed", zap.Error(delErr))
				}
			}()
		}
	}

	day := DayOf(now)
	res := &RunResult{RanAt: now}
	for i := range quests {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		q := quests[i]
		amount, reason, err := e.checkQuest(ctx, q, day)
		if err != nil {
			e.logger.Warn("penalty tracker persistence failed",
				zap.Int64("quest_id", q.ID), zap.Error(err))
			res.Failures = append(res.Failures, QuestFailure{QuestID: q.ID, Err: err.Error()})
			continue
		}
		if amount > 0 {
			res.PerQuest = append(res.PerQuest, QuestDamage{
				QuestID:   q.ID,
				AccountID: q.AccountID,
				Amount:    amount,
				Reason:    reason,
			})
			res.TotalDamage += amount
		}
	}

	e.logger.Info("penalty run finished",
		zap.Int("quests", len(quests)),
		zap.Int("total_damage", res.TotalDamage),
		zap.Int("failures", len(res.Failures)))
	return res, nil
}

// checkQuest loads or creates the quest's tracker, runs its policy, and
// commits the tracker update (with its damage event, if any) atomically.
func (e *Engine) checkQuest(ctx context.Context, q QuestSnapshot, day time.Time) (int, string, error) {
	t, err := e.store.Load(ctx, q.ID)
	if err != nil {
		return 0, "", err
	}
	if t == nil {
		// First sighting: start the window at now so the quest is never
		// penalized for days before it was tracked.
		t = &model.PenaltyTracker{QuestID: q.ID, LastCheckDate: day, IsActive: true}
		if err := e.store.Save(ctx, t, nil); err != nil {
			return 0, "", err
		}
		return 0, "", nil
	}
	if !t.IsActive {
		// Deactivated tracker (quest completed or abandoned elsewhere);
		// kept for audit, skipped here until explicitly reactivated.
		return 0, "", nil
	}

	r := Evaluate(e.costs, q, t.LastCheckDate, day)

	var ev *model.DamageEvent
	if r.Damage > 0 {
		ev = &model.DamageEvent{
			ID:      uuid.New().String(),
			QuestID: q.ID,
			Amount:  r.Damage,
			Reason:  r.Reason,
		}
		t.TotalDamage += r.Damage
	}
	// Consume the window even when nothing is owed, but never move the
	// check date backwards.
	if day.After(t.LastCheckDate) {
		t.LastCheckDate = day
	}
	if err := e.store.Save(ctx, t, ev); err != nil {
		return 0, "", err
	}
	return r.Damage, r.Reason, nil
}
