package penalty

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nanakusa/questward/cache"
	"go.uber.org/zap"
)

// EventChannel is the pub/sub channel run summaries are published on.
const EventChannel = "penalty_applied"

// lastRunKey caches the most recent run summary for quick UI reads.
const lastRunKey = "penalty:last_run"

// SnapshotSource supplies the active, incomplete quests for a run.
type SnapshotSource interface {
	ActiveSnapshots(ctx context.Context) ([]QuestSnapshot, error)
}

// DamageSink consumes one account's aggregated damage after a run.
type DamageSink interface {
	ApplyDamage(ctx context.Context, accountID int64, amount int) error
}

// Auditor records a run for the audit trail.
type Auditor interface {
	LogRun(res *RunResult, errMsg string, duration time.Duration)
}

// Runner wires the engine to its collaborators: the quest source, the
// health sink, the audit trail, and the pub/sub fan-out. The scheduler
// tick and the user-initiated recalculate endpoint both go through here.
type Runner struct {
	engine  *Engine
	source  SnapshotSource
	sink    DamageSink
	auditor Auditor
	cache   cache.Cache
	pubsub  cache.PubSub
	logger  *zap.Logger
}

// NewRunner creates a Runner. auditor, c and pubsub may be nil.
func NewRunner(engine *Engine, source SnapshotSource, sink DamageSink, auditor Auditor, c cache.Cache, pubsub cache.PubSub, logger *zap.Logger) *Runner {
	return &Runner{engine: engine, source: source, sink: sink, auditor: auditor, cache: c, pubsub: pubsub, logger: logger}
}

// RunNow executes a full penalty pass at the given instant: fetch quests,
// run the engine, charge each account's HP, audit, and publish the summary.
func (r *Runner) RunNow(ctx context.Context, now time.Time) (*RunResult, error) {
	started := time.Now()
	quests, err := r.source.ActiveSnapshots(ctx)
	if err != nil {
		r.audit(nil, err, started)
		return nil, err
	}

	res, err := r.engine.Run(ctx, quests, now)
	if err != nil {
		if !errors.Is(err, ErrRunInFlight) {
			r.audit(res, err, started)
		}
		return res, err
	}

	// Charge each account once with its aggregated damage.
	perAccount := make(map[int64]int)
	for _, qd := range res.PerQuest {
		perAccount[qd.AccountID] += qd.Amount
	}
	for accountID, amount := range perAccount {
		if sinkErr := r.sink.ApplyDamage(ctx, accountID, amount); sinkErr != nil {
			r.logger.Error("damage sink failed",
				zap.Int64("account_id", accountID),
				zap.Int("amount", amount),
				zap.Error(sinkErr))
		}
	}

	r.publish(ctx, res)
	r.audit(res, nil, started)
	return res, nil
}

// Tick is the scheduler entry point. Overlapping triggers are safe: the
// engine's run lock turns the extra tick into a no-op.
func (r *Runner) Tick(ctx context.Context) {
	if _, err := r.RunNow(ctx, time.Now()); err != nil && !errors.Is(err, ErrRunInFlight) {
		r.logger.Error("scheduled penalty run failed", zap.Error(err))
	}
}

func (r *Runner) publish(ctx context.Context, res *RunResult) {
	payload, err := json.Marshal(res)
	if err != nil {
		return
	}
	if r.pubsub != nil {
		if err := r.pubsub.Publish(ctx, EventChannel, string(payload)); err != nil {
			r.logger.Warn("penalty event publish failed", zap.Error(err))
		}
	}
	if r.cache != nil {
		_ = r.cache.Set(ctx, lastRunKey, string(payload), 0)
	}
}

// LastRun returns the cached summary of the most recent run as JSON, or
// "" when no run has been recorded.
func (r *Runner) LastRun(ctx context.Context) string {
	if r.cache == nil {
		return ""
	}
	v, err := r.cache.Get(ctx, lastRunKey)
	if err != nil {
		return ""
	}
	return v
}

func (r *Runner) audit(res *RunResult, err error, started time.Time) {
	if r.auditor == nil {
		return
	}
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	r.auditor.LogRun(res, errMsg, time.Since(started))
}
