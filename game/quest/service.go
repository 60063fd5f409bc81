package quest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nanakusa/questward/game/penalty"
	"github.com/nanakusa/questward/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a quest id does not exist.
var ErrNotFound = errors.New("quest: not found")

// CreateInput holds the caller-supplied fields for a new quest.
type CreateInput struct {
	Title         string
	RepeatType    model.RepeatType
	DueDate       time.Time
	ScheduledDays []int // weekday numbers 1..7, scheduled repeat only
}

// Service owns quest records and their completion days, and keeps the
// penalty trackers in step with quest lifecycle changes.
type Service struct {
	db       *gorm.DB
	trackers penalty.Store
	logger   *zap.Logger
}

// NewService creates a quest Service.
func NewService(db *gorm.DB, trackers penalty.Store, logger *zap.Logger) *Service {
	return &Service{db: db, trackers: trackers, logger: logger}
}

// Create stores a new quest for the account.
func (svc *Service) Create(ctx context.Context, accountID int64, in CreateInput) (*model.Quest, error) {
	switch in.RepeatType {
	case model.RepeatDaily, model.RepeatWeekly, model.RepeatOneTime, model.RepeatScheduled:
	default:
		return nil, fmt.Errorf("quest: unknown repeat type %q", in.RepeatType)
	}
	for _, d := range in.ScheduledDays {
		if d < 1 || d > 7 {
			return nil, fmt.Errorf("quest: weekday %d out of range 1..7", d)
		}
	}

	days, _ := json.Marshal(in.ScheduledDays)
	q := &model.Quest{
		AccountID:     accountID,
		Title:         in.Title,
		RepeatType:    in.RepeatType,
		DueDate:       in.DueDate,
		ScheduledDays: datatypes.JSON(days),
		IsActive:      true,
	}
	if err := svc.db.WithContext(ctx).Create(q).Error; err != nil {
		return nil, err
	}
	svc.logger.Info("quest created",
		zap.Int64("quest_id", q.ID),
		zap.Int64("account_id", accountID),
		zap.String("repeat", q.RepeatType))
	return q, nil
}

// Get returns one quest by id.
func (svc *Service) Get(ctx context.Context, questID int64) (*model.Quest, error) {
	var q model.Quest
	err := svc.db.WithContext(ctx).First(&q, questID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ListByAccount returns all of an account's quests, newest first.
func (svc *Service) ListByAccount(ctx context.Context, accountID int64) ([]model.Quest, error) {
	var out []model.Quest
	err := svc.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// CompleteDay records that the quest was satisfied on the given day.
// Recording the same day twice is a no-op. A one-time quest is marked
// completed outright.
func (svc *Service) CompleteDay(ctx context.Context, questID int64, day time.Time) error {
	q, err := svc.Get(ctx, questID)
	if err != nil {
		return err
	}

	rec := &model.QuestCompletion{QuestID: questID, Day: penalty.DayKey(day)}
	if err := svc.db.WithContext(ctx).Create(rec).Error; err != nil {
		if !isUniqueViolation(err) {
			return err
		}
	}
	if q.RepeatType == model.RepeatOneTime {
		return svc.Complete(ctx, questID)
	}
	return nil
}

// Complete marks the quest done and deactivates its tracker. The tracker
// record survives for the damage-history view.
func (svc *Service) Complete(ctx context.Context, questID int64) error {
	return svc.setState(ctx, questID, map[string]interface{}{"is_completed": true}, true)
}

// Abandon deactivates the quest without completing it.
func (svc *Service) Abandon(ctx context.Context, questID int64) error {
	return svc.setState(ctx, questID, map[string]interface{}{"is_active": false}, true)
}

// Reactivate puts an abandoned quest back in play. The tracker's check
// window restarts at now so the dormant period is not penalized.
func (svc *Service) Reactivate(ctx context.Context, questID int64, now time.Time) error {
	res := svc.db.WithContext(ctx).Model(&model.Quest{}).
		Where("id = ?", questID).
		Updates(map[string]interface{}{"is_active": true, "is_completed": false})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return svc.trackers.Reactivate(ctx, questID, now)
}

// Delete removes the quest, its completion days, and its tracker history.
func (svc *Service) Delete(ctx context.Context, questID int64) error {
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quest_id = ?", questID).Delete(&model.QuestCompletion{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Quest{}, questID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	return svc.trackers.Clear(ctx, questID)
}

// ActiveSnapshots builds the penalty engine's input: one snapshot per
// active, incomplete quest, with its completion-day set attached.
func (svc *Service) ActiveSnapshots(ctx context.Context) ([]penalty.QuestSnapshot, error) {
	var quests []model.Quest
	if err := svc.db.WithContext(ctx).
		Where("is_active = ? AND is_completed = ?", true, false).
		Find(&quests).Error; err != nil {
		return nil, err
	}
	if len(quests) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(quests))
	for i, q := range quests {
		ids[i] = q.ID
	}
	var completions []model.QuestCompletion
	if err := svc.db.WithContext(ctx).
		Where("quest_id IN ?", ids).
		Find(&completions).Error; err != nil {
		return nil, err
	}
	byQuest := make(map[int64]map[string]bool, len(quests))
	for _, c := range completions {
		if byQuest[c.QuestID] == nil {
			byQuest[c.QuestID] = make(map[string]bool)
		}
		byQuest[c.QuestID][c.Day] = true
	}

	out := make([]penalty.QuestSnapshot, 0, len(quests))
	for _, q := range quests {
		out = append(out, snapshotOf(&q, byQuest[q.ID]))
	}
	return out, nil
}

func snapshotOf(q *model.Quest, completions map[string]bool) penalty.QuestSnapshot {
	if completions == nil {
		completions = map[string]bool{}
	}
	scheduled := make(map[int]bool)
	var days []int
	if len(q.ScheduledDays) > 0 {
		// A malformed stored value degrades to an empty set; the policy
		// then owes nothing for it.
		_ = json.Unmarshal(q.ScheduledDays, &days)
	}
	for _, d := range days {
		scheduled[d] = true
	}
	return penalty.QuestSnapshot{
		ID:            q.ID,
		AccountID:     q.AccountID,
		Title:         q.Title,
		Repeat:        q.RepeatType,
		DueDate:       q.DueDate,
		Completions:   completions,
		ScheduledDays: scheduled,
		IsCompleted:   q.IsCompleted,
		IsActive:      q.IsActive,
	}
}

func (svc *Service) setState(ctx context.Context, questID int64, fields map[string]interface{}, deactivateTracker bool) error {
	res := svc.db.WithContext(ctx).Model(&model.Quest{}).
		Where("id = ?", questID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	if deactivateTracker {
		if err := svc.trackers.Deactivate(ctx, questID); err != nil {
			svc.logger.Warn("tracker deactivation failed",
				zap.Int64("quest_id", questID), zap.Error(err))
		}
	}
	return nil
}

// isUniqueViolation detects duplicate-key errors from common database drivers.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
