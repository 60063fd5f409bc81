package penalty

import (
	"context"
	"errors"
	"time"

	"github.com/nanakusa/questward/model"
	"gorm.io/gorm"
)

// Store persists per-quest penalty trackers and their damage history.
// Load returns (nil, nil) for a quest that has never been tracked.
type Store interface {
	Load(ctx context.Context, questID int64) (*model.PenaltyTracker, error)
	// Save writes the tracker and, when ev is non-nil, appends the damage
	// event in the same transaction. The pair is all-or-nothing.
	Save(ctx context.Context, t *model.PenaltyTracker, ev *model.DamageEvent) error
	List(ctx context.Context) ([]model.PenaltyTracker, error)
	History(ctx context.Context, questID int64) ([]model.DamageEvent, error)
	Deactivate(ctx context.Context, questID int64) error
	// Reactivate marks the tracker active again with its check window reset
	// to now, so the dormant period is never penalized retroactively.
	Reactivate(ctx context.Context, questID int64, now time.Time) error
	// Clear removes the tracker and its history for a fully-deleted quest.
	Clear(ctx context.Context, questID int64) error
}

// GormStore is the gorm-backed Store used in production and tests.
type GormStore struct {
	db *gorm.DB
}

// NewStore creates a GormStore.
func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Load(ctx context.Context, questID int64) (*model.PenaltyTracker, error) {
	var t model.PenaltyTracker
	err := s.db.WithContext(ctx).Where("quest_id = ?", questID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *GormStore) Save(ctx context.Context, t *model.PenaltyTracker, ev *model.DamageEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(t).Error; err != nil {
			return err
		}
		if ev != nil {
			if err := tx.Create(ev).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) List(ctx context.Context) ([]model.PenaltyTracker, error) {
	var out []model.PenaltyTracker
	err := s.db.WithContext(ctx).Order("quest_id").Find(&out).Error
	return out, err
}

func (s *GormStore) History(ctx context.Context, questID int64) ([]model.DamageEvent, error) {
	var out []model.DamageEvent
	err := s.db.WithContext(ctx).
		Where("quest_id = ?", questID).
		Order("created_at").
		Find(&out).Error
	return out, err
}

func (s *GormStore) Deactivate(ctx context.Context, questID int64) error {
	return s.db.WithContext(ctx).Model(&model.PenaltyTracker{}).
		Where("quest_id = ?", questID).
		Update("is_active", false).Error
}

func (s *GormStore) Reactivate(ctx context.Context, questID int64, now time.Time) error {
	return s.db.WithContext(ctx).Model(&model.PenaltyTracker{}).
		Where("quest_id = ?", questID).
		Updates(map[string]interface{}{
			"is_active":       true,
			"last_check_date": DayOf(now),
		}).Error
}

func (s *GormStore) Clear(ctx context.Context, questID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quest_id = ?", questID).Delete(&model.DamageEvent{}).Error; err != nil {
			return err
		}
		return tx.Where("quest_id = ?", questID).Delete(&model.PenaltyTracker{}).Error
	})
}
