package health

import (
	"context"
	"errors"

	"github.com/nanakusa/questward/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNoPlayer is returned when an account has no player record.
var ErrNoPlayer = errors.New("health: player not found")

const (
	defaultMaxHP = 50
)

// Service manages player HP. It is the sink the penalty runner charges
// run damage against; clamping to the zero floor happens here, not in
// the engine.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates a health Service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// EnsurePlayer returns the account's player, creating one at full HP on
// first use.
func (svc *Service) EnsurePlayer(ctx context.Context, accountID int64, name string) (*model.Player, error) {
	var p model.Player
	err := svc.db.WithContext(ctx).Where("account_id = ?", accountID).First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	p = model.Player{
		AccountID: accountID,
		Name:      name,
		Level:     1,
		HP:        defaultMaxHP,
		MaxHP:     defaultMaxHP,
	}
	if createErr := svc.db.WithContext(ctx).Create(&p).Error; createErr != nil {
		return nil, createErr
	}
	return &p, nil
}

// Get returns the account's player.
func (svc *Service) Get(ctx context.Context, accountID int64) (*model.Player, error) {
	var p model.Player
	err := svc.db.WithContext(ctx).Where("account_id = ?", accountID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoPlayer
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ApplyDamage subtracts amount from the player's HP, flooring at zero.
// A missing player record is logged and skipped rather than failing the
// penalty run.
func (svc *Service) ApplyDamage(ctx context.Context, accountID int64, amount int) error {
	if amount <= 0 {
		return nil
	}
	return svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Player
		err := tx.Where("account_id = ?", accountID).First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			svc.logger.Warn("damage for account without player",
				zap.Int64("account_id", accountID), zap.Int("amount", amount))
			return nil
		}
		if err != nil {
			return err
		}
		hp := p.HP - amount
		if hp < 0 {
			hp = 0
		}
		if err := tx.Model(&p).Update("hp", hp).Error; err != nil {
			return err
		}
		svc.logger.Info("damage applied",
			zap.Int64("account_id", accountID),
			zap.Int("amount", amount),
			zap.Int("hp", hp))
		return nil
	})
}

// Heal restores HP up to the player's maximum.
func (svc *Service) Heal(ctx context.Context, accountID int64, amount int) error {
	if amount <= 0 {
		return nil
	}
	return svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Player
		err := tx.Where("account_id = ?", accountID).First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoPlayer
		}
		if err != nil {
			return err
		}
		hp := p.HP + amount
		if hp > p.MaxHP {
			hp = p.MaxHP
		}
		return tx.Model(&p).Update("hp", hp).Error
	})
}
