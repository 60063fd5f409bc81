package model

import "time"

// Player is the game-side avatar of an account. Its HP pool is the
// resource the penalty engine's damage is ultimately charged against.
type Player struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID int64     `gorm:"uniqueIndex;not null" json:"account_id"`
	Name      string    `gorm:"size:32;not null" json:"name"`
	Level     int       `gorm:"default:1" json:"level"`
	HP        int       `gorm:"not null" json:"hp"`
	MaxHP     int       `gorm:"not null" json:"max_hp"`
	Coins     int64     `gorm:"default:0" json:"coins"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
