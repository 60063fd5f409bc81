package model

import "time"

// PenaltyTracker holds per-quest neglect-penalty state. One record per
// quest, created lazily the first time the engine sees the quest.
//
// LastCheckDate is day-normalized and monotonically non-decreasing across
// runs; the half-open day window (LastCheckDate, now] is evaluated exactly
// once. TotalDamage always equals the sum of the quest's DamageEvent
// amounts.
type PenaltyTracker struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	QuestID       int64     `gorm:"uniqueIndex;not null" json:"quest_id"`
	LastCheckDate time.Time `gorm:"not null" json:"last_check_date"`
	TotalDamage   int       `gorm:"default:0" json:"total_damage"`
	IsActive      bool      `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DamageEvent is one applied penalty. Append-only; CreatedAt is the run
// time, not the missed day.
type DamageEvent struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	QuestID   int64     `gorm:"index:idx_damage_quest;not null" json:"quest_id"`
	Amount    int       `gorm:"not null" json:"amount"`
	Reason    string    `gorm:"size:255;not null" json:"reason"`
	CreatedAt time.Time `gorm:"index:idx_damage_created;autoCreateTime" json:"created_at"`
}
