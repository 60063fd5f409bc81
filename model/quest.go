package model

import (
	"time"

	"gorm.io/datatypes"
)

// RepeatType determines how a quest's missed obligations are computed.
type RepeatType = string

const (
	RepeatDaily     RepeatType = "daily"
	RepeatWeekly    RepeatType = "weekly"
	RepeatOneTime   RepeatType = "one_time"
	RepeatScheduled RepeatType = "scheduled"
)

// Quest is a user-defined obligation with a due date and a repeat policy.
type Quest struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID  int64      `gorm:"index:idx_quest_account;not null" json:"account_id"`
	Title      string     `gorm:"size:128;not null" json:"title"`
	RepeatType RepeatType `gorm:"size:16;not null" json:"repeat_type"`
	DueDate    time.Time  `gorm:"not null" json:"due_date"`
	// ScheduledDays holds weekday numbers 1 (Sunday) through 7 (Saturday),
	// e.g. [2,4] for Monday and Wednesday. Only the scheduled repeat type
	// reads it.
	ScheduledDays datatypes.JSON `json:"scheduled_days"`
	IsCompleted   bool           `gorm:"default:false" json:"is_completed"`
	IsActive      bool           `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// QuestCompletion records one calendar day on which a quest was satisfied.
// Day uses the YYYY-MM-DD form so lookups are timezone-stable.
type QuestCompletion struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	QuestID   int64     `gorm:"uniqueIndex:idx_quest_day;not null" json:"quest_id"`
	Day       string    `gorm:"uniqueIndex:idx_quest_day;size:10;not null" json:"day"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
