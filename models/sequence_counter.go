package models

import "time"

// SequenceRulesetGeneration is the counter name for the global ruleset
// generation: every rule mutation bumps it, and the cache key embeds it.
const SequenceRulesetGeneration = "ruleset_generation"

// SequenceCounter is one row per named counter, holding its last issued
// value.
type SequenceCounter struct {
	Name      string    `gorm:"primaryKey;size:64" json:"name"`
	LastValue uint64    `gorm:"not null;default:0" json:"last_value"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (SequenceCounter) TableName() string { return "sequence_counters" }
