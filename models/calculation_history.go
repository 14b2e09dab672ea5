package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/printshop-os/pricing-engine/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CalculationHistory is the append-only audit record of one freshly computed
// pricing result. Rows are never updated or deleted; cache hits write nothing.
type CalculationHistory struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	UUID               uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:uk_calculation_history_uuid" json:"uuid"`
	GarmentID          string             `gorm:"size:64;not null;index:idx_calculation_history_garment_id" json:"garment_id"`
	ServiceType        ServiceType        `gorm:"type:service_type;not null;index:idx_calculation_history_service_type" json:"service_type"`
	CustomerType       CustomerType       `gorm:"type:customer_type;not null;index:idx_calculation_history_customer_type" json:"customer_type"`
	Quantity           int                `gorm:"not null" json:"quantity"`
	PrintLocations     pq.StringArray     `gorm:"type:text[];not null;default:'{}'" json:"print_locations"`
	MatchedRuleID      uuid.UUID          `gorm:"type:uuid;not null;index:idx_calculation_history_matched_rule_id" json:"matched_rule_id"`
	MatchedRuleVersion int                `gorm:"not null" json:"matched_rule_version"`
	TotalPrice         decimal.Decimal    `gorm:"type:numeric(12,2);not null" json:"total_price"`
	CalculationTimeMs  float64            `gorm:"not null" json:"calculation_time_ms"`
	Request            CalculationRequest `gorm:"type:jsonb;not null" json:"request"`
	Result             CalculationResult  `gorm:"type:jsonb;not null" json:"result"`
	RequestID          *string            `gorm:"size:64" json:"request_id,omitempty"`
	CreatedAt          time.Time          `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_calculation_history_created_at" json:"created_at"`
}

// TableName keeps the singular table name from the first migration.
func (CalculationHistory) TableName() string {
	return "calculation_history"
}

// BeforeCreate fills the UUID and timestamp when the caller left them zero.
func (h *CalculationHistory) BeforeCreate(tx *gorm.DB) error {
	if h.UUID == uuid.Nil {
		h.UUID = uuid.New()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = utils.UTCNow()
	}
	return nil
}

// CalculationHistoryFilter represents filter criteria for history queries
type CalculationHistoryFilter struct {
	GarmentID     *string       `json:"garment_id,omitempty"`
	ServiceType   *ServiceType  `json:"service_type,omitempty"`
	CustomerType  *CustomerType `json:"customer_type,omitempty"`
	MatchedRuleID *uuid.UUID    `json:"matched_rule_id,omitempty"`
	CreatedAfter  *time.Time    `json:"created_after,omitempty"`
	CreatedBefore *time.Time    `json:"created_before,omitempty"`
}
