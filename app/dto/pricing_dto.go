// Package dto defines the wire-format request and response structures of the
// pricing API
package dto

import (
	"github.com/shopspring/decimal"
)

// CalculatePriceRequest represents the request to price a print job
type CalculatePriceRequest struct {
	GarmentID      string              `json:"garment_id" validate:"required,max=64"`
	Quantity       int                 `json:"quantity" validate:"required,gt=0"`
	ServiceType    string              `json:"service_type" validate:"required,oneof=screen_print embroidery dtg vinyl"`
	PrintLocations []string            `json:"print_locations" validate:"required,min=1,dive,oneof=front back left_sleeve right_sleeve neck"`
	ColorCount     int                 `json:"color_count" validate:"gte=0"`
	StitchCount    int                 `json:"stitch_count" validate:"gte=0"`
	CustomerType   string              `json:"customer_type" validate:"required,oneof=standard contract wholesale education"`
	IsRush         bool                `json:"is_rush"`
	IsNewDesign    bool                `json:"is_new_design"`
	AddOns         []AddOnSelectionDTO `json:"add_ons,omitempty" validate:"omitempty,dive"`
}

// AddOnSelectionDTO represents one requested add-on
type AddOnSelectionDTO struct {
	Type     string `json:"type" validate:"required,oneof=rush shipping tax folding poly_bag"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

// LineItemDTO represents one stage contribution in a price breakdown
type LineItemDTO struct {
	Stage       string          `json:"stage"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// CalculationResultDTO represents a fully itemized price
type CalculationResultDTO struct {
	LineItems          []LineItemDTO   `json:"line_items"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	MarginPct          decimal.Decimal `json:"margin_pct"`
	TotalPrice         decimal.Decimal `json:"total_price"`
	MatchedRuleID      string          `json:"matched_rule_id"`
	MatchedRuleVersion int             `json:"matched_rule_version"`
	RulesetGeneration  uint64          `json:"ruleset_generation"`
	Cached             bool            `json:"cached"`
	CalculationTimeMs  float64         `json:"calculation_time_ms"`
}

// CalculatePriceResponse represents the response to a calculate request
type CalculatePriceResponse struct {
	Message string               `json:"message"`
	Result  CalculationResultDTO `json:"result"`
}

// ListHistoryRequest represents a filtered history query. Filters come from
// query parameters; zero values mean no filter.
type ListHistoryRequest struct {
	GarmentID    *string `json:"-"`
	CustomerType *string `json:"-"`
	ServiceType  *string `json:"-"`
	From         *string `json:"-"`
	To           *string `json:"-"`
	Limit        int     `json:"-"`
	Offset       int     `json:"-"`
}

// HistoryEntryDTO represents one recorded calculation
type HistoryEntryDTO struct {
	UUID               string                `json:"uuid"`
	GarmentID          string                `json:"garment_id"`
	ServiceType        string                `json:"service_type"`
	CustomerType       string                `json:"customer_type"`
	Quantity           int                   `json:"quantity"`
	MatchedRuleID      string                `json:"matched_rule_id"`
	MatchedRuleVersion int                   `json:"matched_rule_version"`
	TotalPrice         decimal.Decimal       `json:"total_price"`
	CalculationTimeMs  float64               `json:"calculation_time_ms"`
	CreatedAt          string                `json:"created_at"`
	Request            CalculatePriceRequest `json:"request"`
	Result             CalculationResultDTO  `json:"result"`
}

// ListHistoryResponse represents a paginated, newest-first history page
type ListHistoryResponse struct {
	Message    string                `json:"message"`
	Items      []HistoryEntryDTO     `json:"items"`
	Pagination HistoryPaginationInfo `json:"pagination"`
}

// ExportHistoryRequest represents a history export with the same filters as
// the list endpoint but no pagination
type ExportHistoryRequest struct {
	GarmentID    *string `json:"-"`
	CustomerType *string `json:"-"`
	ServiceType  *string `json:"-"`
	From         *string `json:"-"`
	To           *string `json:"-"`
}

// EngineMetricsDTO represents the engine's operational counters. All counters
// are monotonic since process start.
type EngineMetricsDTO struct {
	TotalCalculations        uint64  `json:"total_calculations"`
	CacheHits                uint64  `json:"cache_hits"`
	CacheMisses              uint64  `json:"cache_misses"`
	CacheBypasses            uint64  `json:"cache_bypasses"`
	CalculationErrors        uint64  `json:"calculation_errors"`
	AverageCalculationTimeMs float64 `json:"average_calculation_time_ms"`
	P99CalculationTimeMs     float64 `json:"p99_calculation_time_ms"`
	RulesetGeneration        uint64  `json:"ruleset_generation"`
	StartedAt                string  `json:"started_at"`
}

// GetMetricsResponse represents the response of the metrics endpoint
type GetMetricsResponse struct {
	Message string           `json:"message"`
	Metrics EngineMetricsDTO `json:"metrics"`
}

// ClearCacheResponse represents the response to a manual cache invalidation
type ClearCacheResponse struct {
	Message           string `json:"message"`
	RulesetGeneration uint64 `json:"ruleset_generation"`
}
