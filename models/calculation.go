package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
)

// Pipeline stage identifiers. The order of stages is fixed and is part of the
// audit contract: breakdowns always list contributions in this order.
const (
	StageBaseCost          = "base_cost"
	StageLocationSurcharge = "location_surcharge"
	StageColorMultiplier   = "color_multiplier"
	StageStitchPricing     = "stitch_pricing"
	StageSetupFee          = "setup_fee"
	StageSubtotal          = "subtotal"
	StageVolumeDiscount    = "volume_discount"
	StageAddOnPrefix       = "addon:"
	StageMargin            = "margin"
	StageRounding          = "rounding"
)

// AddOnSelection is one requested add-on with its quantity
type AddOnSelection struct {
	Type     AddOnType `json:"type"`
	Quantity int       `json:"quantity"`
}

// CalculationRequest describes the print job submitted for pricing. It is
// ephemeral: only the history snapshot persists it.
type CalculationRequest struct {
	GarmentID      string           `json:"garment_id"`
	Quantity       int              `json:"quantity"`
	ServiceType    ServiceType      `json:"service_type"`
	PrintLocations []PrintLocation  `json:"print_locations"`
	ColorCount     int              `json:"color_count"`
	StitchCount    int              `json:"stitch_count"`
	CustomerType   CustomerType     `json:"customer_type"`
	IsRush         bool             `json:"is_rush"`
	IsNewDesign    bool             `json:"is_new_design"`
	AddOns         []AddOnSelection `json:"add_ons,omitempty"`
}

// Value implements the driver.Valuer interface for CalculationRequest
func (r CalculationRequest) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements the sql.Scanner interface for CalculationRequest
func (r *CalculationRequest) Scan(value any) error {
	if value == nil {
		*r = CalculationRequest{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CalculationRequest", value)
	}

	return json.Unmarshal(bytes, r)
}

// Canonicalize returns a normalized copy of the request: enums lower-cased,
// print locations sorted and de-duplicated, zero-quantity add-ons dropped
// (declared order of the remaining add-ons is preserved). Two requests that
// canonicalize identically price identically, so the canonical form feeds the
// cache key.
func (r CalculationRequest) Canonicalize() CalculationRequest {
	out := r
	out.GarmentID = strings.TrimSpace(r.GarmentID)
	out.ServiceType = ServiceType(strings.ToLower(strings.TrimSpace(string(r.ServiceType))))
	out.CustomerType = CustomerType(strings.ToLower(strings.TrimSpace(string(r.CustomerType))))

	seen := make(map[PrintLocation]bool, len(r.PrintLocations))
	locs := make([]PrintLocation, 0, len(r.PrintLocations))
	for _, loc := range r.PrintLocations {
		norm := PrintLocation(strings.ToLower(strings.TrimSpace(string(loc))))
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		locs = append(locs, norm)
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i] < locs[j] })
	out.PrintLocations = locs

	addOns := make([]AddOnSelection, 0, len(r.AddOns))
	for _, a := range r.AddOns {
		if a.Quantity <= 0 {
			continue
		}
		addOns = append(addOns, AddOnSelection{
			Type:     AddOnType(strings.ToLower(strings.TrimSpace(string(a.Type)))),
			Quantity: a.Quantity,
		})
	}
	if len(addOns) == 0 {
		addOns = nil
	}
	out.AddOns = addOns

	return out
}

// Fingerprint returns a stable hex digest of the canonicalized request.
// Field order in the canonical JSON is fixed by the struct definition, so
// equal canonical requests always hash equally.
func (r CalculationRequest) Fingerprint() (string, error) {
	canonical := r.Canonicalize()
	payload, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("failed to marshal canonical request: %w", err)
	}
	sum := blake2b.Sum256(payload)
	return fmt.Sprintf("%x", sum), nil
}

// LineItem is one stage's dollar contribution to the final price. Discount
// stages carry negative amounts.
type LineItem struct {
	Stage       string          `json:"stage"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// CalculationResult is the itemized outcome of one pricing calculation
type CalculationResult struct {
	LineItems          []LineItem      `json:"line_items"`
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

// Value implements the driver.Valuer interface for CalculationResult
func (r CalculationResult) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements the sql.Scanner interface for CalculationResult
func (r *CalculationResult) Scan(value any) error {
	if value == nil {
		*r = CalculationResult{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CalculationResult", value)
	}

	return json.Unmarshal(bytes, r)
}

// StageAmount returns the contribution recorded for a stage, if present
func (r *CalculationResult) StageAmount(stage string) (decimal.Decimal, bool) {
	for _, li := range r.LineItems {
		if li.Stage == stage {
			return li.Amount, true
		}
	}
	return decimal.Decimal{}, false
}
