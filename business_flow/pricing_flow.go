package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/printshop-os/pricing-engine/app/dto"
	"github.com/printshop-os/pricing-engine/app/services"
	"github.com/printshop-os/pricing-engine/config"
	"github.com/printshop-os/pricing-engine/models"
	"github.com/printshop-os/pricing-engine/repository"
	"github.com/printshop-os/pricing-engine/utils"
	"github.com/xuri/excelize/v2"
)

const exportHistoryMaxRows = 10000

// PricingFlow defines the calculation-side operations of the engine
type PricingFlow interface {
	Calculate(ctx context.Context, req *dto.CalculatePriceRequest) (*dto.CalculatePriceResponse, error)
	ListHistory(ctx context.Context, req *dto.ListHistoryRequest) (*dto.ListHistoryResponse, error)
	ExportHistory(ctx context.Context, req *dto.ExportHistoryRequest) (string, []byte, error)
	GetMetrics(ctx context.Context) (*dto.GetMetricsResponse, error)
}

// PricingFlowImpl implements the pricing business flow
type PricingFlowImpl struct {
	ruleRepo    repository.PricingRuleRepository
	historyRepo repository.CalculationHistoryRepository
	generation  *GenerationCounter
	cache       services.CacheStore
	costs       services.CostProvider
	metrics     *EngineMetrics
	keyPrefix   string
	cacheTTL    time.Duration
	costTimeout time.Duration
}

// NewPricingFlow creates a new pricing flow instance
func NewPricingFlow(
	ruleRepo repository.PricingRuleRepository,
	historyRepo repository.CalculationHistoryRepository,
	generation *GenerationCounter,
	cache services.CacheStore,
	costs services.CostProvider,
	metrics *EngineMetrics,
	cacheConfig *config.CacheConfig,
	costTimeout time.Duration,
) PricingFlow {
	ttl := utils.CalculationCacheTTL
	if cacheConfig != nil && cacheConfig.DefaultTTL > 0 {
		ttl = cacheConfig.DefaultTTL
	}
	if costTimeout <= 0 {
		costTimeout = utils.CostLookupTimeout
	}
	return &PricingFlowImpl{
		ruleRepo:    ruleRepo,
		historyRepo: historyRepo,
		generation:  generation,
		cache:       cache,
		costs:       costs,
		metrics:     metrics,
		keyPrefix:   CalculationKeyPrefix(cacheConfig),
		cacheTTL:    ttl,
		costTimeout: costTimeout,
	}
}

// CalculationKeyPrefix returns the full cache key prefix for calculation
// entries. Every mutation flushes this prefix.
func CalculationKeyPrefix(cfg *config.CacheConfig) string {
	if cfg == nil {
		return utils.CalculationCachePrefix
	}
	return cfg.RedisPrefix + utils.CalculationCachePrefix
}

// Calculate prices one print job. The request is canonicalized and
// validated, served from cache when an entry under the current ruleset
// generation exists, and otherwise computed fresh, cached, and recorded in
// the audit history. Cache failures degrade to a fresh compute and never fail
// the request; a history write failure does fail it, the audit log is part of
// the pricing contract.
func (f *PricingFlowImpl) Calculate(ctx context.Context, req *dto.CalculatePriceRequest) (*dto.CalculatePriceResponse, error) {
	start := time.Now()

	canonical := requestFromDTO(req).Canonicalize()
	if err := validateCalculationRequest(&canonical); err != nil {
		return nil, err
	}

	generation := f.generation.Current()
	cacheKey := ""
	if fp, err := canonical.Fingerprint(); err == nil {
		cacheKey = fmt.Sprintf("%sg%d:%s", f.keyPrefix, generation, fp)
	}

	if f.cache != nil && cacheKey != "" {
		raw, found, err := f.cache.Get(ctx, cacheKey)
		switch {
		case err != nil:
			f.metrics.RecordCacheBypass()
			log.Printf("calculation cache get failed, computing fresh: %v", err)
		case found:
			var cached models.CalculationResult
			if err := json.Unmarshal(raw, &cached); err != nil {
				log.Printf("discarding undecodable calculation cache entry: %v", err)
			} else {
				cached.Cached = true
				cached.CalculationTimeMs = utils.DurationMs(time.Since(start))
				f.metrics.RecordCalculation(cached.CalculationTimeMs, true)
				return &dto.CalculatePriceResponse{
					Message: "Price calculated successfully",
					Result:  resultToDTO(&cached),
				}, nil
			}
		}
	}

	result, err := f.computeFresh(ctx, &canonical, generation)
	if err != nil {
		f.metrics.RecordError()
		return nil, err
	}
	result.CalculationTimeMs = utils.DurationMs(time.Since(start))

	if f.cache != nil && cacheKey != "" {
		if raw, err := json.Marshal(result); err == nil {
			if err := f.cache.Set(ctx, cacheKey, raw, f.cacheTTL); err != nil {
				f.metrics.RecordCacheBypass()
				log.Printf("calculation cache set failed: %v", err)
			}
		}
	}

	if err := f.recordHistory(ctx, &canonical, result); err != nil {
		f.metrics.RecordError()
		return nil, err
	}

	f.metrics.RecordCalculation(result.CalculationTimeMs, false)

	return &dto.CalculatePriceResponse{
		Message: "Price calculated successfully",
		Result:  resultToDTO(result),
	}, nil
}

// computeFresh runs cost lookup, rule selection, and the pipeline
func (f *PricingFlowImpl) computeFresh(ctx context.Context, canonical *models.CalculationRequest, generation uint64) (*models.CalculationResult, error) {
	cost, err := f.lookupGarmentCost(ctx, canonical.GarmentID)
	if err != nil {
		return nil, err
	}

	rules, err := f.ruleRepo.ListMatchable(ctx)
	if err != nil {
		return nil, NewBusinessError("RULE_FETCH_FAILED", "Failed to load pricing rules", errors.Join(ErrPersistence, err))
	}

	rule, err := selectRule(rules, canonical)
	if err != nil {
		return nil, err
	}

	result, err := computePrice(canonical, rule, cost.BaseUnitCost)
	if err != nil {
		return nil, err
	}

	result.RulesetGeneration = generation
	return result, nil
}

// lookupGarmentCost calls the external cost provider under a bounded timeout
func (f *PricingFlowImpl) lookupGarmentCost(ctx context.Context, garmentID string) (*services.GarmentCost, error) {
	cctx, cancel := context.WithTimeout(ctx, f.costTimeout)
	defer cancel()

	cost, err := f.costs.UnitCost(cctx, garmentID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrGarmentCostNotFound):
			return nil, NewBusinessError("GARMENT_NOT_FOUND", "Garment not found", ErrGarmentNotFound)
		case errors.Is(err, services.ErrCostLookupTimeout), errors.Is(err, context.DeadlineExceeded):
			return nil, &CalculationError{
				Stage:     models.StageBaseCost,
				Dimension: garmentID,
				Message:   "cost lookup timeout",
				Err:       ErrCostLookupTimeout,
			}
		default:
			return nil, &CalculationError{
				Stage:     models.StageBaseCost,
				Dimension: garmentID,
				Message:   "cost lookup failed",
				Err:       err,
			}
		}
	}
	return cost, nil
}

// recordHistory appends the audit record for a freshly computed result
func (f *PricingFlowImpl) recordHistory(ctx context.Context, canonical *models.CalculationRequest, result *models.CalculationResult) error {
	ruleID, _ := uuid.Parse(result.MatchedRuleID)
	locations := make(pq.StringArray, len(canonical.PrintLocations))
	for i, loc := range canonical.PrintLocations {
		locations[i] = string(loc)
	}
	entry := &models.CalculationHistory{
		GarmentID:          canonical.GarmentID,
		ServiceType:        canonical.ServiceType,
		CustomerType:       canonical.CustomerType,
		Quantity:           canonical.Quantity,
		PrintLocations:     locations,
		MatchedRuleID:      ruleID,
		MatchedRuleVersion: result.MatchedRuleVersion,
		TotalPrice:         result.TotalPrice,
		CalculationTimeMs:  result.CalculationTimeMs,
		Request:            *canonical,
		Result:             *result,
	}

	requestID := ctx.Value(utils.RequestIDKey)
	if requestID != nil {
		if requestIDStr, ok := requestID.(string); ok && requestIDStr != "" {
			entry.RequestID = &requestIDStr
		}
	}

	if err := f.historyRepo.Save(ctx, entry); err != nil {
		return NewBusinessError("CALCULATION_HISTORY_SAVE_FAILED", "Failed to record calculation history", errors.Join(ErrPersistence, err))
	}
	return nil
}

// validateCalculationRequest checks the canonicalized request before any
// pipeline stage runs, collecting every violated field.
func validateCalculationRequest(req *models.CalculationRequest) error {
	var violations []FieldViolation

	if req.GarmentID == "" {
		violations = append(violations, FieldViolation{Field: "garment_id", Message: "garment id is required"})
	}
	if req.Quantity <= 0 {
		violations = append(violations, FieldViolation{Field: "quantity", Message: "quantity must be positive integer"})
	}
	if !req.ServiceType.Valid() {
		violations = append(violations, FieldViolation{Field: "service_type", Message: fmt.Sprintf("unknown service type %q", req.ServiceType)})
	}
	if !req.CustomerType.Valid() {
		violations = append(violations, FieldViolation{Field: "customer_type", Message: fmt.Sprintf("unknown customer type %q", req.CustomerType)})
	}
	if len(req.PrintLocations) == 0 {
		violations = append(violations, FieldViolation{Field: "print_locations", Message: "at least one print location is required"})
	}
	for _, loc := range req.PrintLocations {
		if !loc.Valid() {
			violations = append(violations, FieldViolation{Field: "print_locations", Message: fmt.Sprintf("unknown print location %q", loc)})
		}
	}
	if req.StitchCount < 0 {
		violations = append(violations, FieldViolation{Field: "stitch_count", Message: "stitch count cannot be negative"})
	}
	switch req.ServiceType {
	case models.ServiceTypeEmbroidery:
		if req.StitchCount < 1 {
			violations = append(violations, FieldViolation{Field: "stitch_count", Message: "stitch count must be positive for embroidery"})
		}
	case models.ServiceTypeScreenPrint, models.ServiceTypeDTG, models.ServiceTypeVinyl:
		if req.ColorCount < 1 {
			violations = append(violations, FieldViolation{Field: "color_count", Message: "color count must be positive for print services"})
		}
	}
	for i, a := range req.AddOns {
		if !a.Type.Valid() {
			violations = append(violations, FieldViolation{Field: fmt.Sprintf("add_ons[%d].type", i), Message: fmt.Sprintf("unknown add-on type %q", a.Type)})
		}
	}

	if len(violations) > 0 {
		return NewValidationError(violations)
	}
	return nil
}

// ListHistory returns a newest-first page of recorded calculations
func (f *PricingFlowImpl) ListHistory(ctx context.Context, req *dto.ListHistoryRequest) (*dto.ListHistoryResponse, error) {
	filter, err := historyFilterFromDTO(req.GarmentID, req.CustomerType, req.ServiceType, req.From, req.To)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = utils.DefaultPageSize
	}
	if limit > utils.MaxPageSize {
		return nil, NewBusinessError("HISTORY_PAGE_SIZE_INVALID", "Page size must be between 1 and 100", ErrInvalidPageSize)
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	total, err := f.historyRepo.Count(ctx, *filter)
	if err != nil {
		return nil, NewBusinessError("HISTORY_COUNT_FAILED", "Failed to count calculation history", errors.Join(ErrPersistence, err))
	}

	rows, err := f.historyRepo.ByFilter(ctx, *filter, "created_at DESC", limit, offset)
	if err != nil {
		return nil, NewBusinessError("HISTORY_FETCH_FAILED", "Failed to fetch calculation history", errors.Join(ErrPersistence, err))
	}

	items := make([]dto.HistoryEntryDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, ToHistoryEntryDTO(row))
	}

	return &dto.ListHistoryResponse{
		Message: "Calculation history retrieved successfully",
		Items:   items,
		Pagination: dto.HistoryPaginationInfo{
			Total:  total,
			Limit:  limit,
			Offset: offset,
		},
	}, nil
}

// ExportHistory builds an XLSX workbook of recorded calculations matching the
// same filters as the list endpoint
func (f *PricingFlowImpl) ExportHistory(ctx context.Context, req *dto.ExportHistoryRequest) (string, []byte, error) {
	filter, err := historyFilterFromDTO(req.GarmentID, req.CustomerType, req.ServiceType, req.From, req.To)
	if err != nil {
		return "", nil, err
	}

	rows, err := f.historyRepo.ByFilter(ctx, *filter, "created_at DESC", exportHistoryMaxRows, 0)
	if err != nil {
		return "", nil, NewBusinessError("HISTORY_FETCH_FAILED", "Failed to fetch calculation history", errors.Join(ErrPersistence, err))
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := "Calculation History"
	xl.SetSheetName(xl.GetSheetName(0), sheet)

	header := []string{
		"timestamp", "garment_id", "service_type", "customer_type", "quantity",
		"matched_rule_id", "rule_version", "unit_price", "subtotal", "margin_pct",
		"total_price", "calculation_time_ms",
	}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	for ri, row := range rows {
		record := []string{
			row.CreatedAt.UTC().Format(time.RFC3339),
			row.GarmentID,
			row.ServiceType.String(),
			row.CustomerType.String(),
			strconv.Itoa(row.Quantity),
			row.MatchedRuleID.String(),
			strconv.Itoa(row.MatchedRuleVersion),
			row.Result.UnitPrice.String(),
			row.Result.Subtotal.StringFixed(2),
			row.Result.MarginPct.String(),
			row.TotalPrice.StringFixed(2),
			strconv.FormatFloat(row.CalculationTimeMs, 'f', 3, 64),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(sheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	return "calculation_history.xlsx", buf.Bytes(), nil
}

// GetMetrics returns the engine's operational counters
func (f *PricingFlowImpl) GetMetrics(ctx context.Context) (*dto.GetMetricsResponse, error) {
	snap := f.metrics.Snapshot()
	return &dto.GetMetricsResponse{
		Message: "Engine metrics retrieved successfully",
		Metrics: dto.EngineMetricsDTO{
			TotalCalculations:        snap.TotalCalculations,
			CacheHits:                snap.CacheHits,
			CacheMisses:              snap.CacheMisses,
			CacheBypasses:            snap.CacheBypasses,
			CalculationErrors:        snap.CalculationErrors,
			AverageCalculationTimeMs: snap.AverageCalculationTimeMs,
			P99CalculationTimeMs:     snap.P99CalculationTimeMs,
			RulesetGeneration:        f.generation.Current(),
			StartedAt:                snap.StartedAt.Format(time.RFC3339),
		},
	}, nil
}

// historyFilterFromDTO builds the repository filter from query parameters.
// From and To accept RFC3339 timestamps or plain dates.
func historyFilterFromDTO(garmentID, customerType, serviceType, from, to *string) (*models.CalculationHistoryFilter, error) {
	var violations []FieldViolation
	filter := &models.CalculationHistoryFilter{}

	if garmentID != nil && *garmentID != "" {
		filter.GarmentID = garmentID
	}
	if customerType != nil && *customerType != "" {
		ct := models.CustomerType(*customerType)
		if !ct.Valid() {
			violations = append(violations, FieldViolation{Field: "customer_type", Message: fmt.Sprintf("unknown customer type %q", ct)})
		} else {
			filter.CustomerType = &ct
		}
	}
	if serviceType != nil && *serviceType != "" {
		st := models.ServiceType(*serviceType)
		if !st.Valid() {
			violations = append(violations, FieldViolation{Field: "service_type", Message: fmt.Sprintf("unknown service type %q", st)})
		} else {
			filter.ServiceType = &st
		}
	}
	if from != nil && *from != "" {
		t, err := parseHistoryTime(*from)
		if err != nil {
			violations = append(violations, FieldViolation{Field: "from", Message: "must be an RFC3339 timestamp or YYYY-MM-DD date"})
		} else {
			filter.CreatedAfter = &t
		}
	}
	if to != nil && *to != "" {
		t, err := parseHistoryTime(*to)
		if err != nil {
			violations = append(violations, FieldViolation{Field: "to", Message: "must be an RFC3339 timestamp or YYYY-MM-DD date"})
		} else {
			filter.CreatedBefore = &t
		}
	}

	if len(violations) > 0 {
		return nil, NewValidationError(violations)
	}
	if filter.CreatedAfter != nil && filter.CreatedBefore != nil && filter.CreatedAfter.After(*filter.CreatedBefore) {
		return nil, NewBusinessError("HISTORY_DATE_RANGE_INVALID", "Start date cannot be after end date", ErrStartDateAfterEndDate)
	}
	return filter, nil
}

func parseHistoryTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
