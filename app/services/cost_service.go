package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/printshop-os/pricing-engine/config"
	"github.com/shopspring/decimal"
)

// Cost lookup failures the pricing flow distinguishes
var (
	ErrGarmentCostNotFound = errors.New("garment cost not found")
	ErrCostLookupTimeout   = errors.New("cost lookup timed out")
)

// GarmentCost is the supplier-side cost record for one garment
type GarmentCost struct {
	GarmentID    string          `json:"garment_id"`
	Name         string          `json:"name,omitempty"`
	BaseUnitCost decimal.Decimal `json:"base_unit_cost"`
	Currency     string          `json:"currency,omitempty"`
}

// CostProvider resolves the supplier cost of a garment
type CostProvider interface {
	UnitCost(ctx context.Context, garmentID string) (*GarmentCost, error)
}

// HTTPCostProvider implements CostProvider against the garment catalog service
type HTTPCostProvider struct {
	config *config.CostLookupConfig
	client *http.Client
}

// NewHTTPCostProvider creates a new catalog-backed cost provider
func NewHTTPCostProvider(cfg *config.CostLookupConfig) CostProvider {
	return &HTTPCostProvider{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// UnitCost fetches the cost record for one garment from the catalog
func (p *HTTPCostProvider) UnitCost(ctx context.Context, garmentID string) (*GarmentCost, error) {
	endpoint := fmt.Sprintf("%s/garments/%s/cost", strings.TrimRight(p.config.BaseURL, "/"), url.PathEscape(garmentID))
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("x-api-key", p.config.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &uerr) && uerr.Timeout()) {
			return nil, ErrCostLookupTimeout
		}
		return nil, fmt.Errorf("failed to call cost lookup: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrGarmentCostNotFound
	default:
		return nil, fmt.Errorf("cost lookup returned status %d", resp.StatusCode)
	}

	var cost GarmentCost
	if err := json.NewDecoder(resp.Body).Decode(&cost); err != nil {
		return nil, fmt.Errorf("failed to decode cost lookup response: %w", err)
	}
	if cost.BaseUnitCost.IsNegative() {
		return nil, fmt.Errorf("cost lookup returned negative cost for %s", garmentID)
	}
	if cost.GarmentID == "" {
		cost.GarmentID = garmentID
	}
	return &cost, nil
}

// StaticCostProvider serves costs from a fixed in-memory table. Used when the
// deployment has no catalog service to call.
type StaticCostProvider struct {
	mu    sync.RWMutex
	costs map[string]GarmentCost
}

// NewStaticCostProvider creates a provider over a fixed cost table
func NewStaticCostProvider(costs map[string]decimal.Decimal) *StaticCostProvider {
	table := make(map[string]GarmentCost, len(costs))
	for id, c := range costs {
		table[id] = GarmentCost{GarmentID: id, BaseUnitCost: c, Currency: "USD"}
	}
	return &StaticCostProvider{costs: table}
}

func (p *StaticCostProvider) UnitCost(ctx context.Context, garmentID string) (*GarmentCost, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cost, ok := p.costs[garmentID]
	if !ok {
		return nil, ErrGarmentCostNotFound
	}
	return &cost, nil
}

// SetCost adds or replaces one garment's cost
func (p *StaticCostProvider) SetCost(garmentID string, cost decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.costs[garmentID] = GarmentCost{GarmentID: garmentID, BaseUnitCost: cost, Currency: "USD"}
}

// MockCostProvider implements CostProvider for testing
type MockCostProvider struct {
	mu      sync.Mutex
	Costs   map[string]decimal.Decimal
	Err     error
	Delay   time.Duration
	Lookups []string
}

// NewMockCostProvider creates a new mock cost provider
func NewMockCostProvider() *MockCostProvider {
	return &MockCostProvider{Costs: make(map[string]decimal.Decimal)}
}

func (m *MockCostProvider) UnitCost(ctx context.Context, garmentID string) (*GarmentCost, error) {
	m.mu.Lock()
	m.Lookups = append(m.Lookups, garmentID)
	err := m.Err
	delay := m.Delay
	cost, ok := m.Costs[garmentID]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ErrCostLookupTimeout
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrGarmentCostNotFound
	}
	return &GarmentCost{GarmentID: garmentID, BaseUnitCost: cost, Currency: "USD"}, nil
}

// LookupCount returns how many lookups the mock has served
func (m *MockCostProvider) LookupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Lookups)
}
