package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/printshop-os/pricing-engine/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func costLookupConfig(baseURL, apiKey string) *config.CostLookupConfig {
	return &config.CostLookupConfig{
		Provider: "http",
		BaseURL:  baseURL,
		APIKey:   apiKey,
		Timeout:  2 * time.Second,
	}
}

func TestHTTPCostProviderUnitCost(t *testing.T) {
	ctx := context.Background()

	t.Run("FetchesTheCostRecord", func(t *testing.T) {
		var gotPath, gotAPIKey, gotAccept string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAPIKey = r.Header.Get("x-api-key")
			gotAccept = r.Header.Get("Accept")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"garment_id":"G500","name":"Heavy Cotton Tee","base_unit_cost":"4.00","currency":"USD"}`))
		}))
		defer server.Close()

		provider := NewHTTPCostProvider(costLookupConfig(server.URL, "catalog-key"))
		cost, err := provider.UnitCost(ctx, "G500")
		require.NoError(t, err)

		assert.Equal(t, "/garments/G500/cost", gotPath)
		assert.Equal(t, "catalog-key", gotAPIKey)
		assert.Equal(t, "application/json", gotAccept)
		assert.Equal(t, "G500", cost.GarmentID)
		assert.Equal(t, "Heavy Cotton Tee", cost.Name)
		assert.True(t, cost.BaseUnitCost.Equal(decimal.RequireFromString("4.00")))
		assert.Equal(t, "USD", cost.Currency)
	})

	t.Run("TrailingSlashBaseURL", func(t *testing.T) {
		var gotPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			w.Write([]byte(`{"garment_id":"G500","base_unit_cost":"4.00"}`))
		}))
		defer server.Close()

		provider := NewHTTPCostProvider(costLookupConfig(server.URL+"/", ""))
		_, err := provider.UnitCost(ctx, "G500")
		require.NoError(t, err)
		assert.Equal(t, "/garments/G500/cost", gotPath)
	})

	t.Run("NoAPIKeyHeaderWhenUnset", func(t *testing.T) {
		var header http.Header
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header = r.Header.Clone()
			w.Write([]byte(`{"garment_id":"G500","base_unit_cost":"4.00"}`))
		}))
		defer server.Close()

		provider := NewHTTPCostProvider(costLookupConfig(server.URL, ""))
		_, err := provider.UnitCost(ctx, "G500")
		require.NoError(t, err)

		_, present := header["X-Api-Key"]
		assert.False(t, present)
	})

	t.Run("MissingGarmentIDDefaultsToTheRequested", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"base_unit_cost":"6.25"}`))
		}))
		defer server.Close()

		provider := NewHTTPCostProvider(costLookupConfig(server.URL, ""))
		cost, err := provider.UnitCost(ctx, "G600")
		require.NoError(t, err)
		assert.Equal(t, "G600", cost.GarmentID)
	})

	t.Run("NotFound", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		provider := NewHTTPCostProvider(costLookupConfig(server.URL, ""))
		_, err := provider.UnitCost(ctx, "UNKNOWN")
		assert.True(t, errors.Is(err, ErrGarmentCostNotFound))
	})

	t.Run("ServerError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		provider := NewHTTPCostProvider(costLookupConfig(server.URL, ""))
		_, err := provider.UnitCost(ctx, "G500")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cost lookup returned status 500")
	})

	t.Run("NegativeCostIsRejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"garment_id":"G500","base_unit_cost":"-1.00"}`))
		}))
		defer server.Close()

		provider := NewHTTPCostProvider(costLookupConfig(server.URL, ""))
		_, err := provider.UnitCost(ctx, "G500")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "negative cost")
	})

	t.Run("MalformedBody", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer server.Close()

		provider := NewHTTPCostProvider(costLookupConfig(server.URL, ""))
		_, err := provider.UnitCost(ctx, "G500")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode cost lookup response")
	})

	t.Run("ClientTimeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(`{"garment_id":"G500","base_unit_cost":"4.00"}`))
		}))
		defer server.Close()

		cfg := costLookupConfig(server.URL, "")
		cfg.Timeout = 20 * time.Millisecond
		provider := NewHTTPCostProvider(cfg)

		_, err := provider.UnitCost(ctx, "G500")
		assert.True(t, errors.Is(err, ErrCostLookupTimeout))
	})

	t.Run("ContextDeadline", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(`{"garment_id":"G500","base_unit_cost":"4.00"}`))
		}))
		defer server.Close()

		provider := NewHTTPCostProvider(costLookupConfig(server.URL, ""))
		shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := provider.UnitCost(shortCtx, "G500")
		assert.True(t, errors.Is(err, ErrCostLookupTimeout))
	})
}

func TestStaticCostProvider(t *testing.T) {
	ctx := context.Background()
	provider := NewStaticCostProvider(map[string]decimal.Decimal{
		"G500": decimal.RequireFromString("4.00"),
	})

	t.Run("KnownGarment", func(t *testing.T) {
		cost, err := provider.UnitCost(ctx, "G500")
		require.NoError(t, err)
		assert.True(t, cost.BaseUnitCost.Equal(decimal.RequireFromString("4.00")))
		assert.Equal(t, "USD", cost.Currency)
	})

	t.Run("UnknownGarment", func(t *testing.T) {
		_, err := provider.UnitCost(ctx, "G999")
		assert.True(t, errors.Is(err, ErrGarmentCostNotFound))
	})

	t.Run("SetCostReplaces", func(t *testing.T) {
		provider.SetCost("G500", decimal.RequireFromString("4.50"))

		cost, err := provider.UnitCost(ctx, "G500")
		require.NoError(t, err)
		assert.True(t, cost.BaseUnitCost.Equal(decimal.RequireFromString("4.50")))
	})
}

func TestMockCostProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("RecordsLookups", func(t *testing.T) {
		mock := NewMockCostProvider()
		mock.Costs["G500"] = decimal.RequireFromString("4.00")

		cost, err := mock.UnitCost(ctx, "G500")
		require.NoError(t, err)
		assert.True(t, cost.BaseUnitCost.Equal(decimal.RequireFromString("4.00")))

		_, err = mock.UnitCost(ctx, "G999")
		assert.True(t, errors.Is(err, ErrGarmentCostNotFound))

		assert.Equal(t, 2, mock.LookupCount())
		assert.Equal(t, []string{"G500", "G999"}, mock.Lookups)
	})

	t.Run("InjectedError", func(t *testing.T) {
		mock := NewMockCostProvider()
		mock.Err = errors.New("catalog down")

		_, err := mock.UnitCost(ctx, "G500")
		assert.EqualError(t, err, "catalog down")
	})

	t.Run("DelayHonorsTheContext", func(t *testing.T) {
		mock := NewMockCostProvider()
		mock.Costs["G500"] = decimal.RequireFromString("4.00")
		mock.Delay = 200 * time.Millisecond

		shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := mock.UnitCost(shortCtx, "G500")
		assert.True(t, errors.Is(err, ErrCostLookupTimeout))
	})
}
