// Package handlers translates HTTP requests into business flow calls and
// renders flow results and errors as API responses
package handlers

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/printshop-os/pricing-engine/app/dto"
	businessflow "github.com/printshop-os/pricing-engine/business_flow"
	"github.com/printshop-os/pricing-engine/utils"
)

// PricingHandlerInterface defines the contract for pricing handlers
type PricingHandlerInterface interface {
	CalculatePrice(c fiber.Ctx) error
	ListHistory(c fiber.Ctx) error
	ExportHistory(c fiber.Ctx) error
	GetMetrics(c fiber.Ctx) error
}

// PricingHandler handles price calculation and history HTTP requests
type PricingHandler struct {
	pricingFlow businessflow.PricingFlow
	validator   *validator.Validate
}

// NewPricingHandler creates a new pricing handler
func NewPricingHandler(pricingFlow businessflow.PricingFlow) *PricingHandler {
	handler := &PricingHandler{
		pricingFlow: pricingFlow,
		validator:   validator.New(),
	}
	return handler
}

func (h *PricingHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *PricingHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CalculatePrice handles the price calculation process
// @Summary Calculate Price
// @Description Calculate an itemized, margin-applied price for a print job against the matching current rule
// @Tags Pricing
// @Accept json
// @Produce json
// @Param request body dto.CalculatePriceRequest true "Print job parameters"
// @Success 200 {object} dto.APIResponse{data=dto.CalculatePriceResponse} "Price calculated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 404 {object} dto.APIResponse "Garment not found or no applicable rule"
// @Failure 409 {object} dto.APIResponse "Ambiguous rule match"
// @Failure 422 {object} dto.APIResponse "Calculation failed mid-pipeline"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Failure 504 {object} dto.APIResponse "Garment cost lookup timed out"
// @Router /api/v1/pricing/calculate [post]
func (h *PricingHandler) CalculatePrice(c fiber.Ctx) error {
	var req dto.CalculatePriceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	// Validate request
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.pricingFlow.Calculate(h.createRequestContext(c, "/api/v1/pricing/calculate"), &req)
	if err != nil {
		// Known flow errors map to their own status codes
		if businessflow.IsValidationError(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
		}
		if businessflow.IsGarmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Garment not found", "GARMENT_NOT_FOUND", nil)
		}
		if businessflow.IsNoMatchingRule(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "No pricing rule matches this request", "NO_MATCHING_RULE", nil)
		}
		if businessflow.IsAmbiguousMatch(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Multiple pricing rules match at the same priority", "AMBIGUOUS_RULE_MATCH", nil)
		}
		if businessflow.IsCostLookupTimeout(err) {
			return h.ErrorResponse(c, fiber.StatusGatewayTimeout, "Garment cost lookup timed out", "COST_LOOKUP_TIMEOUT", nil)
		}
		if businessflow.IsCalculationError(err) {
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Price calculation failed", "CALCULATION_FAILED", calculationDetails(err))
		}

		log.Println("Price calculation failed", err)
		// anything else is a 500
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Price calculation failed", "PRICE_CALCULATION_FAILED", nil)
	}

	// Successful calculation
	return h.SuccessResponse(c, fiber.StatusOK, "Price calculated successfully", fiber.Map{
		"message": result.Message,
		"result":  result.Result,
	})
}

// ListHistory returns recorded calculations with filters and pagination
// @Summary List Calculation History
// @Description Retrieve recorded calculations newest first with pagination and filters
// @Tags Pricing
// @Produce json
// @Param limit query int false "Items per page (max 100)" default(20)
// @Param offset query int false "Number of items to skip" default(0)
// @Param garment_id query string false "Filter by garment ID"
// @Param service_type query string false "Filter by service type (screen_print|embroidery|dtg|vinyl)"
// @Param customer_type query string false "Filter by customer type (standard|contract|wholesale|education)"
// @Param from query string false "Filter created_at >= from (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "Filter created_at <= to (RFC3339 or YYYY-MM-DD)"
// @Success 200 {object} dto.APIResponse{data=dto.ListHistoryResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pricing/history [get]
func (h *PricingHandler) ListHistory(c fiber.Ctx) error {
	req := &dto.ListHistoryRequest{}

	// Parse query params; the flow applies defaults and bounds
	if v, err := strconv.Atoi(c.Query("limit", "0")); err == nil {
		req.Limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset", "0")); err == nil {
		req.Offset = v
	}
	if garmentID := c.Query("garment_id"); garmentID != "" {
		req.GarmentID = &garmentID
	}
	if serviceType := c.Query("service_type"); serviceType != "" {
		req.ServiceType = &serviceType
	}
	if customerType := c.Query("customer_type"); customerType != "" {
		req.CustomerType = &customerType
	}
	if from := c.Query("from"); from != "" {
		req.From = &from
	}
	if to := c.Query("to"); to != "" {
		req.To = &to
	}

	// Call business logic
	result, err := h.pricingFlow.ListHistory(h.createRequestContext(c, "/api/v1/pricing/history"), req)
	if err != nil {
		if businessflow.IsValidationError(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
		}
		if businessflow.IsInvalidPageSize(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Page size must be between 1 and 100", "INVALID_PAGE_SIZE", nil)
		}
		if businessflow.IsStartDateAfterEndDate(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date cannot be after end date", "INVALID_DATE_RANGE", nil)
		}

		log.Println("List calculation history failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list calculation history", "LIST_HISTORY_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Calculation history retrieved successfully", fiber.Map{
		"message":    result.Message,
		"items":      result.Items,
		"pagination": result.Pagination,
	})
}

// ExportHistory returns the filtered history as an Excel file
// @Summary Export Calculation History
// @Description Download the filtered calculation history as an Excel file
// @Tags Pricing
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param garment_id query string false "Filter by garment ID"
// @Param service_type query string false "Filter by service type (screen_print|embroidery|dtg|vinyl)"
// @Param customer_type query string false "Filter by customer type (standard|contract|wholesale|education)"
// @Param from query string false "Filter created_at >= from (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "Filter created_at <= to (RFC3339 or YYYY-MM-DD)"
// @Success 200 {string} string "Excel file"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pricing/history/export [get]
func (h *PricingHandler) ExportHistory(c fiber.Ctx) error {
	req := &dto.ExportHistoryRequest{}

	if garmentID := c.Query("garment_id"); garmentID != "" {
		req.GarmentID = &garmentID
	}
	if serviceType := c.Query("service_type"); serviceType != "" {
		req.ServiceType = &serviceType
	}
	if customerType := c.Query("customer_type"); customerType != "" {
		req.CustomerType = &customerType
	}
	if from := c.Query("from"); from != "" {
		req.From = &from
	}
	if to := c.Query("to"); to != "" {
		req.To = &to
	}

	filename, data, err := h.pricingFlow.ExportHistory(h.createRequestContextWithTimeout(c, "/api/v1/pricing/history/export", 60*time.Second), req)
	if err != nil {
		if businessflow.IsValidationError(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
		}
		if businessflow.IsStartDateAfterEndDate(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date cannot be after end date", "INVALID_DATE_RANGE", nil)
		}

		log.Println("Export calculation history failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to export calculation history", "EXPORT_HISTORY_FAILED", nil)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

// GetMetrics returns the engine's operational counters
// @Summary Engine Metrics
// @Description Retrieve calculation counters, cache hit rates, latency aggregates, and the current ruleset generation
// @Tags Pricing
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.GetMetricsResponse}
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pricing/metrics [get]
func (h *PricingHandler) GetMetrics(c fiber.Ctx) error {
	result, err := h.pricingFlow.GetMetrics(h.createRequestContext(c, "/api/v1/pricing/metrics"))
	if err != nil {
		log.Println("Get engine metrics failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve engine metrics", "GET_METRICS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Engine metrics retrieved successfully", fiber.Map{
		"message": result.Message,
		"metrics": result.Metrics,
	})
}

// validationDetails extracts per-field violations from a validation error
func validationDetails(err error) any {
	var verr *businessflow.ValidationError
	if errors.As(err, &verr) {
		return verr.Violations
	}
	return nil
}

// calculationDetails extracts the failing stage from a calculation error
func calculationDetails(err error) any {
	var cerr *businessflow.CalculationError
	if errors.As(err, &cerr) {
		return fiber.Map{
			"stage":     cerr.Stage,
			"dimension": cerr.Dimension,
			"message":   cerr.Message,
		}
	}
	return nil
}

// createRequestContext builds the flow context with the default 30s deadline.
func (h *PricingHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

// createRequestContextWithTimeout builds the flow context, carrying the
// request trace values alongside the deadline.
func (h *PricingHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)

	return ctx
}
