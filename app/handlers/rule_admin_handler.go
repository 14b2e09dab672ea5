// Package handlers translates HTTP requests into business flow calls and
// renders flow results and errors as API responses
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/printshop-os/pricing-engine/app/dto"
	"github.com/printshop-os/pricing-engine/app/middleware"
	businessflow "github.com/printshop-os/pricing-engine/business_flow"
	"github.com/printshop-os/pricing-engine/utils"
)

// RuleAdminHandlerInterface defines the contract for pricing rule admin handlers
type RuleAdminHandlerInterface interface {
	CreateRule(c fiber.Ctx) error
	UpdateRule(c fiber.Ctx) error
	RollbackRule(c fiber.Ctx) error
	DeactivateRule(c fiber.Ctx) error
	GetRule(c fiber.Ctx) error
	ListRules(c fiber.Ctx) error
	ListRuleVersions(c fiber.Ctx) error
	ClearCache(c fiber.Ctx) error
}

// RuleAdminHandler handles pricing rule admin HTTP requests
type RuleAdminHandler struct {
	ruleFlow  businessflow.AdminRuleFlow
	validator *validator.Validate
}

func NewRuleAdminHandler(ruleFlow businessflow.AdminRuleFlow) RuleAdminHandlerInterface {
	return &RuleAdminHandler{
		ruleFlow:  ruleFlow,
		validator: validator.New(),
	}
}

func (h *RuleAdminHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *RuleAdminHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateRule creates a new pricing rule at version 1
// @Summary Create Pricing Rule
// @Description Create a new pricing rule; the rule becomes current and active at version 1
// @Tags Admin Rules
// @Accept json
// @Produce json
// @Param request body dto.CreateRuleRequest true "Rule definition"
// @Success 201 {object} dto.APIResponse{data=dto.CreateRuleResponse} "Rule created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/rules [post]
func (h *RuleAdminHandler) CreateRule(c fiber.Ctx) error {
	var req dto.CreateRuleRequest
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

	result, err := h.ruleFlow.CreateRule(h.createRequestContext(c, "/api/v1/admin/rules"), &req)
	if err != nil {
		if businessflow.IsValidationError(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
		}

		log.Println("Admin create rule failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create pricing rule", "CREATE_RULE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Pricing rule created successfully", result)
}

// UpdateRule writes a new version of an existing rule
// @Summary Update Pricing Rule
// @Description Update a pricing rule; a new version is appended and becomes current, prior versions are preserved
// @Tags Admin Rules
// @Accept json
// @Produce json
// @Param rule_id path string true "Rule ID"
// @Param request body dto.UpdateRuleRequest true "New rule definition"
// @Success 200 {object} dto.APIResponse{data=dto.UpdateRuleResponse} "Rule updated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 404 {object} dto.APIResponse "Rule not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/rules/{rule_id} [put]
func (h *RuleAdminHandler) UpdateRule(c fiber.Ctx) error {
	ruleID := c.Params("rule_id")
	if ruleID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Rule ID is required", "MISSING_RULE_ID", nil)
	}

	var req dto.UpdateRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.RuleID = ruleID

	// Validate request
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.ruleFlow.UpdateRule(h.createRequestContext(c, "/api/v1/admin/rules/"+ruleID), &req)
	if err != nil {
		if businessflow.IsValidationError(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
		}
		if businessflow.IsRuleNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Pricing rule not found", "RULE_NOT_FOUND", nil)
		}

		log.Println("Admin update rule failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update pricing rule", "UPDATE_RULE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Pricing rule updated successfully", result)
}

// RollbackRule restores a previous version of a rule as a new version
// @Summary Rollback Pricing Rule
// @Description Restore a previous version's definition as a new current version; history is never rewritten
// @Tags Admin Rules
// @Accept json
// @Produce json
// @Param rule_id path string true "Rule ID"
// @Param request body dto.RollbackRuleRequest true "Target version"
// @Success 200 {object} dto.APIResponse{data=dto.RollbackRuleResponse} "Rule rolled back successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or rollback to current version"
// @Failure 404 {object} dto.APIResponse "Rule or version not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/rules/{rule_id}/rollback [post]
func (h *RuleAdminHandler) RollbackRule(c fiber.Ctx) error {
	ruleID := c.Params("rule_id")
	if ruleID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Rule ID is required", "MISSING_RULE_ID", nil)
	}

	var req dto.RollbackRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.RuleID = ruleID

	// Validate request
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.ruleFlow.RollbackRule(h.createRequestContext(c, "/api/v1/admin/rules/"+ruleID+"/rollback"), &req)
	if err != nil {
		if businessflow.IsValidationError(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
		}
		if businessflow.IsRollbackToCurrentVersion(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Rule is already at this version", "ROLLBACK_TO_CURRENT_VERSION", nil)
		}
		if businessflow.IsRuleNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Pricing rule not found", "RULE_NOT_FOUND", nil)
		}
		if businessflow.IsRuleVersionNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Pricing rule version not found", "RULE_VERSION_NOT_FOUND", nil)
		}

		log.Println("Admin rollback rule failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to rollback pricing rule", "ROLLBACK_RULE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Pricing rule rolled back successfully", result)
}

// DeactivateRule stops a rule from matching without erasing its history
// @Summary Deactivate Pricing Rule
// @Description Deactivate a pricing rule; a new inactive version is appended and the rule stops matching
// @Tags Admin Rules
// @Produce json
// @Param rule_id path string true "Rule ID"
// @Success 200 {object} dto.APIResponse{data=dto.DeactivateRuleResponse} "Rule deactivated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or rule already inactive"
// @Failure 404 {object} dto.APIResponse "Rule not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/rules/{rule_id} [delete]
func (h *RuleAdminHandler) DeactivateRule(c fiber.Ctx) error {
	ruleID := c.Params("rule_id")
	if ruleID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Rule ID is required", "MISSING_RULE_ID", nil)
	}

	req := &dto.DeactivateRuleRequest{RuleID: ruleID}

	result, err := h.ruleFlow.DeactivateRule(h.createRequestContext(c, "/api/v1/admin/rules/"+ruleID), req)
	if err != nil {
		if businessflow.IsValidationError(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
		}
		if businessflow.IsRuleAlreadyInactive(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Pricing rule is already inactive", "RULE_ALREADY_INACTIVE", nil)
		}
		if businessflow.IsRuleNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Pricing rule not found", "RULE_NOT_FOUND", nil)
		}

		log.Println("Admin deactivate rule failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to deactivate pricing rule", "DEACTIVATE_RULE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Pricing rule deactivated successfully", result)
}

// GetRule returns the current version of a rule, or a specific one
// @Summary Get Pricing Rule
// @Description Retrieve the current version of a pricing rule, or a specific version via the version query parameter
// @Tags Admin Rules
// @Produce json
// @Param rule_id path string true "Rule ID"
// @Param version query int false "Specific version (defaults to current)"
// @Success 200 {object} dto.APIResponse{data=dto.GetRuleResponse}
// @Failure 400 {object} dto.APIResponse "Invalid rule ID or version"
// @Failure 404 {object} dto.APIResponse "Rule or version not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/rules/{rule_id} [get]
func (h *RuleAdminHandler) GetRule(c fiber.Ctx) error {
	ruleID := c.Params("rule_id")
	if ruleID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Rule ID is required", "MISSING_RULE_ID", nil)
	}

	version := 0
	if raw := c.Query("version"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Version must be a positive integer", "INVALID_REQUEST", nil)
		}
		version = v
	}

	result, err := h.ruleFlow.GetRule(h.createRequestContext(c, "/api/v1/admin/rules/"+ruleID), ruleID, version)
	if err != nil {
		if businessflow.IsValidationError(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
		}
		if businessflow.IsRuleNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Pricing rule not found", "RULE_NOT_FOUND", nil)
		}
		if businessflow.IsRuleVersionNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Pricing rule version not found", "RULE_VERSION_NOT_FOUND", nil)
		}

		log.Println("Admin get rule failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve pricing rule", "GET_RULE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Pricing rule retrieved successfully", result)
}

// ListRules returns current rule versions with filters and pagination
// @Summary List Pricing Rules
// @Description Retrieve current rule versions with pagination, ordering, and filters
// @Tags Admin Rules
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page (max 100)" default(20)
// @Param orderby query string false "Order by (newest|oldest)" default(newest)
// @Param name query string false "Filter by name (contains)"
// @Param is_active query bool false "Filter by active state"
// @Param service_type query string false "Filter by service type condition (screen_print|embroidery|dtg|vinyl)"
// @Success 200 {object} dto.APIResponse{data=dto.ListRulesResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/rules [get]
func (h *RuleAdminHandler) ListRules(c fiber.Ctx) error {
	// Parse query params; the flow applies defaults and bounds
	page := 0
	if v, err := strconv.Atoi(c.Query("page", "0")); err == nil {
		page = v
	}
	limit := 0
	if v, err := strconv.Atoi(c.Query("limit", "0")); err == nil {
		limit = v
	}
	orderby := c.Query("orderby", "newest")
	name := c.Query("name")
	serviceType := c.Query("service_type")
	isActiveStr := c.Query("is_active")

	var filter *dto.ListRulesFilter
	if name != "" || serviceType != "" || isActiveStr != "" {
		filter = &dto.ListRulesFilter{}
		if name != "" {
			filter.Name = &name
		}
		if serviceType != "" {
			filter.ServiceType = &serviceType
		}
		if isActiveStr != "" {
			isActive, err := strconv.ParseBool(isActiveStr)
			if err != nil {
				return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid is_active value", "INVALID_REQUEST", nil)
			}
			filter.IsActive = &isActive
		}
	}

	req := &dto.ListRulesRequest{
		Page:    page,
		Limit:   limit,
		OrderBy: orderby,
		Filter:  filter,
	}

	result, err := h.ruleFlow.ListRules(h.createRequestContext(c, "/api/v1/admin/rules"), req)
	if err != nil {
		if businessflow.IsValidationError(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
		}
		if businessflow.IsInvalidPage(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Page must be at least 1", "INVALID_PAGE", nil)
		}
		if businessflow.IsInvalidPageSize(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Page size must be between 1 and 100", "INVALID_PAGE_SIZE", nil)
		}

		log.Println("Admin list rules failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list pricing rules", "LIST_RULES_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Pricing rules retrieved successfully", result)
}

// ListRuleVersions returns the full version chain of a rule
// @Summary List Pricing Rule Versions
// @Description Retrieve every version of a pricing rule newest first, including change type and note
// @Tags Admin Rules
// @Produce json
// @Param rule_id path string true "Rule ID"
// @Success 200 {object} dto.APIResponse{data=dto.ListRuleVersionsResponse}
// @Failure 400 {object} dto.APIResponse "Invalid rule ID"
// @Failure 404 {object} dto.APIResponse "Rule not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/rules/{rule_id}/versions [get]
func (h *RuleAdminHandler) ListRuleVersions(c fiber.Ctx) error {
	ruleID := c.Params("rule_id")
	if ruleID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Rule ID is required", "MISSING_RULE_ID", nil)
	}

	result, err := h.ruleFlow.ListRuleVersions(h.createRequestContext(c, "/api/v1/admin/rules/"+ruleID+"/versions"), ruleID)
	if err != nil {
		if businessflow.IsValidationError(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
		}
		if businessflow.IsRuleNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Pricing rule not found", "RULE_NOT_FOUND", nil)
		}

		log.Println("Admin list rule versions failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list pricing rule versions", "LIST_RULE_VERSIONS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Pricing rule versions retrieved successfully", result)
}

// ClearCache flushes every cached calculation result
// @Summary Clear Calculation Cache
// @Description Flush all cached calculation results; subsequent requests recompute against current rules
// @Tags Admin Rules
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.ClearCacheResponse} "Cache cleared successfully"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Failure 503 {object} dto.APIResponse "Cache not available"
// @Router /api/v1/admin/cache/clear [post]
func (h *RuleAdminHandler) ClearCache(c fiber.Ctx) error {
	result, err := h.ruleFlow.ClearCache(h.createRequestContext(c, "/api/v1/admin/cache/clear"))
	if err != nil {
		if businessflow.IsCacheNotAvailable(err) {
			return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Cache is not available", "CACHE_NOT_AVAILABLE", nil)
		}

		log.Println("Admin clear cache failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to clear calculation cache", "CLEAR_CACHE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Calculation cache cleared successfully", result)
}

// createRequestContext builds the flow context with the default 30s deadline.
func (h *RuleAdminHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

// createRequestContextWithTimeout builds the flow context, carrying the
// request trace values alongside the deadline.
func (h *RuleAdminHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)

	// The acting admin, for the mutation audit log
	if subject, ok := middleware.AdminSubjectFromLocals(c); ok {
		ctx = context.WithValue(ctx, utils.AdminSubjectKey, subject)
	}

	return ctx
}
