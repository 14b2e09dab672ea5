// Package router assembles the Fiber application: the global middleware
// chain, the public pricing routes, and the token-guarded admin surface
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/printshop-os/pricing-engine/app/dto"
	"github.com/printshop-os/pricing-engine/app/handlers"
	"github.com/printshop-os/pricing-engine/app/middleware"
	"github.com/printshop-os/pricing-engine/config"
	_ "github.com/printshop-os/pricing-engine/docs"
	"github.com/printshop-os/pricing-engine/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"
)

// Router is the HTTP surface the bootstrap drives.
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter serves the API on a Fiber v3 app.
type FiberRouter struct {
	app              *fiber.App
	cfg              *config.ProductionConfig
	pricingHandler   handlers.PricingHandlerInterface
	ruleAdminHandler handlers.RuleAdminHandlerInterface
	authMiddleware   *middleware.AuthMiddleware
}

// NewFiberRouter builds the Fiber app with the server limits and timeouts
// taken from cfg.
func NewFiberRouter(
	cfg *config.ProductionConfig,
	pricingHandler handlers.PricingHandlerInterface,
	ruleAdminHandler handlers.RuleAdminHandlerInterface,
	authMiddleware *middleware.AuthMiddleware,
) Router {
	fiberConfig := fiber.Config{
		AppName:      "Pricing Engine API",
		ServerHeader: "pricing-engine",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ProxyHeader:  cfg.Server.ProxyHeader,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	}
	if len(cfg.Server.TrustedProxies) > 0 {
		fiberConfig.TrustProxy = true
		fiberConfig.TrustProxyConfig = fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		}
	}
	app := fiber.New(fiberConfig)

	return &FiberRouter{
		app:              app,
		cfg:              cfg,
		pricingHandler:   pricingHandler,
		ruleAdminHandler: ruleAdminHandler,
		authMiddleware:   authMiddleware,
	}
}

// SetupRoutes installs the middleware chain and the route table.
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	// Prometheus scrape endpoint
	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.PrometheusPath, adaptor.HTTPHandler(promhttp.Handler()))
	}

	// API routes
	api := r.app.Group("/api/v1")

	// Health, exempt from the limiter below
	api.Get("/health", r.healthCheck)

	// Docs and swagger stay off outside development
	if r.cfg.Deployment.Environment == "development" || r.cfg.Deployment.Environment == "local" {
		api.Get("/docs", r.getAPIDocumentation)
		api.Get("/swagger.json", r.serveSwaggerJSON)
		// UI lives at the root, outside the API group
		r.app.Get("/swagger", r.serveSwaggerUI)
		log.Println("API documentation enabled for development")
	}

	// Per-IP rate limit across the whole API
	api.Use(limiter.New(limiter.Config{
		Max:        r.cfg.Security.GlobalRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			// health probes stay unthrottled
			return c.Path() == "/api/v1/health"
		},
	}))

	// Pricing endpoints (open to the order intake and storefront services)
	pricing := api.Group("/pricing")
	pricing.Post("/calculate", r.pricingHandler.CalculatePrice)
	pricing.Get("/history", r.pricingHandler.ListHistory)
	pricing.Get("/history/export", r.pricingHandler.ExportHistory)
	pricing.Get("/metrics", r.pricingHandler.GetMetrics)

	// Admin endpoints with stricter rate limiting and bearer token auth
	admin := api.Group("/admin")
	admin.Use(limiter.New(limiter.Config{
		Max:        r.cfg.Security.AdminRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
	}))
	if r.cfg.JWT.Enabled && r.authMiddleware != nil {
		admin.Use(r.authMiddleware.AdminAuthenticate())
	}

	rules := admin.Group("/rules")
	rules.Post("/", r.ruleAdminHandler.CreateRule)
	rules.Get("/", r.ruleAdminHandler.ListRules)
	rules.Get("/:rule_id", r.ruleAdminHandler.GetRule)
	rules.Put("/:rule_id", r.ruleAdminHandler.UpdateRule)
	rules.Delete("/:rule_id", r.ruleAdminHandler.DeactivateRule)
	rules.Post("/:rule_id/rollback", r.ruleAdminHandler.RollbackRule)
	rules.Get("/:rule_id/versions", r.ruleAdminHandler.ListRuleVersions)

	admin.Post("/cache/clear", r.ruleAdminHandler.ClearCache)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware installs the global chain. Request IDs come first so
// every later stage can tag its output with one.
func (r *FiberRouter) setupMiddleware() {
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	// HTTP metrics middleware
	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics())
	}

	// Security headers
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             r.cfg.Security.XSSProtection,
		ContentTypeNosniff:        r.cfg.Security.XContentTypeOptions,
		XFrameOptions:             r.cfg.Security.XFrameOptions,
		HSTSMaxAge:                r.cfg.Security.HSTSMaxAge,
		HSTSExcludeSubdomains:     !r.cfg.Security.HSTSIncludeSubDoms,
		ContentSecurityPolicy:     r.cfg.Security.CSPPolicy,
		ReferrerPolicy:            r.cfg.Security.ReferrerPolicy,
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	// CORS, origins and headers from config
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.cfg.Security.AllowedOrigins,
		AllowMethods: r.cfg.Security.AllowedMethods,
		AllowHeaders: r.cfg.Security.AllowedHeaders,
		ExposeHeaders: []string{
			"X-Request-ID",
			"X-Response-Time",
			"Content-Disposition",
		},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	// Response compression, optional
	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.Level(r.cfg.Server.CompressionLevel),
		}))
	}

	// JSON access log, one line per request
	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			// Skip logging for health checks and Prometheus scrapes
			return c.Path() == "/api/v1/health" || c.Path() == r.cfg.Metrics.PrometheusPath
		},
	}))

	// Response tracing headers
	r.app.Use(r.securityMiddleware)

	// Panic recovery
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			// panic line in the access log shape, so it lands in the same index
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// securityMiddleware stamps the headers downstream services use to trace
// responses back to an instance.
func (r *FiberRouter) securityMiddleware(c fiber.Ctx) error {
	c.Set("X-Response-Time", utils.UTCNow().Format(time.RFC3339))
	c.Set("Server", "pricing-engine")
	return c.Next()
}

// Start binds the listener and serves until the app is shut down.
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp exposes the underlying app for the bootstrap and for tests.
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// healthCheck reports liveness and the running version.
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   r.cfg.Deployment.Version,
			"service":   "pricing-engine",
		},
	})
}

// getAPIDocumentation lists the endpoints with their parameters.
func (r *FiberRouter) getAPIDocumentation(c fiber.Ctx) error {
	docs := GetRouteDocumentation()
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "API documentation retrieved successfully",
		Data: fiber.Map{
			"title":       "Pricing Engine API Documentation",
			"version":     r.cfg.Deployment.Version,
			"description": "Print job pricing and rule management API",
			"endpoints":   docs,
		},
	})
}

// serveSwaggerUI renders a swagger-ui-dist page pointed at our document.
func (r *FiberRouter) serveSwaggerUI(c fiber.Ctx) error {
	htmlContent := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Pricing Engine API - Swagger UI</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css" />
    <style>
        html {
            box-sizing: border-box;
            overflow: -moz-scrollbars-vertical;
            overflow-y: scroll;
        }
        *, *:before, *:after {
            box-sizing: inherit;
        }
        body {
            margin:0;
            background: #fafafa;
        }
    </style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-standalone-preset.js"></script>
    <script>
        window.onload = function() {
            const ui = SwaggerUIBundle({
                url: '/api/v1/swagger.json',
                dom_id: '#swagger-ui',
                deepLinking: true,
                presets: [
                    SwaggerUIBundle.presets.apis,
                    SwaggerUIStandalonePreset
                ],
                plugins: [
                    SwaggerUIBundle.plugins.DownloadUrl
                ],
                layout: "StandaloneLayout",
                validatorUrl: null
            });
        };
    </script>
</body>
</html>`

	c.Set("Content-Type", "text/html")
	return c.SendString(htmlContent)
}

// serveSwaggerJSON returns the OpenAPI document the docs package registers
// at init.
func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	swaggerData, err := swag.ReadDoc()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Failed to load Swagger documentation",
			Error: dto.ErrorDetail{
				Code: "SWAGGER_LOAD_ERROR",
			},
		})
	}

	c.Set("Content-Type", "application/json")
	return c.SendString(swaggerData)
}

// notFoundHandler answers anything that missed the route table.
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	requestID := c.Locals("requestid")

	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestID,
			},
		},
	})
}

// errorHandler is the app-level fallback for errors no handler rendered.
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	// fiber.*Error carries its own status
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error %d: %v", code, err)
	requestID := c.Locals("requestid")

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

// generateRequestID returns 8 random bytes hex encoded, used when a client
// did not send an X-Request-ID of its own.
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// GetRouteDocumentation enumerates the API surface for the docs endpoint.
func GetRouteDocumentation() []map[string]any {
	return []map[string]any{
		{
			"method":      "POST",
			"path":        "/api/v1/pricing/calculate",
			"description": "Calculate an itemized price for a print job",
			"parameters": map[string]any{
				"garment_id":      "string (required) - Garment identifier",
				"quantity":        "number (required) - Number of pieces, must be positive",
				"service_type":    "string (required) - screen_print|embroidery|dtg|vinyl",
				"print_locations": "array (required) - front|back|left_sleeve|right_sleeve|neck",
				"color_count":     "number (optional) - Ink colors, required for print services",
				"stitch_count":    "number (optional) - Stitches, required for embroidery",
				"customer_type":   "string (required) - standard|contract|wholesale|education",
				"is_rush":         "boolean (optional) - Rush order flag",
				"is_new_design":   "boolean (optional) - New design flag, selects the setup fee",
				"add_ons":         "array (optional) - Items of {type, quantity}",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/pricing/history",
			"description": "List recorded calculations newest first",
			"parameters": map[string]any{
				"limit":         "number (optional) - Page size, max 100 (default: 20)",
				"offset":        "number (optional) - Items to skip (default: 0)",
				"garment_id":    "string (optional) - Filter by garment",
				"service_type":  "string (optional) - Filter by service type",
				"customer_type": "string (optional) - Filter by customer type",
				"from":          "string (optional) - RFC3339 or YYYY-MM-DD lower bound",
				"to":            "string (optional) - RFC3339 or YYYY-MM-DD upper bound",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/pricing/history/export",
			"description": "Download the filtered history as an Excel file",
			"parameters": map[string]any{
				"garment_id":    "string (optional) - Filter by garment",
				"service_type":  "string (optional) - Filter by service type",
				"customer_type": "string (optional) - Filter by customer type",
				"from":          "string (optional) - RFC3339 or YYYY-MM-DD lower bound",
				"to":            "string (optional) - RFC3339 or YYYY-MM-DD upper bound",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/pricing/metrics",
			"description": "Engine counters: calculations, cache hit rates, latency, ruleset generation",
			"parameters":  map[string]any{},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/admin/rules",
			"description": "Create a pricing rule (admin, bearer token)",
			"parameters": map[string]any{
				"name":        "string (required) - Rule name",
				"conditions":  "object (required) - Match conditions",
				"effects":     "object (required) - Pricing effects",
				"priority":    "number (optional) - Higher wins on overlap",
				"change_note": "string (optional) - Audit note",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/admin/rules",
			"description": "List current rule versions (admin, bearer token)",
			"parameters": map[string]any{
				"page":         "number (optional) - Page number (default: 1)",
				"limit":        "number (optional) - Page size, max 100 (default: 20)",
				"orderby":      "string (optional) - newest|oldest (default: newest)",
				"name":         "string (optional) - Filter by name (contains)",
				"is_active":    "boolean (optional) - Filter by active state",
				"service_type": "string (optional) - Filter by service type condition",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/admin/rules/:rule_id",
			"description": "Get the current version of a rule (admin, bearer token)",
			"parameters":  map[string]any{"rule_id": "string (required) - Rule ID in URL path"},
		},
		{
			"method":      "PUT",
			"path":        "/api/v1/admin/rules/:rule_id",
			"description": "Update a rule; appends a new current version (admin, bearer token)",
			"parameters":  map[string]any{"rule_id": "string (required) - Rule ID in URL path"},
		},
		{
			"method":      "DELETE",
			"path":        "/api/v1/admin/rules/:rule_id",
			"description": "Deactivate a rule; it stops matching but keeps its history (admin, bearer token)",
			"parameters":  map[string]any{"rule_id": "string (required) - Rule ID in URL path"},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/admin/rules/:rule_id/rollback",
			"description": "Restore a previous version as a new current version (admin, bearer token)",
			"parameters": map[string]any{
				"rule_id":    "string (required) - Rule ID in URL path",
				"to_version": "number (required) - Version to restore",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/admin/rules/:rule_id/versions",
			"description": "List every version of a rule newest first (admin, bearer token)",
			"parameters":  map[string]any{"rule_id": "string (required) - Rule ID in URL path"},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/admin/cache/clear",
			"description": "Flush all cached calculation results (admin, bearer token)",
			"parameters":  map[string]any{},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/health",
			"description": "Liveness probe reporting the running version",
			"parameters":  map[string]any{},
		},
	}
}
