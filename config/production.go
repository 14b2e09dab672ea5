// Package config loads the engine configuration from environment variables
// and enforces the production safety checks
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig is the full runtime configuration of the pricing engine
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	JWT        JWTConfig        `json:"jwt"`
	CostLookup CostLookupConfig `json:"cost_lookup"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	BodyLimit         int           `json:"body_limit"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
	CompressionLevel  int           `json:"compression_level"`
}

type SecurityConfig struct {
	// TLS/HTTPS
	TLSEnabled         bool   `json:"tls_enabled"`
	TLSCertFile        string `json:"tls_cert_file"`
	TLSKeyFile         string `json:"tls_key_file"`
	TLSMinVersion      string `json:"tls_min_version"`
	HSTSMaxAge         int    `json:"hsts_max_age"`
	HSTSIncludeSubDoms bool   `json:"hsts_include_subdomains"`
	HSTSPreload        bool   `json:"hsts_preload"`

	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per window
	AdminRateLimit  int           `json:"admin_rate_limit"`  // requests per window
	RateLimitWindow time.Duration `json:"rate_limit_window"`

	// Content Security
	CSPPolicy           string `json:"csp_policy"`
	XFrameOptions       string `json:"x_frame_options"`
	XContentTypeOptions string `json:"x_content_type_options"`
	XSSProtection       string `json:"xss_protection"`
	ReferrerPolicy      string `json:"referrer_policy"`
}

// JWTConfig configures admin token verification. The engine never issues
// tokens, it only checks ones minted by the platform's identity service.
type JWTConfig struct {
	Enabled    bool   `json:"enabled"`
	SecretKey  string `json:"secret_key"`
	PublicKey  string `json:"public_key"`   // RSA public key in PEM format
	UseRSAKeys bool   `json:"use_rsa_keys"` // Whether to verify with RSA instead of the secret key
	Issuer     string `json:"issuer"`
	Audience   string `json:"audience"`
	Algorithm  string `json:"algorithm"`
}

// CostLookupConfig configures the garment cost provider
type CostLookupConfig struct {
	Provider    string        `json:"provider"` // http, static
	BaseURL     string        `json:"base_url"`
	APIKey      string        `json:"api_key"`
	Timeout     time.Duration `json:"timeout"`
	StaticCosts string        `json:"static_costs"` // JSON object of garment id to unit cost, static provider only
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // json, text
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`

	// Access Logs
	EnableAccessLog bool   `json:"enable_access_log"`
	AccessLogPath   string `json:"access_log_path"`
}

type MetricsConfig struct {
	Enabled        bool          `json:"enabled"`
	PrometheusPath string        `json:"prometheus_path"`
	ReportInterval time.Duration `json:"report_interval"` // 0 disables the periodic snapshot log
}

type CacheConfig struct {
	Enabled         bool          `json:"enabled"`
	Provider        string        `json:"provider"` // redis, memory, none
	RedisURL        string        `json:"redis_url"`
	RedisDB         int           `json:"redis_db"`
	RedisPrefix     string        `json:"redis_prefix"`
	DefaultTTL      time.Duration `json:"default_ttl"`
	MaxMemory       int           `json:"max_memory"` // MB
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

type DeploymentConfig struct {
	// Domain Configuration
	Domain    string `json:"domain"`
	APIDomain string `json:"api_domain"`

	// Build Information
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// LoadProductionConfig reads the configuration from the environment (with a
// .env file as fallback) and validates it
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            envString("DB_HOST", "localhost"),
			Port:            envInt("DB_PORT", 5432),
			Name:            envString("DB_NAME", "postgres"),
			User:            envString("DB_USER", "postgres"),
			Password:        envString("DB_PASSWORD", ""),
			SSLMode:         envString("DB_SSL_MODE", "require"),
			MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: envDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: envDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    envBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   envDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:              envString("SERVER_HOST", "0.0.0.0"),
			Port:              envInt("SERVER_PORT", 8080),
			ReadTimeout:       envDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      envDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       envDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   envDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         envInt("SERVER_BODY_LIMIT", 1*1024*1024), // 1MB
			TrustedProxies:    envList("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       envString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: envBool("SERVER_ENABLE_COMPRESSION", true),
			CompressionLevel:  envInt("SERVER_COMPRESSION_LEVEL", 6),
		},
		Security: SecurityConfig{
			TLSEnabled:          envBool("TLS_ENABLED", false),
			TLSCertFile:         envString("TLS_CERT_FILE", ""),
			TLSKeyFile:          envString("TLS_KEY_FILE", ""),
			TLSMinVersion:       envString("TLS_MIN_VERSION", "1.3"),
			HSTSMaxAge:          envInt("HSTS_MAX_AGE", 31536000), // 1 year
			HSTSIncludeSubDoms:  envBool("HSTS_INCLUDE_SUBDOMAINS", true),
			HSTSPreload:         envBool("HSTS_PRELOAD", false),
			AllowedOrigins:      envList("CORS_ALLOWED_ORIGINS", []string{"https://admin.printshop-os.com", "https://app.printshop-os.com"}),
			AllowedMethods:      envList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:      envList("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}),
			AllowCredentials:    envBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:          envInt("CORS_MAX_AGE", 86400),
			GlobalRateLimit:     envInt("GLOBAL_RATE_LIMIT", 2000),
			AdminRateLimit:      envInt("ADMIN_RATE_LIMIT", 120),
			RateLimitWindow:     envDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			CSPPolicy:           envString("CSP_POLICY", "default-src 'self'"),
			XFrameOptions:       envString("X_FRAME_OPTIONS", "DENY"),
			XContentTypeOptions: envString("X_CONTENT_TYPE_OPTIONS", "nosniff"),
			XSSProtection:       envString("XSS_PROTECTION", "1; mode=block"),
			ReferrerPolicy:      envString("REFERRER_POLICY", "strict-origin-when-cross-origin"),
		},
		JWT: JWTConfig{
			Enabled:    envBool("JWT_ENABLED", true),
			SecretKey:  envString("JWT_SECRET_KEY", ""),
			PublicKey:  envString("JWT_PUBLIC_KEY", ""),
			UseRSAKeys: envBool("JWT_USE_RSA_KEYS", false),
			Issuer:     envString("JWT_ISSUER", "printshop-os"),
			Audience:   envString("JWT_AUDIENCE", "pricing-engine"),
			Algorithm:  envString("JWT_ALGORITHM", "HS256"),
		},
		CostLookup: CostLookupConfig{
			Provider:    envString("COST_LOOKUP_PROVIDER", "http"),
			BaseURL:     envString("COST_LOOKUP_BASE_URL", "http://localhost:8081"),
			APIKey:      envString("COST_LOOKUP_API_KEY", ""),
			Timeout:     envDuration("COST_LOOKUP_TIMEOUT", 50*time.Millisecond),
			StaticCosts: envString("COST_LOOKUP_STATIC_COSTS", ""),
		},
		Logging: LoggingConfig{
			Level:           envString("LOG_LEVEL", "info"),
			Format:          envString("LOG_FORMAT", "json"),
			Output:          envString("LOG_OUTPUT", "stdout"),
			FilePath:        envString("LOG_FILE_PATH", "/var/log/pricing-engine/app.log"),
			MaxSize:         envInt("LOG_MAX_SIZE", 100),
			MaxBackups:      envInt("LOG_MAX_BACKUPS", 10),
			MaxAge:          envInt("LOG_MAX_AGE", 30),
			Compress:        envBool("LOG_COMPRESS", true),
			EnableAccessLog: envBool("LOG_ENABLE_ACCESS", true),
			AccessLogPath:   envString("LOG_ACCESS_PATH", "/var/log/pricing-engine/access.log"),
		},
		Metrics: MetricsConfig{
			Enabled:        envBool("METRICS_ENABLED", true),
			PrometheusPath: envString("METRICS_PROMETHEUS_PATH", "/metrics"),
			ReportInterval: envDuration("METRICS_REPORT_INTERVAL", 5*time.Minute),
		},
		Cache: CacheConfig{
			Enabled:         envBool("CACHE_ENABLED", true),
			Provider:        envString("CACHE_PROVIDER", "redis"),
			RedisURL:        envString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:         envInt("CACHE_REDIS_DB", 0),
			RedisPrefix:     envString("CACHE_REDIS_PREFIX", "pricing:"),
			DefaultTTL:      envDuration("CACHE_DEFAULT_TTL", 5*time.Minute),
			MaxMemory:       envInt("CACHE_MAX_MEMORY", 256),
			CleanupInterval: envDuration("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		},
		Deployment: DeploymentConfig{
			Domain:      envString("DOMAIN", "printshop-os.com"),
			APIDomain:   envString("API_DOMAIN", "pricing.printshop-os.com"),
			Environment: envString("APP_ENV", "production"),
			Version:     envString("VERSION", "1.0.0"),
			CommitHash:  envString("COMMIT_HASH", "unknown"),
			BuildTime:   envString("BUILD_TIME", "unknown"),
		},
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile folds a .env file, when one exists in the working directory,
// into the process environment. Real environment variables win over file
// entries.
func loadEnvFile() error {
	content, err := os.ReadFile(".env")
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read .env file: %w", err)
	}

	for _, raw := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if q := value[0]; (q == '"' || q == '\'') && value[len(value)-1] == q {
				value = value[1 : len(value)-1]
			}
		}

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	return nil
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if parsed, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return parsed
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if parsed, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return parsed
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if parsed, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return parsed
	}
	return fallback
}

// envList splits a comma-separated variable, dropping empty entries.
func envList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var result []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}

// ValidateProductionConfig rejects configurations the engine cannot run
// with, collecting every problem before reporting.
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var problems []string
	complain := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	// Database
	if cfg.Database.Host == "" {
		complain("DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		complain("DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		complain("DB_NAME is required")
	}
	if cfg.Database.User == "" {
		complain("DB_USER is required")
	}
	if cfg.Database.Password == "" {
		complain("DB_PASSWORD is required")
	}

	// Server
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		complain("SERVER_PORT must be between 1 and 65535")
	}
	for _, timeout := range []struct {
		name  string
		value time.Duration
	}{
		{"SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout},
	} {
		if timeout.value <= 0 {
			complain("%s must be positive", timeout.name)
		}
	}

	// Admin token guard
	if cfg.JWT.Enabled {
		if cfg.JWT.UseRSAKeys {
			if cfg.JWT.PublicKey == "" {
				complain("JWT_PUBLIC_KEY is required when JWT_USE_RSA_KEYS is set")
			}
		} else {
			if cfg.JWT.SecretKey == "" {
				complain("JWT_SECRET_KEY is required when JWT is enabled")
			} else if len(cfg.JWT.SecretKey) < 32 {
				complain("JWT_SECRET_KEY must be at least 32 characters long")
			}
		}
		if cfg.JWT.Issuer == "" {
			complain("JWT_ISSUER is required")
		}
		if cfg.JWT.Audience == "" {
			complain("JWT_AUDIENCE is required")
		}
	}

	// Cost lookup
	switch cfg.CostLookup.Provider {
	case "http":
		if cfg.CostLookup.BaseURL == "" {
			complain("COST_LOOKUP_BASE_URL is required for the http cost provider")
		}
	case "static":
	default:
		complain("COST_LOOKUP_PROVIDER must be one of: http, static")
	}
	if cfg.CostLookup.Timeout <= 0 {
		complain("COST_LOOKUP_TIMEOUT must be positive")
	}

	// TLS
	if cfg.Security.TLSEnabled {
		if cfg.Security.TLSCertFile == "" {
			complain("TLS_CERT_FILE is required when TLS is enabled")
		}
		if cfg.Security.TLSKeyFile == "" {
			complain("TLS_KEY_FILE is required when TLS is enabled")
		}
	}

	// Logging
	levels := []string{"debug", "info", "warn", "error"}
	if cfg.Logging.Level != "" && !slices.Contains(levels, cfg.Logging.Level) {
		complain("LOG_LEVEL must be one of: %v", levels)
	}

	// Metrics
	if cfg.Metrics.ReportInterval < 0 {
		complain("METRICS_REPORT_INTERVAL cannot be negative")
	}

	// Cache
	if cfg.Cache.Enabled {
		switch cfg.Cache.Provider {
		case "redis":
			if cfg.Cache.RedisURL == "" {
				complain("CACHE_REDIS_URL is required when cache is enabled with redis provider")
			}
		case "memory", "none":
		default:
			complain("CACHE_PROVIDER must be one of: redis, memory, none")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}

	return nil
}
