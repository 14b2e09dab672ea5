package utils

import (
	"time"
)

// Cache constants
const (
	// CalculationCacheTTL is the default time-to-live for cached calculation results (5 minutes)
	CalculationCacheTTL = 5 * time.Minute

	// CalculationCachePrefix is the key prefix for cached calculation results
	CalculationCachePrefix = "pricing:calc:"

	// CacheHealthInterval is the default cadence for the cache health monitor (30 seconds)
	CacheHealthInterval = 30 * time.Second
)

// Calculation constants
const (
	// CostLookupTimeout bounds the external garment cost lookup (50 milliseconds)
	CostLookupTimeout = 50 * time.Millisecond

	// DecimalScale is the minimum number of fractional digits carried through
	// intermediate pipeline arithmetic
	DecimalScale = 4

	// MoneyScale is the number of fractional digits on terminal prices and
	// persisted line totals
	MoneyScale = 2

	// StitchBlockSize is the stitch count unit for embroidery pricing
	StitchBlockSize = 1000
)

// Pagination constants
const (
	// DefaultPageSize is the page size used when a list request omits one
	DefaultPageSize = 20

	// MaxPageSize caps page sizes on all list endpoints
	MaxPageSize = 100
)

const (
	// CORSMaxAge caps preflight caching at 24 hours
	CORSMaxAge = 86400
)

// ContextKey is the type for request-scoped context values set by handlers
// and read by flows
type ContextKey string

// Context keys for request-scoped values
const (
	RequestIDKey    ContextKey = "X-Request-ID"
	UserAgentKey    ContextKey = "User-Agent"
	IPAddressKey    ContextKey = "ip_address"
	EndpointKey     ContextKey = "endpoint"
	TimeoutKey      ContextKey = "timeout"
	CancelFuncKey   ContextKey = "cancel_func"
	AdminSubjectKey ContextKey = "admin_subject"
)
