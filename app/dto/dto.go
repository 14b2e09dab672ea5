// Package dto defines the wire-format request and response structures of the
// pricing API
package dto

// APIResponse is the envelope every endpoint answers with. Data carries the
// operation payload on success, Error carries an ErrorDetail on failure.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty" validate:"omitempty"`
	Error   any    `json:"error,omitempty" validate:"omitempty"`
}

// ErrorDetail pairs a machine-readable error code with optional details such
// as collected field violations or the failing calculation stage.
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty" validate:"omitempty"`
}

// PaginationInfo is the page-numbered pagination block used by rule listings.
type PaginationInfo struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// HistoryPaginationInfo is the offset pagination block used by the
// calculation history listing.
type HistoryPaginationInfo struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}
