// Package handlers defines the HTTP error codes used across all endpoints.
//
// Codes are lowercase snake_case. Generic codes mirror HTTP status
// semantics; domain codes describe failures a status alone cannot convey.
// Clients are expected to branch on these codes, never on messages.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeAnalysisFailed = "analysis_failed"
	ErrCodeIngestFailed   = "ingest_failed"
	ErrCodeListFailed     = "list_failed"
)
