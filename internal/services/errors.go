// Package services implements the analysis orchestration core of the bot:
// the debounce gate, the content-addressed result cache and the
// AnalysisService that decides between serving a cached answer, refusing a
// request as rate limited, or calling the external analyzer.
//
// This file centralizes the service-level errors. Translation into HTTP
// statuses or chat replies is left to the transport layers.
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/tbourn/go-chat-digest/internal/analyzer"
)

// NothingToAnalyze is the canned text returned for an empty chat window.
const NothingToAnalyze = "No messages to analyze for the requested period."

// Failure reasons carried by AnalysisFailedError.
const (
	ReasonUpstreamRateLimited = "upstream_rate_limited"
	ReasonUpstreamUnreachable = "upstream_unreachable"
	ReasonUpstreamProtocol    = "upstream_protocol_error"
)

var (
	// ErrRateLimited is matched by every *RateLimitedError.
	ErrRateLimited = errors.New("rate limited")

	// ErrAnalysisFailed is matched by every *AnalysisFailedError.
	ErrAnalysisFailed = errors.New("analysis failed")

	// ErrEmptyQuestion is returned when a question has no text.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrInvalidWindow is returned for a non-positive analysis window.
	ErrInvalidWindow = errors.New("analysis window must be positive")

	// ErrUnknownOperation is returned for an unsupported analysis type.
	ErrUnknownOperation = errors.New("unknown analysis operation")

	// ErrMessageNotFound is returned when a reaction targets an unknown message.
	ErrMessageNotFound = errors.New("message not found")
)

// RateLimitedError reports that the debounce gate refused Operation.
// Remaining is how long the caller has to wait.
type RateLimitedError struct {
	Operation string
	Remaining time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s is rate limited, retry in %s", e.Operation, e.Remaining.Round(time.Second))
}

// Is reports whether target is ErrRateLimited.
func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// RetryAfterSeconds rounds Remaining up to whole seconds, at least 1.
func (e *RateLimitedError) RetryAfterSeconds() int {
	s := int((e.Remaining + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

// AnalysisFailedError reports that the analyzer call for Operation failed.
type AnalysisFailedError struct {
	Operation string
	Reason    string
	Err       error
}

func (e *AnalysisFailedError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Operation, e.Reason, e.Err)
}

func (e *AnalysisFailedError) Unwrap() error { return e.Err }

// Is reports whether target is ErrAnalysisFailed.
func (e *AnalysisFailedError) Is(target error) bool { return target == ErrAnalysisFailed }

// classifyFailure maps an analyzer error onto a stable reason.
func classifyFailure(err error) string {
	switch {
	case errors.Is(err, analyzer.ErrUpstreamRateLimited):
		return ReasonUpstreamRateLimited
	case errors.Is(err, analyzer.ErrUpstreamUnreachable):
		return ReasonUpstreamUnreachable
	default:
		return ReasonUpstreamProtocol
	}
}
