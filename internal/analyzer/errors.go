package analyzer

import "errors"

// Upstream failure classes. Every error returned by OpenAI wraps exactly
// one of these so callers can classify it with errors.Is.
var (
	// ErrUpstreamRateLimited is returned when the provider answered 429.
	ErrUpstreamRateLimited = errors.New("upstream rate limited")

	// ErrUpstreamUnreachable covers transport failures and timeouts.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")

	// ErrUpstreamProtocol covers any other API error or malformed response.
	ErrUpstreamProtocol = errors.New("upstream protocol error")
)
