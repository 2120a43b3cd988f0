// Package utils provides small, generic helpers for parsing request and
// command parameters. They carry no domain knowledge.
package utils

import (
	"errors"
	"strconv"
	"strings"
)

// ErrEmptyParam is returned by ParseInt64 for a blank input.
var ErrEmptyParam = errors.New("empty parameter")

// AtoiDefault converts s to an int, returning def when s is empty or not a
// valid integer. Surrounding whitespace is not trimmed.
//
// Example:
//
//	n := utils.AtoiDefault("12", 24) // 12
//	n = utils.AtoiDefault("", 24)    // 24
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ParseInt64 parses a trimmed base-10 identifier such as a chat or user id.
// Telegram group ids are negative, so the sign is accepted.
func ParseInt64(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmptyParam
	}
	return strconv.ParseInt(s, 10, 64)
}

// Clamp bounds n to [lo, hi].
func Clamp(n, lo, hi int) int {
	return min(max(n, lo), hi)
}
