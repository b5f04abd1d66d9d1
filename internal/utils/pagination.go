// Package utils provides small, generic helper functions used by the HTTP
// layer to read query parameters. They carry no domain logic.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Page reads a 1-based page number. Missing, malformed or non-positive
// values select page 1.
//
//	utils.Page("3")  // 3
//	utils.Page("")   // 1
//	utils.Page("-2") // 1
func Page(s string) int {
	if n := AtoiDefault(strings.TrimSpace(s), 1); n > 0 {
		return n
	}
	return 1
}

// ParseID reads a positive numeric id. It reports false for blank,
// malformed, zero or negative input.
func ParseID(s string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 0)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}
