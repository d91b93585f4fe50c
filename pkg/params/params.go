// Package params parses common query parameters.
package params

import (
	"strconv"

	"github.com/google/uuid"
)

// Limit parses a limit value, using def when absent or invalid and capping at max.
func Limit(raw string, def, max int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// Offset parses a non-negative offset, defaulting to 0.
func Offset(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// OptionalUUID parses raw when present. ok is false only for a present but malformed value.
func OptionalUUID(raw string) (id *uuid.UUID, ok bool) {
	if raw == "" {
		return nil, true
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}

// Bool parses "1", "true" and friends; anything else is nil.
func Bool(raw string) *bool {
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &b
}
