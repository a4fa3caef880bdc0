package util

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ProductTimeLayout is the product metadata timestamp format: ISO-8601 with
// fractional seconds and an explicit UTC marker, e.g. 2023-06-01T02:15:30.123Z.
const ProductTimeLayout = "2006-01-02T15:04:05.999999999Z"

var productTimeRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d{1,9})?Z$`)

// IsProductTime checks if a string matches the product timestamp format.
func IsProductTime(s string) bool {
	return productTimeRegex.MatchString(strings.TrimSpace(s))
}

// ISOToEpochMS converts a product timestamp to Unix epoch milliseconds.
// Sub-millisecond digits are truncated.
func ISOToEpochMS(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if !IsProductTime(trimmed) {
		return 0, fmt.Errorf("timestamp %q is not in YYYY-MM-DDTHH:MM:SS[.fff]Z form", s)
	}
	t, err := time.ParseInLocation(ProductTimeLayout, trimmed, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("failed to parse product time %q: %w", s, err)
	}
	return t.UnixMilli(), nil
}

// EpochMSToTime is the inverse of ISOToEpochMS, in UTC.
func EpochMSToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
