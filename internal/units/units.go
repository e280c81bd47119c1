// Package units converts byte counts and byte rates to and from
// human-readable strings.
package units

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	kb = 1 << 10
	mb = 1 << 20
	gb = 1 << 30
	tb = 1 << 40
)

// FormatSize returns n as a human-readable byte count.
// Units are selected in base 1024, with two decimals above 1 KB.
func FormatSize(n uint64) string {
	switch {
	case n >= tb:
		return fmt.Sprintf("%.2f TB", float64(n)/tb)
	case n >= gb:
		return fmt.Sprintf("%.2f GB", float64(n)/gb)
	case n >= mb:
		return fmt.Sprintf("%.2f MB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%.2f KB", float64(n)/kb)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// FormatRate returns n as a human-readable byte rate.
func FormatRate(n uint64) string {
	switch {
	case n >= gb:
		return fmt.Sprintf("%.2f GB/s", float64(n)/gb)
	case n >= mb:
		return fmt.Sprintf("%.2f MB/s", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%.2f KB/s", float64(n)/kb)
	default:
		return fmt.Sprintf("%d B/s", n)
	}
}

// ParseRate reconstructs an approximate byte rate from a string produced by
// FormatRate. The result is lossy because display strings are rounded; it is
// meant for ordering comparisons only, never for arithmetic.
func ParseRate(s string) uint64 {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) != 2 {
		return 0
	}
	num, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	switch strings.ToUpper(fields[1]) {
	case "GB/S":
		return uint64(num * gb)
	case "MB/S":
		return uint64(num * mb)
	case "KB/S":
		return uint64(num * kb)
	case "B/S":
		return uint64(num)
	default:
		return 0
	}
}

// ParseLimit converts user input like "5m", "500k", "1.5 GB/s" or "unlimited"
// to a rate in bytes per second. Zero means unlimited.
func ParseLimit(input string) (uint64, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" || input == "0" || input == "unlimited" {
		return 0, nil
	}
	var numPart, unitPart strings.Builder
	inUnit := false
	for _, r := range input {
		switch {
		case (r >= '0' && r <= '9') || r == '.':
			if !inUnit {
				numPart.WriteRune(r)
			}
		case r >= 'a' && r <= 'z':
			inUnit = true
			unitPart.WriteRune(r)
		}
	}
	num, err := strconv.ParseFloat(numPart.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rate limit %q", input)
	}
	var multiplier float64 = 1
	switch unit := unitPart.String(); {
	case strings.HasPrefix(unit, "g"):
		multiplier = gb
	case strings.HasPrefix(unit, "m"):
		multiplier = mb
	case strings.HasPrefix(unit, "k"):
		multiplier = kb
	}
	return uint64(num * multiplier), nil
}

// FormatLimit returns n as a human-readable rate limit, with zero shown as
// unlimited.
func FormatLimit(n uint64) string {
	if n == 0 {
		return "Unlimited"
	}
	return FormatRate(n)
}
