// Package money implements exact minor-unit (cent) arithmetic for wallet
// amounts. All balances and charges are int64 cents; floating point is only
// accepted at the legacy-import boundary.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	// MinAmountMinor is the smallest amount an operator may enter (0.01).
	MinAmountMinor int64 = 1
	// MaxAmountMinor is the largest amount an operator may enter (100000.00).
	MaxAmountMinor int64 = 10_000_000
)

var (
	ErrAmountFormat = errors.New("invalid_amount_format")
	ErrAmountRange  = errors.New("amount_out_of_range")
)

// ParseAmountMinor parses a user-entered decimal amount ("150", "1.50",
// "1,5") into minor units. Comma and period are both accepted as the decimal
// separator; at most two fractional digits are allowed. The result must lie
// in [MinAmountMinor, MaxAmountMinor].
func ParseAmountMinor(raw string) (int64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if s == "" {
		return 0, ErrAmountFormat
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" && frac == "" {
		return 0, ErrAmountFormat
	}
	if len(frac) > 2 {
		return 0, ErrAmountFormat
	}

	var minor int64
	for _, r := range whole {
		if r < '0' || r > '9' {
			return 0, ErrAmountFormat
		}
		minor = minor*10 + int64(r-'0')
		if minor > MaxAmountMinor {
			return 0, ErrAmountRange
		}
	}
	minor *= 100

	scale := int64(10)
	for _, r := range frac {
		if r < '0' || r > '9' {
			return 0, ErrAmountFormat
		}
		minor += int64(r-'0') * scale
		scale /= 10
	}

	if minor < MinAmountMinor || minor > MaxAmountMinor {
		return 0, ErrAmountRange
	}
	return minor, nil
}

// FormatMinor renders minor units as a plain two-decimal string ("150.00").
func FormatMinor(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// RoundMajorToMinor converts a floating major-unit amount (legacy JSON wallet
// values) into minor units, rounding half away from zero.
func RoundMajorToMinor(major float64) int64 {
	return int64(math.Round(major * 100))
}
