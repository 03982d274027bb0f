// Package core provides rupiah parsing and formatting utilities.
package core

import (
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var rupiahPrinter = message.NewPrinter(language.English)

// ParseDigits keeps only the ASCII digits of s and reads them as a
// base-10 integer.
//
// A blank string yields 0 with no error. A non-blank string with no
// digits yields 0 and ErrNoDigits. More digits than an int64 holds
// yields 0 and ErrValueOverflow.
//
// Examples:
//
//	ParseDigits("Rp 2.500.000") -> 2500000, nil
//	ParseDigits("2,000")        -> 2000, nil
//	ParseDigits("")             -> 0, nil
//	ParseDigits("n/a")          -> 0, ErrNoDigits
func ParseDigits(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	var v int64
	seen := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			continue
		}
		seen = true
		d := int64(c - '0')
		if v > (math.MaxInt64-d)/10 {
			return 0, ErrValueOverflow
		}
		v = v*10 + d
	}
	if !seen {
		return 0, ErrNoDigits
	}
	return v, nil
}

// MaxAssetValue is the largest acquisition value accepted for one asset
// (one quadrillion rupiah).
const MaxAssetValue int64 = 1_000_000_000_000_000

// AddValue returns a+b for non-negative values, saturating at math.MaxInt64.
func AddValue(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// FormatRupiah renders v with comma thousands separators and no decimals,
// e.g. "Rp 1,234,567".
func FormatRupiah(v int64) string {
	return rupiahPrinter.Sprintf("Rp %d", v)
}
