package domain

import (
	"fmt"
	"math"
)

// Currency identifies one of the two corridor currencies.
type Currency string

const (
	CurrencyNGN Currency = "NGN"
	CurrencyCNY Currency = "CNY"
)

// MajorToMinor converts a float64 major-unit amount (naira or yuan) to
// int64 minor units (kobo or fen). It validates that the input has at
// most 2 decimal places and returns an error if more precision is
// provided. Uses math.Round after multiplying by 100 to handle
// floating-point representation issues.
func MajorToMinor(f float64) (int64, error) {
	// Multiply by 1000 to check for a third decimal place.
	// Round to avoid floating-point artifacts (e.g., 1.10 * 1000 = 1099.9999...).
	scaled := math.Round(f * 1000)
	if math.Mod(scaled, 10) != 0 {
		return 0, fmt.Errorf("monetary values must have at most 2 decimal places")
	}

	minor := math.Round(f * 100)
	return int64(minor), nil
}

// MinorToMajor converts an int64 minor-unit amount to a float64
// major-unit amount.
func MinorToMajor(m int64) float64 {
	return float64(m) / 100.0
}
