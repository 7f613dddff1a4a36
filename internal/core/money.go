// Package core holds the domain types shared by the budget, chat and store layers.
//
// Amounts coming from the budgeting API are integers in milliunits (1/1000 of the
// currency unit). They are converted once, at the client boundary, and carried as
// float64 major units afterwards; display formatting lives here too.
package core

import (
	"math"

	"github.com/dustin/go-humanize"
)

// MilliunitsPerUnit is the scale of the upstream integer currency representation.
const MilliunitsPerUnit = 1000

// FromMilliunits converts an upstream milliunit amount into major currency units.
func FromMilliunits(m int64) float64 {
	return float64(m) / MilliunitsPerUnit
}

// FormatCurrency renders an amount as "$1,234.56" ("-$12.00" when negative).
func FormatCurrency(v float64) string {
	return formatWithPattern(v, "#,###.##")
}

// FormatWhole renders an amount rounded to whole units, e.g. "$1,235".
func FormatWhole(v float64) string {
	return formatWithPattern(math.Round(v), "#,###.")
}

func formatWithPattern(v float64, pattern string) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + "$" + humanize.FormatFloat(pattern, v)
}
