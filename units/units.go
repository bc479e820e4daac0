package units

import (
	"math"
	"strconv"
)

// PXPerMM is the CSS reference pixel density (96 dpi) expressed per millimetre.
const PXPerMM = 3.779527559

// PXPerPT converts typographic points to CSS pixels.
const PXPerPT = 96.0 / 72.0

// MMToPX converts millimetres to pixels.
func MMToPX(mm float64) float64 {
	return mm * PXPerMM
}

// PXToMM converts pixels to millimetres.
func PXToMM(px float64) float64 {
	return px / PXPerMM
}

// PTToPX converts points to pixels.
func PTToPX(pt float64) float64 {
	return pt * PXPerPT
}

// FormatPX renders a length for an SVG attribute: two decimals at most,
// no trailing zeros, and never "-0".
func FormatPX(v float64) string {
	r := math.Round(v*100) / 100
	if r == 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return "0"
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}
