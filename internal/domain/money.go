package domain

import (
	"fmt"
	"math"
)

// All prices and quantities inside the core are int64 minor units so
// that arithmetic is exact and replay is bit-identical across runtimes.
// Floating point exists only at the HTTP edge, converted here.

// ToMinorUnits converts a float64 major-unit amount to int64 minor
// units (two decimal places). It returns an error if the input carries
// more precision than minor units can represent. Uses math.Round after
// scaling to absorb floating-point representation noise.
func ToMinorUnits(f float64) (int64, error) {
	// Scale by 1000 to expose a third decimal place.
	scaled := math.Round(f * 1000)
	if math.Mod(scaled, 10) != 0 {
		return 0, fmt.Errorf("amounts must have at most 2 decimal places")
	}
	return int64(math.Round(f * 100)), nil
}

// FromMinorUnits converts int64 minor units back to a float64 major-unit
// amount for presentation.
func FromMinorUnits(u int64) float64 {
	return float64(u) / 100.0
}
