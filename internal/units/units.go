package units

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRange indicates a value outside the domain a conversion or
// operation accepts. Callers check it with errors.Is.
var ErrInvalidRange = errors.New("value out of range")

// NativeMax is the top of the linear device brightness scale. Hue fixtures
// quantize dimming into 254 steps, so one native unit is roughly 0.39%.
const NativeMax = 254

// MinStepPercent is the smallest brightness change a fixture can represent,
// one native unit (1/254) rounded to a tenth of a percent. It doubles as the
// lowest non-off brightness level.
const MinStepPercent = 0.4

// PercentToNative converts a 0-100 percentage to the 0-254 device scale.
// Input is clamped into [0,100] first.
func PercentToNative(percent float64) uint8 {
	p := ClampPercent(percent)
	return uint8(math.Round(p / 100 * NativeMax))
}

// NativeToPercent converts a 0-254 device value back to a percentage.
// The round trip PercentToNative -> NativeToPercent recovers the original
// percent within one native unit (lossy by design).
func NativeToPercent(native uint8) float64 {
	if native > NativeMax {
		native = NativeMax
	}
	return float64(native) / NativeMax * 100
}

// ClampPercent clamps a brightness percentage into [0,100].
func ClampPercent(percent float64) float64 {
	return Clamp(percent, 0, 100)
}

// Clamp clamps v into [lo,hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// MirekRange is a fixture's advertised color temperature range in mirek.
// Min maps to the coolest (highest kelvin) setting, Max to the warmest.
type MirekRange struct {
	Min int
	Max int
}

// DefaultMirekRange covers the full gamut of current Hue CT fixtures
// (6535K down to 2000K). Used when a fixture does not advertise a schema,
// e.g. grouped targets.
var DefaultMirekRange = MirekRange{Min: 153, Max: 500}

// KelvinMin returns the warmest kelvin value representable in the range.
func (r MirekRange) KelvinMin() int { return mirekKelvin(r.Max) }

// KelvinMax returns the coolest kelvin value representable in the range.
func (r MirekRange) KelvinMax() int { return mirekKelvin(r.Min) }

func (r MirekRange) containsMirek(m int) bool {
	return m >= r.Min && m <= r.Max
}

// mirekKelvin is the reciprocal conversion shared by both directions.
func mirekKelvin(v int) int {
	return int(math.Round(1_000_000 / float64(v)))
}

// KelvinToMirek converts a kelvin color temperature to mirek, failing with
// ErrInvalidRange when the result falls outside the fixture's advertised
// range. Callers that prefer clamping over rejection use ClampKelvin first.
func KelvinToMirek(kelvin int, r MirekRange) (int, error) {
	if kelvin <= 0 {
		return 0, fmt.Errorf("color temperature %dK: %w", kelvin, ErrInvalidRange)
	}
	m := mirekKelvin(kelvin)
	if !r.containsMirek(m) {
		return 0, fmt.Errorf("color temperature %dK (%d mirek) outside %d-%dK: %w",
			kelvin, m, r.KelvinMin(), r.KelvinMax(), ErrInvalidRange)
	}
	return m, nil
}

// MirekToKelvin converts a mirek value to kelvin, failing with
// ErrInvalidRange outside the fixture's advertised range.
func MirekToKelvin(mirek int, r MirekRange) (int, error) {
	if mirek <= 0 || !r.containsMirek(mirek) {
		return 0, fmt.Errorf("%d mirek outside %d-%d: %w", mirek, r.Min, r.Max, ErrInvalidRange)
	}
	return mirekKelvin(mirek), nil
}

// ClampKelvin clamps a kelvin value into the fixture's representable range.
func ClampKelvin(kelvin int, r MirekRange) int {
	if kelvin < r.KelvinMin() {
		return r.KelvinMin()
	}
	if kelvin > r.KelvinMax() {
		return r.KelvinMax()
	}
	return kelvin
}
