package effect

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/dygy/gape-select/internal/errors"
)

// Field names as they appear in form values and presets
const (
	FieldDelayTime = "delay_time"
	FieldGain      = "gain"
	FieldThreshold = "threshold"
	FieldRatio     = "ratio"
	FieldLow       = "low"
	FieldMid       = "mid"
	FieldHigh      = "high"
)

// Field describes one effect parameter: its accepted range and how it maps
// into an output byte.
type Field struct {
	Name  string
	Label string
	Unit  string // suffix tolerated after the number, matched case-insensitively
	Min   float64
	Max   float64
	Slot  int // index into Output, 1..3
	scale func(float64) float64
}

// Threshold is shifted by +200 so the lower bound keeps the byte non-negative.
var effectFields = map[Effect][]Field{
	Delay: {
		{Name: FieldDelayTime, Label: "Amount of delay", Unit: "s", Min: 0, Max: 0.5, Slot: 1,
			scale: func(v float64) float64 { return v * 2 * 255 }},
		{Name: FieldGain, Label: "Gain", Min: 0, Max: 1, Slot: 2,
			scale: func(v float64) float64 { return v * 255 }},
	},
	Compressor: {
		{Name: FieldThreshold, Label: "Threshold", Unit: "dB", Min: -200, Max: 6, Slot: 1,
			scale: func(v float64) float64 { return v + 200 }},
		{Name: FieldRatio, Label: "Ratio", Unit: ":1", Min: 1, Max: 254, Slot: 2,
			scale: func(v float64) float64 { return v }},
	},
	Equalizer: {
		{Name: FieldLow, Label: "Low Band", Unit: "dB", Min: -10, Max: 10, Slot: 1,
			scale: func(v float64) float64 { return v + 10 }},
		{Name: FieldMid, Label: "Mid Band", Unit: "dB", Min: -10, Max: 10, Slot: 2,
			scale: func(v float64) float64 { return v + 10 }},
		{Name: FieldHigh, Label: "High Band", Unit: "dB", Min: -10, Max: 10, Slot: 3,
			scale: func(v float64) float64 { return v + 10 }},
	},
}

// Parse converts raw form text into a value within the field's bounds
func (f Field) Parse(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if f.Unit != "" && len(s) >= len(f.Unit) && strings.EqualFold(s[len(s)-len(f.Unit):], f.Unit) {
		s = strings.TrimSpace(s[:len(s)-len(f.Unit)])
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || isHex(s) || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, apperrors.NewValidationError(f.Name, raw, "not a number")
	}
	if v < f.Min || v > f.Max {
		return 0, apperrors.NewValidationError(f.Name, raw, f.boundReason())
	}
	return v, nil
}

// Encode maps an in-range value to its output byte
func (f Field) Encode(v float64) uint8 {
	return uint8(math.Round(f.scale(v)))
}

// isHex reports a 0x prefix, which ParseFloat accepts but form input must not
func isHex(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func (f Field) boundReason() string {
	unit := f.Unit
	if strings.HasPrefix(unit, ":") {
		unit = ""
	}
	return fmt.Sprintf("must be between %g and %g%s", f.Min, f.Max, unit)
}
