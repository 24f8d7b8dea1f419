package layout

import (
	"strconv"
	"strings"
)

// This file defines unit-safe types and helpers for lengths in template files.
// Everything on a certificate is measured in pixels of the background image;
// physical units are converted at the CSS reference resolution of 96 px per inch.

// Unit represents the original unit of a length value as written in a template.
type Unit int

const (
	UnitNone    Unit = iota // bare numbers, read as pixels
	UnitPX                  // pixels
	UnitPT                  // points
	UnitMM                  // millimeters
	UnitIN                  // inches
	UnitPercent             // percentage of a reference length
)

// Conversion constants between px, pt and mm.
const (
	PxPerInch = 96.0
	PtToPx    = PxPerInch / 72.0
	PxToPt    = 1.0 / PtToPx
	PxToMm    = 25.4 / PxPerInch
	MmToPx    = 1.0 / PxToMm
)

// UnitToString returns a short string for a Unit value.
func UnitToString(u Unit) string {
	switch u {
	case UnitPX:
		return "px"
	case UnitPT:
		return "pt"
	case UnitMM:
		return "mm"
	case UnitIN:
		return "in"
	case UnitPercent:
		return "%"
	default:
		return ""
	}
}

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// ToPX converts the length to pixels. Percentages are taken of reference.
func (l Length) ToPX(reference float64) float64 {
	switch l.Unit {
	case UnitPT:
		return l.Value * PtToPx
	case UnitMM:
		return l.Value * MmToPx
	case UnitIN:
		return l.Value * PxPerInch
	case UnitPercent:
		return reference * l.Value / 100
	default:
		return l.Value
	}
}

// Percent returns the value as a percentage; bare numbers are already percentages.
func (l Length) Percent(reference float64) float64 {
	switch l.Unit {
	case UnitPercent, UnitNone:
		return l.Value
	default:
		if reference == 0 {
			return 0
		}
		return l.ToPX(reference) / reference * 100
	}
}

// ParseLength parses a template length string preserving its unit.
// The second return value is false when the numeric part is not a number.
func ParseLength(value string) (Length, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Length{}, false
	}
	unit := UnitNone
	num := v
	for _, suf := range []struct {
		s string
		u Unit
	}{{"px", UnitPX}, {"pt", UnitPT}, {"mm", UnitMM}, {"in", UnitIN}, {"%", UnitPercent}} {
		if strings.HasSuffix(v, suf.s) {
			unit = suf.u
			num = strings.TrimSpace(strings.TrimSuffix(v, suf.s))
			break
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Length{}, false
	}
	return Length{Value: f, Unit: unit}, true
}
