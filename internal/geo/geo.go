// Package geo holds the distance, naming and area-code rules used to bucket
// users into proximity groups.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"nightcircle/internal/models"
)

// EarthRadius is the sphere radius used for all distance checks, in meters.
const EarthRadius = 6371000.0

// FallbackArea is used when no area name could be resolved.
const FallbackArea = "LOC"

// Distance returns the haversine distance between a and b in meters.
func Distance(a, b models.Point) float64 {
	toRad := func(v float64) float64 { return v * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Within reports whether b lies inside radius meters of a. The bound is inclusive.
func Within(a, b models.Point, radius float64) bool {
	return Distance(a, b) <= radius
}

// InTier reports whether p qualifies for a group of tier anchored at anchor.
func InTier(anchor, p models.Point, tier models.Tier) bool {
	return Within(anchor, p, tier.Radius())
}

// FallbackPostalCode derives a stable 6-digit pseudo postal code from
// coordinates quantized to 1/1000 degree:
//
//	(|floor(lat*1000 + lng*1000)| mod 900000) + 100000
//
// Group names are built from it, so it must never change for a given input.
func FallbackPostalCode(lat, lng float64) string {
	q := math.Floor(lat*1000 + lng*1000)
	n := int64(math.Abs(q))%900000 + 100000
	return strconv.FormatInt(n, 10)
}

// NormalizeArea keeps the first three ASCII letters, upper-cased.
func NormalizeArea(area string) string {
	var b strings.Builder
	for _, r := range area {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
		if b.Len() == 3 {
			break
		}
	}
	if b.Len() == 0 {
		return FallbackArea
	}
	return b.String()
}

// NormalizePostalCode strips whitespace and truncates long codes to 6 characters.
func NormalizePostalCode(code string) string {
	code = strings.Join(strings.Fields(code), "")
	if len(code) > 6 {
		code = code[:6]
	}
	return code
}

// GroupName is the canonical unique name for (area, postal code, tier).
func GroupName(area, postalCode string, tier models.Tier) string {
	return fmt.Sprintf("%s-%s-%s", area, postalCode, tier)
}
