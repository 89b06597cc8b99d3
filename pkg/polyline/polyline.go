// Package polyline encodes and decodes Google encoded polylines as orb line strings.
// The algorithm is documented at: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// ErrTruncated indicates the encoded string ends in the middle of a value or coordinate pair.
var ErrTruncated = errors.New("polyline: truncated input")

// DefaultPrecision is the number of decimal places used by Google and OSRM "polyline" geometries.
const DefaultPrecision = 5

// Decode decodes a precision 5 polyline into a line string of [lon, lat] points.
func Decode(encoded string) (orb.LineString, error) {
	return DecodePrecision(encoded, DefaultPrecision)
}

// DecodePrecision decodes a polyline encoded with the given number of decimal places.
func DecodePrecision(encoded string, precision int) (orb.LineString, error) {
	if encoded == "" {
		return nil, nil
	}

	factor := math.Pow10(precision)
	var ls orb.LineString
	index, lat, lon := 0, 0, 0

	for index < len(encoded) {
		latDelta, next, ok := decodeValue(encoded, index)
		if !ok {
			return nil, ErrTruncated
		}
		lonDelta, next, ok := decodeValue(encoded, next)
		if !ok {
			return nil, ErrTruncated
		}
		index = next
		lat += latDelta
		lon += lonDelta

		ls = append(ls, orb.Point{float64(lon) / factor, float64(lat) / factor})
	}

	return ls, nil
}

// decodeValue decodes one signed value starting at index. ok is false when the
// input ends before the value's terminating chunk.
func decodeValue(encoded string, index int) (value, next int, ok bool) {
	shift, result := 0, 0

	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			if result&1 != 0 {
				return ^(result >> 1), index, true
			}
			return result >> 1, index, true
		}
	}

	return 0, index, false
}

// Encode encodes a line string as a precision 5 polyline.
func Encode(ls orb.LineString) string {
	return EncodePrecision(ls, DefaultPrecision)
}

// EncodePrecision encodes a line string with the given number of decimal places.
func EncodePrecision(ls orb.LineString, precision int) string {
	if len(ls) == 0 {
		return ""
	}

	factor := math.Pow10(precision)
	buf := make([]byte, 0, len(ls)*4)
	prevLat, prevLon := 0, 0

	for _, p := range ls {
		lat := int(math.Round(p.Lat() * factor))
		lon := int(math.Round(p.Lon() * factor))

		buf = encodeValue(buf, lat-prevLat)
		buf = encodeValue(buf, lon-prevLon)

		prevLat, prevLon = lat, lon
	}

	return string(buf)
}

func encodeValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}

// Length returns the haversine length of the line string in meters.
func Length(ls orb.LineString) float64 {
	return geo.LengthHaversine(ls)
}
