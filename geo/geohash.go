// Package geo turns a radius search into geohash range queries and filters
// their results by true great-circle distance.
package geo

import (
	"math"
	"strings"

	geohash "github.com/TomiHiltunen/geohash-golang"
)

const (
	base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

	bitsPerChar         = 5
	maxBitsPrecision    = 22 * bitsPerChar
	earthMeridionalCirc = 40007860.0 // meters
	metersPerDegreeLat  = 110574.0
	earthEqRadius       = 6378137.0 // meters
	earthE2             = 0.00669447819799
	epsilon             = 1e-12
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bounds is an inclusive [Start, End] range over geohash strings.
type Bounds struct {
	Start string
	End   string
}

// Encode returns the geohash of p with the given number of characters.
func Encode(p Point, precision int) string {
	return geohash.EncodeWithPrecision(p.Lat, p.Lng, precision)
}

// QueryBounds returns geohash ranges whose union covers every point within
// radiusKm of center. The center's own bucket comes first. A radius that
// reaches a pole is covered by coarse ranges spanning every longitude.
func QueryBounds(center Point, radiusKm float64) []Bounds {
	radius := radiusKm * 1000
	latDegrees := radius / metersPerDegreeLat
	if center.Lat+latDegrees >= 90 || center.Lat-latDegrees <= -90 {
		return polarBounds(center, latDegrees)
	}
	queryBits := int(math.Max(1, boundingBoxBits(center, radius)))
	precision := int(math.Ceil(float64(queryBits) / bitsPerChar))

	seen := make(map[Bounds]struct{}, 9)
	out := make([]Bounds, 0, 9)
	for _, p := range boundingBoxCoordinates(center, radius) {
		b := rangeForHash(Encode(p, precision), queryBits)
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	return out
}

// polarBounds covers the whole latitude band [center-latDegrees, center+latDegrees]
// clamped to the poles. Cells are at most 6 bits so a full ring of longitudes
// stays at 8 cells, and at least as tall as the band so it spans two rows at most.
func polarBounds(center Point, latDegrees float64) []Bounds {
	latNorth := math.Min(90, center.Lat+latDegrees)
	latSouth := math.Max(-90, center.Lat-latDegrees)

	bits := int(math.Min(6, 2*math.Floor(math.Log2(180/(latNorth-latSouth)))))
	if bits < 2 {
		return []Bounds{{Start: "0", End: "~"}}
	}
	precision := int(math.Ceil(float64(bits) / bitsPerChar))
	lngCells := 1 << (bits / 2)
	width := 360 / float64(lngCells)

	seen := make(map[Bounds]struct{}, 2*lngCells)
	out := make([]Bounds, 0, 2*lngCells)
	add := func(p Point) {
		b := rangeForHash(Encode(p, precision), bits)
		if _, ok := seen[b]; ok {
			return
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	add(center)
	for i := 0; i < lngCells; i++ {
		lng := -180 + width*(float64(i)+0.5)
		for _, lat := range []float64{latSouth, center.Lat, latNorth} {
			add(Point{Lat: lat, Lng: lng})
		}
	}
	return out
}

// rangeForHash widens hash to the range of every geohash sharing its first bits bits.
func rangeForHash(hash string, bits int) Bounds {
	precision := int(math.Ceil(float64(bits) / bitsPerChar))
	if len(hash) < precision {
		return Bounds{Start: hash, End: hash + "~"}
	}
	hash = hash[:precision]
	base := hash[:len(hash)-1]
	last := strings.IndexByte(base32, hash[len(hash)-1])

	significant := bits - len(base)*bitsPerChar
	unused := bitsPerChar - significant
	start := (last >> unused) << unused
	end := start + (1 << unused)
	if end > 31 {
		return Bounds{Start: base + string(base32[start]), End: base + "~"}
	}
	return Bounds{Start: base + string(base32[start]), End: base + string(base32[end])}
}

func boundingBoxBits(center Point, sizeMeters float64) float64 {
	latDelta := sizeMeters / metersPerDegreeLat
	latNorth := math.Min(90, center.Lat+latDelta)
	latSouth := math.Max(-90, center.Lat-latDelta)

	bitsLat := math.Floor(latitudeBits(sizeMeters)) * 2
	bitsLngNorth := math.Floor(longitudeBits(sizeMeters, latNorth))*2 - 1
	bitsLngSouth := math.Floor(longitudeBits(sizeMeters, latSouth))*2 - 1

	return math.Min(math.Min(bitsLat, bitsLngNorth), math.Min(bitsLngSouth, maxBitsPrecision))
}

func boundingBoxCoordinates(center Point, radiusMeters float64) []Point {
	latDegrees := radiusMeters / metersPerDegreeLat
	latNorth := math.Min(90, center.Lat+latDegrees)
	latSouth := math.Max(-90, center.Lat-latDegrees)

	lngDegs := math.Max(
		metersToLongitudeDegrees(radiusMeters, latNorth),
		metersToLongitudeDegrees(radiusMeters, latSouth),
	)

	pts := make([]Point, 0, 9)
	for _, lat := range []float64{center.Lat, latNorth, latSouth} {
		pts = append(pts,
			Point{lat, center.Lng},
			Point{lat, wrapLongitude(center.Lng - lngDegs)},
			Point{lat, wrapLongitude(center.Lng + lngDegs)},
		)
	}
	return pts
}

func latitudeBits(resolution float64) float64 {
	return math.Min(math.Log2(earthMeridionalCirc/2/resolution), maxBitsPrecision)
}

func longitudeBits(resolution, lat float64) float64 {
	degs := metersToLongitudeDegrees(resolution, lat)
	if math.Abs(degs) > 0.000001 {
		return math.Max(1, math.Log2(360/degs))
	}
	return 1
}

func metersToLongitudeDegrees(distance, lat float64) float64 {
	rad := lat * math.Pi / 180
	num := math.Cos(rad) * earthEqRadius * math.Pi / 180
	denom := 1 / math.Sqrt(1-earthE2*math.Sin(rad)*math.Sin(rad))
	delta := num * denom
	if delta < epsilon {
		if distance > 0 {
			return 360
		}
		return 0
	}
	return math.Min(360, distance/delta)
}

func wrapLongitude(lng float64) float64 {
	if lng <= 180 && lng >= -180 {
		return lng
	}
	adjusted := lng + 180
	if adjusted > 0 {
		return math.Mod(adjusted, 360) - 180
	}
	return 180 - math.Mod(-adjusted, 360)
}
