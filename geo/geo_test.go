package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomie_server/models"
)

var berlin = Point{Lat: 52.52, Lng: 13.405}

func profileAt(id string, p Point) *models.UserProfile {
	lat, lng := p.Lat, p.Lng
	return &models.UserProfile{
		UserID:    id,
		Latitude:  &lat,
		Longitude: &lng,
		Geohash:   Encode(p, models.GeohashPrecision),
	}
}

// rangeSource serves profiles whose geohash falls inside the requested bounds.
type rangeSource struct {
	docs  []*models.UserProfile
	calls int
}

func (s *rangeSource) QueryRange(_ context.Context, b Bounds, limit int) ([]*models.UserProfile, error) {
	s.calls++
	var out []*models.UserProfile
	for _, d := range s.docs {
		if d.Geohash >= b.Start && d.Geohash <= b.End {
			cp := *d
			out = append(out, &cp)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func inAnyBound(hash string, bounds []Bounds) bool {
	for _, b := range bounds {
		if hash >= b.Start && hash <= b.End {
			return true
		}
	}
	return false
}

func TestDistance(t *testing.T) {
	paris := Point{Lat: 48.8566, Lng: 2.3522}
	assert.InDelta(t, 878, Distance(berlin, paris), 5)
	assert.Equal(t, 0.0, Distance(berlin, berlin))
}

func TestQueryBounds_CoverEveryPointInRadius(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, tc := range []struct {
		center Point
		radius float64
	}{
		{berlin, 1},
		{berlin, 10},
		{Point{Lat: -33.87, Lng: 151.21}, 25},
		{Point{Lat: 0.01, Lng: 179.99}, 5},
	} {
		t.Run(fmt.Sprintf("%v/%vkm", tc.center, tc.radius), func(t *testing.T) {
			bounds := QueryBounds(tc.center, tc.radius)
			require.NotEmpty(t, bounds)
			assert.LessOrEqual(t, len(bounds), 9)

			deg := tc.radius / 100 * 1.5
			checked := 0
			for i := 0; i < 2000; i++ {
				p := Point{
					Lat: tc.center.Lat + (rng.Float64()*2-1)*deg,
					Lng: wrapLongitude(tc.center.Lng + (rng.Float64()*2-1)*deg*2),
				}
				if Distance(tc.center, p) > tc.radius {
					continue
				}
				checked++
				h := Encode(p, models.GeohashPrecision)
				assert.True(t, inAnyBound(h, bounds), "point %v (%s) not covered", p, h)
			}
			assert.Greater(t, checked, 100)
		})
	}
}

func TestQueryBounds_RadiusAcrossPole(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, tc := range []struct {
		center Point
		radius float64
	}{
		{Point{Lat: 89.5, Lng: 0}, 100},
		{Point{Lat: -89.9, Lng: 120}, 30},
		{Point{Lat: 85, Lng: -60}, 800},
		{Point{Lat: 10, Lng: 0}, 12000},
	} {
		t.Run(fmt.Sprintf("%v/%vkm", tc.center, tc.radius), func(t *testing.T) {
			bounds := QueryBounds(tc.center, tc.radius)
			require.NotEmpty(t, bounds)
			assert.LessOrEqual(t, len(bounds), 16)

			h := Encode(tc.center, models.GeohashPrecision)
			assert.True(t, h >= bounds[0].Start && h <= bounds[0].End, "center bucket first")

			latDeg := tc.radius / 110.574 * 1.05
			lo := math.Max(-90, tc.center.Lat-latDeg)
			hi := math.Min(90, tc.center.Lat+latDeg)

			checked := 0
			for i := 0; i < 5000; i++ {
				p := Point{Lat: lo + rng.Float64()*(hi-lo), Lng: rng.Float64()*360 - 180}
				if Distance(tc.center, p) > tc.radius {
					continue
				}
				checked++
				h := Encode(p, models.GeohashPrecision)
				assert.True(t, inAnyBound(h, bounds), "point %v (%s) not covered", p, h)
			}
			assert.Greater(t, checked, 50)
		})
	}
}

func TestQueryBounds_CenterBucketFirst(t *testing.T) {
	bounds := QueryBounds(berlin, 5)
	h := Encode(berlin, models.GeohashPrecision)
	assert.True(t, h >= bounds[0].Start && h <= bounds[0].End)
}

func TestRangeForHash_WrapsAtLastChar(t *testing.T) {
	b := rangeForHash("zz", 10)
	assert.Equal(t, Bounds{Start: "zz", End: "z~"}, b)

	short := rangeForHash("u", 15)
	assert.Equal(t, Bounds{Start: "u", End: "u~"}, short)
}

func TestSearch_FiltersByTrueDistance(t *testing.T) {
	near := profileAt("near", Point{Lat: 52.53, Lng: 13.41})
	edge := profileAt("edge", Point{Lat: 52.60, Lng: 13.405}) // ~8.9km north
	far := profileAt("far", Point{Lat: 52.75, Lng: 13.405})   // ~25km north
	noCoords := &models.UserProfile{UserID: "nocoords", Geohash: near.Geohash}

	src := &rangeSource{docs: []*models.UserProfile{far, edge, near, noCoords}}

	got, err := Search(context.Background(), src, berlin, 10, Options{PerBucketLimit: 50, MaxResults: 100})
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, p := range got {
		ids = append(ids, p.UserID)
		assert.LessOrEqual(t, p.DistanceKm, 10.0)
	}
	assert.Equal(t, []string{"near", "edge"}, ids)
}

func TestSearch_ShortCircuitsOnMaxResults(t *testing.T) {
	src := &rangeSource{docs: []*models.UserProfile{
		profileAt("a", berlin),
		profileAt("b", Point{Lat: 52.521, Lng: 13.406}),
	}}

	got, err := Search(context.Background(), src, berlin, 10, Options{PerBucketLimit: 10, MaxResults: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, src.calls)
}

func TestSearch_SourceError(t *testing.T) {
	src := SourceFunc(func(context.Context, Bounds, int) ([]*models.UserProfile, error) {
		return nil, errors.New("throttled")
	})
	_, err := Search(context.Background(), src, berlin, 5, Options{})
	assert.ErrorContains(t, err, "throttled")

	_, err = Search(context.Background(), src, berlin, 0, Options{})
	assert.Error(t, err)
}
