package geo

import (
	"context"
	"fmt"
	"sort"

	"roomie_server/models"
)

// Source runs one geohash range query.
type Source interface {
	QueryRange(ctx context.Context, b Bounds, limit int) ([]*models.UserProfile, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, b Bounds, limit int) ([]*models.UserProfile, error)

func (f SourceFunc) QueryRange(ctx context.Context, b Bounds, limit int) ([]*models.UserProfile, error) {
	return f(ctx, b, limit)
}

type Options struct {
	// PerBucketLimit caps the documents fetched by a single range query.
	PerBucketLimit int
	// MaxResults caps the number of in-radius results. Once reached no further
	// bucket is queried, so a nearer document in a later bucket can be missed.
	MaxResults int
}

// Search returns profiles within radiusKm of center, nearest first, with
// DistanceKm filled in. Profiles without coordinates are never returned.
func Search(ctx context.Context, src Source, center Point, radiusKm float64, opts Options) ([]*models.UserProfile, error) {
	if radiusKm <= 0 {
		return nil, fmt.Errorf("radius must be positive, got %v", radiusKm)
	}

	seen := make(map[string]struct{})
	var out []*models.UserProfile

	for _, b := range QueryBounds(center, radiusKm) {
		if opts.MaxResults > 0 && len(out) >= opts.MaxResults {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		docs, err := src.QueryRange(ctx, b, opts.PerBucketLimit)
		if err != nil {
			return nil, fmt.Errorf("query bucket [%s, %s]: %w", b.Start, b.End, err)
		}

		for _, p := range docs {
			if p == nil || !p.HasLocation() {
				continue
			}
			if _, dup := seen[p.UserID]; dup {
				continue
			}
			d := Distance(center, Point{Lat: *p.Latitude, Lng: *p.Longitude})
			if d > radiusKm {
				continue
			}
			seen[p.UserID] = struct{}{}
			p.DistanceKm = d
			out = append(out, p)
			if opts.MaxResults > 0 && len(out) >= opts.MaxResults {
				break
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out, nil
}
