package feed

import (
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"roomie_server/models"
)

const (
	adIDPrefix    = "ad_"
	houseIDPrefix = "house_"
)

// DefaultHouse is used when Options.House is nil.
var DefaultHouse = models.Sponsored{
	Title: "You're all caught up. Widen your search radius to see more people.",
}

type Options struct {
	// Stride is the number of real candidates between two sponsored entries.
	// Zero disables sponsored entries.
	Stride int
	// MinItems is the size below which a house entry is appended.
	MinItems  int
	Sponsored []models.Sponsored
	House     *models.Sponsored
}

// Rotation is a session's round-robin position in its sponsored list.
type Rotation struct {
	n atomic.Uint64
}

// Next returns the next entry of list, wrapping around.
func (r *Rotation) Next(list []models.Sponsored) models.Sponsored {
	i := r.n.Add(1) - 1
	return list[i%uint64(len(list))]
}

// Reset starts the rotation over.
func (r *Rotation) Reset() {
	r.n.Store(0)
}

// IsSynthetic reports whether id was generated for a sponsored or house entry.
func IsSynthetic(id string) bool {
	return strings.HasPrefix(id, adIDPrefix) || strings.HasPrefix(id, houseIDPrefix)
}

// Compose builds a feed page from candidates, inserting one sponsored entry
// after every opts.Stride candidates and a house entry when the page would
// have fewer than opts.MinItems entries.
func Compose(candidates []*models.UserProfile, opts Options, rot *Rotation) []models.FeedItem {
	ads := opts.Stride > 0 && len(opts.Sponsored) > 0 && rot != nil

	items := make([]models.FeedItem, 0, len(candidates)+len(candidates)/max(opts.Stride, 1)+1)
	for i, c := range candidates {
		items = append(items, models.FeedItem{ID: c.UserID, Profile: c})

		if ads && (i+1)%opts.Stride == 0 {
			s := rot.Next(opts.Sponsored)
			items = append(items, models.FeedItem{
				ID:        adIDPrefix + uuid.NewString(),
				Sponsored: &s,
				IsAd:      true,
			})
		}
	}

	if len(items) < opts.MinItems {
		house := DefaultHouse
		if opts.House != nil {
			house = *opts.House
		}
		items = append(items, models.FeedItem{
			ID:        houseIDPrefix + uuid.NewString(),
			Sponsored: &house,
			IsAd:      true,
			IsHouse:   true,
		})
	}
	return items
}
