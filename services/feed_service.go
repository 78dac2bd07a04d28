package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"roomie_server/apperrors"
	"roomie_server/config"
	"roomie_server/feed"
	"roomie_server/geo"
	"roomie_server/logging"
	"roomie_server/models"
	"roomie_server/store"
)

// Session is the process-local feed state of one signed-in user. It is
// dropped on logout.
type Session struct {
	UserID   string
	Seen     *feed.SeenCache
	State    *feed.State
	Rotation feed.Rotation

	fetching atomic.Bool
}

func newSession(uid string) *Session {
	return &Session{UserID: uid, Seen: feed.NewSeenCache(), State: feed.NewState()}
}

// FeedPage is the session's whole feed after a fetch. Retry is set when the
// fetch failed and the client should offer to try again.
type FeedPage struct {
	Items []models.FeedItem `json:"items"`
	Retry bool              `json:"retry"`
}

type SwipeAction string

const (
	SwipeLike SwipeAction = "like"
	SwipePass SwipeAction = "pass"
)

// SwipeResult reports the outcome of a swipe. Confirmed is false when the
// interaction could not be recorded and the item went back to the feed.
type SwipeResult struct {
	Confirmed bool        `json:"confirmed"`
	Like      *LikeResult `json:"like,omitempty"`
}

type FeedService struct {
	Store        store.DocumentStore
	Profiles     *UserProfileService
	Interactions *InteractionService
	cfg          config.FeedConfig
	logger       logging.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewFeedService(s store.DocumentStore, profiles *UserProfileService, interactions *InteractionService, cfg config.FeedConfig, logger logging.Logger) *FeedService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &FeedService{
		Store:        s,
		Profiles:     profiles,
		Interactions: interactions,
		cfg:          cfg,
		logger:       logger,
		sessions:     map[string]*Session{},
	}
}

// Session returns uid's session, creating it on first use.
func (fs *FeedService) Session(uid string) *Session {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	s, ok := fs.sessions[uid]
	if !ok {
		s = newSession(uid)
		fs.sessions[uid] = s
	}
	return s
}

// Logout discards uid's session.
func (fs *FeedService) Logout(uid string) {
	fs.mu.Lock()
	delete(fs.sessions, uid)
	fs.mu.Unlock()
}

// candidateSource queries the role/geohash index for profiles of role.
func (fs *FeedService) candidateSource(role models.Role) geo.Source {
	return geo.SourceFunc(func(ctx context.Context, b geo.Bounds, limit int) ([]*models.UserProfile, error) {
		items, err := fs.Store.Query(ctx, store.Query{
			Table:          models.UserProfilesTable,
			Index:          models.RoleGeohashIndex,
			PartitionField: "role",
			PartitionValue: string(role),
			RangeField:     "geohash",
			RangeStart:     b.Start,
			RangeEnd:       b.End,
			Limit:          limit,
		})
		if err != nil {
			return nil, err
		}
		out := make([]*models.UserProfile, 0, len(items))
		for _, item := range items {
			var p models.UserProfile
			if err := store.Unmarshal(item, &p); err != nil {
				fs.logger.Debug(ctx, "skipping malformed profile", "error", err)
				continue
			}
			out = append(out, &p)
		}
		return out, nil
	})
}

func (fs *FeedService) degraded(ctx context.Context, sess *Session, msg string, err error) *FeedPage {
	fs.logger.Warn(ctx, msg, "userId", sess.UserID, "error", err)
	return &FeedPage{Items: sess.State.Items(), Retry: true}
}

// Fetch refills uid's feed with nearby candidates and returns the whole
// feed. Only one fetch per session runs at a time; a concurrent call gets
// ErrFetchInFlight. Search failures degrade to the current feed with Retry set.
func (fs *FeedService) Fetch(ctx context.Context, uid string, radiusKm float64) (*FeedPage, error) {
	if uid == "" {
		return nil, apperrors.ErrUnauthorized
	}
	sess := fs.Session(uid)
	if !sess.fetching.CompareAndSwap(false, true) {
		return nil, apperrors.ErrFetchInFlight
	}
	defer sess.fetching.Store(false)

	viewer, err := fs.Profiles.Get(ctx, uid)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return fs.degraded(ctx, sess, "viewer profile read failed", err), nil
	}
	if !viewer.HasLocation() {
		return nil, apperrors.Validation("set a location before browsing")
	}
	if !viewer.Role.Valid() {
		return nil, apperrors.Validation("choose a role before browsing")
	}
	if radiusKm <= 0 {
		radiusKm = fs.cfg.RadiusKm
	}

	center := geo.Point{Lat: *viewer.Latitude, Lng: *viewer.Longitude}
	candidates, err := geo.Search(ctx, fs.candidateSource(viewer.Role.Counterpart()), center, radiusKm, geo.Options{
		PerBucketLimit: fs.cfg.PerBucketLimit,
		MaxResults:     fs.cfg.MaxResults,
	})
	if err != nil {
		return fs.degraded(ctx, sess, "nearby search failed", err), nil
	}

	history, err := fs.Interactions.History(ctx, uid, now().Add(-fs.cfg.HistoryWindow))
	if err != nil {
		return fs.degraded(ctx, sess, "interaction history failed", err), nil
	}

	filtered := feed.Filter(candidates, feed.Exclusions{
		ViewerID:   uid,
		ViewerRole: viewer.Role,
		Blocked:    viewer.Blocked,
		History:    history,
		Seen:       sess.Seen,
	})
	if dropped := len(candidates) - len(filtered); dropped > 0 {
		fs.logger.Debug(ctx, "candidates excluded", "userId", uid, "dropped", dropped)
	}

	page := feed.Compose(filtered, feed.Options{
		Stride:    fs.cfg.AdStride,
		MinItems:  fs.cfg.MinItems,
		Sponsored: fs.cfg.Sponsored[viewer.Role],
		House:     fs.cfg.House,
	}, &sess.Rotation)
	page = dropRepeatedHouse(page, sess.State.Items())

	for _, c := range filtered {
		sess.Seen.Add(c.UserID)
	}
	added := sess.State.Merge(page)

	fs.logger.Info(ctx, "feed fetched", "userId", uid, "candidates", len(candidates), "added", added)
	return &FeedPage{Items: sess.State.Items()}, nil
}

// dropRepeatedHouse keeps a single house entry in the feed.
func dropRepeatedHouse(page, current []models.FeedItem) []models.FeedItem {
	hasHouse := false
	for _, it := range current {
		if it.IsHouse {
			hasHouse = true
			break
		}
	}
	if !hasHouse {
		return page
	}
	out := page[:0:0]
	for _, it := range page {
		if !it.IsHouse {
			out = append(out, it)
		}
	}
	return out
}

// Items returns uid's current feed without fetching.
func (fs *FeedService) Items(uid string) []models.FeedItem {
	return fs.Session(uid).State.Items()
}

// Swipe acts on the feed item with itemID. The item leaves the feed at
// once; if the like or pass cannot be recorded it is put back at the head
// of the feed and Confirmed is false.
func (fs *FeedService) Swipe(ctx context.Context, uid, itemID string, action SwipeAction) (*SwipeResult, error) {
	if uid == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if action != SwipeLike && action != SwipePass {
		return nil, apperrors.Validation("action must be 'like' or 'pass'")
	}

	sess := fs.Session(uid)
	item, ok := sess.State.BeginSwipe(itemID)
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "item is not in the feed", http.StatusNotFound)
	}
	if item.IsAd || item.Profile == nil {
		sess.State.Confirm(itemID)
		return &SwipeResult{Confirmed: true}, nil
	}

	var (
		like *LikeResult
		err  error
	)
	switch action {
	case SwipeLike:
		like, err = fs.Interactions.Like(ctx, uid, item.Profile.UserID)
	case SwipePass:
		err = fs.Interactions.Pass(ctx, uid, item.Profile.UserID)
	}

	if err != nil {
		if errors.Is(err, apperrors.ErrInvariant) {
			sess.State.Confirm(itemID)
			return nil, err
		}
		fs.logger.Warn(ctx, "swipe not recorded, requeued", "userId", uid, "target", item.Profile.UserID, "action", action, "error", err)
		sess.State.Fail(itemID)
		return &SwipeResult{Confirmed: false}, nil
	}

	sess.State.Confirm(itemID)
	return &SwipeResult{Confirmed: true, Like: like}, nil
}
