package services

import (
	"context"
	"sort"

	"roomie_server/apperrors"
	"roomie_server/logging"
	"roomie_server/models"
	"roomie_server/store"
)

type MatchService struct {
	Store  store.DocumentStore
	Watch  store.WatchOptions
	logger logging.Logger
}

func NewMatchService(s store.DocumentStore, watch store.WatchOptions, logger logging.Logger) *MatchService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &MatchService{Store: s, Watch: watch, logger: logger}
}

func matchesQuery(uid string) store.Query {
	return store.Query{
		Table:   models.MatchesTable,
		Filters: []store.Filter{{Field: "users", Op: store.OpContains, Value: uid}},
	}
}

// decodeMatches returns matches ordered by lastActivity, most recent first.
func decodeMatches(items []store.Item) ([]models.Match, error) {
	matches := make([]models.Match, 0, len(items))
	if err := store.UnmarshalList(items, &matches); err != nil {
		return nil, err
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].LastActivity == matches[j].LastActivity {
			return matches[i].MatchID < matches[j].MatchID
		}
		return matches[i].LastActivity > matches[j].LastActivity
	})
	return matches, nil
}

// List returns uid's matches, most recently active first.
func (s *MatchService) List(ctx context.Context, uid string) ([]models.Match, error) {
	if uid == "" {
		return nil, apperrors.ErrUnauthorized
	}
	items, err := s.Store.Query(ctx, matchesQuery(uid))
	if err != nil {
		return nil, storeError(err, "list matches")
	}
	return decodeMatches(items)
}

// Get returns the match if uid is one of its members.
func (s *MatchService) Get(ctx context.Context, matchID, uid string) (*models.Match, error) {
	item, err := s.Store.Get(ctx, matchKey(matchID))
	if err != nil {
		return nil, storeError(err, "get match")
	}
	var m models.Match
	if err := store.Unmarshal(item, &m); err != nil {
		return nil, err
	}
	if !m.HasMember(uid) {
		return nil, apperrors.ErrForbidden
	}
	return &m, nil
}

func (s *MatchService) WatchMatches(ctx context.Context, uid string) *store.Subscription[[]models.Match] {
	opts := s.Watch
	opts.Table = models.MatchesTable
	return store.Watch(ctx, s.Store, opts,
		func(ctx context.Context) ([]store.Item, error) {
			return s.Store.Query(ctx, matchesQuery(uid))
		},
		decodeMatches)
}
