package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"roomie_server/apperrors"
	"roomie_server/logging"
	"roomie_server/models"
	"roomie_server/store"
)

// LikeResult reports whether a like completed a match.
type LikeResult struct {
	IsMatch     bool             `json:"isMatch"`
	MatchID     string           `json:"matchId,omitempty"`
	Counterpart *models.Snapshot `json:"counterpart,omitempty"`
}

type InteractionService struct {
	Store  store.DocumentStore
	Watch  store.WatchOptions
	logger logging.Logger
}

func NewInteractionService(s store.DocumentStore, watch store.WatchOptions, logger logging.Logger) *InteractionService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &InteractionService{Store: s, Watch: watch, logger: logger}
}

// MatchKey is the id of the match between a and b, independent of order.
func MatchKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

func getInteraction(ctx context.Context, tx store.Tx, from, to string) (*models.Interaction, error) {
	item, err := tx.Get(ctx, interactionKey(from, to))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var in models.Interaction
	if err := store.Unmarshal(item, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// getSnapshot reads uid's profile and returns its snapshot. A missing
// profile yields a snapshot carrying only the id.
func getSnapshot(ctx context.Context, tx store.Tx, uid string) (models.Snapshot, error) {
	item, err := tx.Get(ctx, profileKey(uid))
	if errors.Is(err, store.ErrNotFound) {
		return models.Snapshot{UserID: uid}, nil
	}
	if err != nil {
		return models.Snapshot{}, err
	}
	var p models.UserProfile
	if err := store.Unmarshal(item, &p); err != nil {
		return models.Snapshot{}, err
	}
	return p.Snapshot(), nil
}

func putDoc(tx store.Tx, key store.Key, v any) error {
	item, err := store.Marshal(v)
	if err != nil {
		return err
	}
	tx.Put(key, item)
	return nil
}

func sameUsers(users []string, a, b string) bool {
	if len(users) != 2 {
		return false
	}
	return (users[0] == a && users[1] == b) || (users[0] == b && users[1] == a)
}

// Like records from's like of to. When to already likes from, the match is
// created in the same transaction that records the like, so concurrent
// likes in both directions produce exactly one match.
func (s *InteractionService) Like(ctx context.Context, from, to string) (*LikeResult, error) {
	if err := requirePair(from, to); err != nil {
		return nil, err
	}

	var result LikeResult
	err := s.Store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		result = LikeResult{}

		reverse, err := getInteraction(ctx, tx, to, from)
		if err != nil {
			return err
		}
		sender, err := getSnapshot(ctx, tx, from)
		if err != nil {
			return err
		}

		ts := timestamp(now())
		mutual := reverse != nil && reverse.Type == models.InteractionTypeLike

		forward := models.Interaction{
			PK:        models.InteractionPK(from),
			SK:        models.InteractionSK(to),
			FromUID:   from,
			ToUID:     to,
			Type:      models.InteractionTypeLike,
			CreatedAt: ts,
			Sender:    &sender,
			IsMatch:   mutual,
		}
		if err := putDoc(tx, interactionKey(from, to), forward); err != nil {
			return err
		}
		if !mutual {
			return nil
		}

		reverse.IsMatch = true
		if err := putDoc(tx, interactionKey(to, from), reverse); err != nil {
			return err
		}

		counterpart, err := getSnapshot(ctx, tx, to)
		if err != nil {
			return err
		}

		id := MatchKey(from, to)
		item, err := tx.Get(ctx, matchKey(id))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		var match models.Match
		if item != nil {
			if err := store.Unmarshal(item, &match); err != nil {
				return err
			}
			if !sameUsers(match.Users, from, to) {
				s.logger.Error(ctx, "match document does not belong to its pair",
					"matchId", id, "users", match.Users, "from", from, "to", to)
				return apperrors.ErrInvariant
			}
			if match.Profiles == nil {
				match.Profiles = map[string]models.Snapshot{}
			}
		} else {
			users := []string{from, to}
			sort.Strings(users)
			match = models.Match{
				MatchID:      id,
				Users:        users,
				Profiles:     map[string]models.Snapshot{},
				CreatedAt:    ts,
				LastActivity: ts,
				Unread:       map[string]int{from: 0, to: 0},
				Read:         map[string]bool{from: true, to: true},
			}
		}
		match.Profiles[from] = sender
		match.Profiles[to] = counterpart
		if err := putDoc(tx, matchKey(id), match); err != nil {
			return err
		}

		result = LikeResult{IsMatch: true, MatchID: id, Counterpart: &counterpart}
		return nil
	})
	if err != nil {
		return nil, storeError(err, "like")
	}

	if result.IsMatch {
		s.logger.Info(ctx, "match created", "matchId", result.MatchID, "from", from, "to", to)
	}
	return &result, nil
}

// Pass overwrites from's interaction with to. It never creates a match.
func (s *InteractionService) Pass(ctx context.Context, from, to string) error {
	if err := requirePair(from, to); err != nil {
		return err
	}
	item, err := store.Marshal(models.Interaction{
		PK:        models.InteractionPK(from),
		SK:        models.InteractionSK(to),
		FromUID:   from,
		ToUID:     to,
		Type:      models.InteractionTypePass,
		CreatedAt: timestamp(now()),
	})
	if err != nil {
		return err
	}
	return storeError(s.Store.Put(ctx, interactionKey(from, to), item), "pass")
}

// Unmatch removes the match between a and b, both interactions and the
// match's messages.
func (s *InteractionService) Unmatch(ctx context.Context, a, b string) error {
	if err := requirePair(a, b); err != nil {
		return err
	}
	id := MatchKey(a, b)

	keys := []store.Key{matchKey(id), interactionKey(a, b), interactionKey(b, a)}
	msgs, err := s.Store.Query(ctx, store.Query{
		Table:          models.MessagesTable,
		PartitionField: "matchId",
		PartitionValue: id,
	})
	if err != nil {
		return storeError(err, "unmatch")
	}
	for _, m := range msgs {
		var msg models.Message
		if err := store.Unmarshal(m, &msg); err != nil {
			return err
		}
		keys = append(keys, store.Key{Table: models.MessagesTable, PK: id, SK: msg.SK})
	}

	if err := s.Store.BatchDelete(ctx, keys); err != nil {
		return storeError(err, "unmatch")
	}
	s.logger.Info(ctx, "unmatched", "matchId", id, "messages", len(msgs))
	return nil
}

func incomingLikesQuery(uid string) store.Query {
	return store.Query{
		Table:          models.InteractionsTable,
		Index:          IncomingLikesIndex,
		PartitionField: "toUid",
		PartitionValue: uid,
		RangeField:     "createdAt",
		Descending:     true,
		Filters: []store.Filter{
			{Field: "type", Op: store.OpEq, Value: models.InteractionTypeLike},
			{Field: "isMatch", Op: store.OpEq, Value: false},
		},
	}
}

func decodeIncomingLikes(items []store.Item) ([]models.Interaction, error) {
	likes := make([]models.Interaction, 0, len(items))
	if err := store.UnmarshalList(items, &likes); err != nil {
		return nil, err
	}
	for i := range likes {
		if !likes[i].IsRevealed {
			likes[i].Sender = nil
		}
	}
	return likes, nil
}

// IncomingLikes lists unmatched likes directed at uid, newest first. The
// sender snapshot is only included once uid has revealed it.
func (s *InteractionService) IncomingLikes(ctx context.Context, uid string) ([]models.Interaction, error) {
	if uid == "" {
		return nil, apperrors.ErrUnauthorized
	}
	items, err := s.Store.Query(ctx, incomingLikesQuery(uid))
	if err != nil {
		return nil, storeError(err, "incoming likes")
	}
	return decodeIncomingLikes(items)
}

func (s *InteractionService) WatchIncomingLikes(ctx context.Context, uid string) *store.Subscription[[]models.Interaction] {
	opts := s.Watch
	opts.Table = models.InteractionsTable
	return store.Watch(ctx, s.Store, opts,
		func(ctx context.Context) ([]store.Item, error) {
			return s.Store.Query(ctx, incomingLikesQuery(uid))
		},
		decodeIncomingLikes)
}

// Reveal exposes the snapshot of liker on viewer's incoming like.
func (s *InteractionService) Reveal(ctx context.Context, viewer, liker string) (*models.Interaction, error) {
	if err := requirePair(viewer, liker); err != nil {
		return nil, err
	}
	var out models.Interaction
	err := store.Update(ctx, s.Store, interactionKey(liker, viewer), func(item store.Item) (store.Item, error) {
		if item == nil {
			return nil, store.ErrNotFound
		}
		if err := store.Unmarshal(item, &out); err != nil {
			return nil, err
		}
		if out.Type != models.InteractionTypeLike {
			return nil, store.ErrNotFound
		}
		out.IsRevealed = true
		return store.Marshal(out)
	})
	if err != nil {
		return nil, storeError(err, "reveal")
	}
	return &out, nil
}

// History returns the ids uid liked or passed since the given time. It
// runs one query per interaction type.
func (s *InteractionService) History(ctx context.Context, uid string, since time.Time) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	for _, typ := range []string{models.InteractionTypeLike, models.InteractionTypePass} {
		items, err := s.Store.Query(ctx, store.Query{
			Table:          models.InteractionsTable,
			PartitionField: "PK",
			PartitionValue: models.InteractionPK(uid),
			Filters: []store.Filter{
				{Field: "type", Op: store.OpEq, Value: typ},
				{Field: "createdAt", Op: store.OpGte, Value: timestamp(since)},
			},
		})
		if err != nil {
			return nil, storeError(err, "interaction history")
		}
		for _, item := range items {
			var in models.Interaction
			if err := store.Unmarshal(item, &in); err != nil {
				s.logger.Debug(ctx, "skipping malformed interaction", "uid", uid, "error", err)
				continue
			}
			out[in.ToUID] = struct{}{}
		}
	}
	return out, nil
}

// outgoing lists every interaction uid has made.
func (s *InteractionService) outgoing(ctx context.Context, uid string) ([]models.Interaction, error) {
	items, err := s.Store.Query(ctx, store.Query{
		Table:          models.InteractionsTable,
		PartitionField: "PK",
		PartitionValue: models.InteractionPK(uid),
	})
	if err != nil {
		return nil, err
	}
	var out []models.Interaction
	if err := store.UnmarshalList(items, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// incoming lists every interaction directed at uid.
func (s *InteractionService) incoming(ctx context.Context, uid string) ([]models.Interaction, error) {
	items, err := s.Store.Query(ctx, store.Query{
		Table:          models.InteractionsTable,
		Index:          IncomingLikesIndex,
		PartitionField: "toUid",
		PartitionValue: uid,
	})
	if err != nil {
		return nil, err
	}
	var out []models.Interaction
	if err := store.UnmarshalList(items, &out); err != nil {
		return nil, err
	}
	return out, nil
}
