package services

import (
	"context"
	"errors"

	"roomie_server/logging"
	"roomie_server/models"
	"roomie_server/store"
)

var errGone = errors.New("document no longer exists")

// Triggers are the handlers that keep denormalized data in step after
// writes: match snapshots, unread counters and stored images.
type Triggers struct {
	Store  store.DocumentStore
	S3     *S3Service
	logger logging.Logger
}

func NewTriggers(s store.DocumentStore, s3 *S3Service, logger logging.Logger) *Triggers {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Triggers{Store: s, S3: s3, logger: logger}
}

// Register subscribes every trigger to bus.
func (t *Triggers) Register(bus *EventBus) {
	bus.Subscribe(EventProfileUpdated, "profile-sync", t.ProfileSync)
	bus.Subscribe(EventMessageCreated, "unread-increment", t.UnreadIncrement)
	bus.Subscribe(EventUserDeleted, "account-cleanup", t.AccountCleanup)
}

// updateMatch applies fn to the match inside a transaction. A match deleted
// in the meantime is skipped.
func (t *Triggers) updateMatch(ctx context.Context, matchID string, fn func(m *models.Match)) error {
	err := store.Update(ctx, t.Store, matchKey(matchID), func(item store.Item) (store.Item, error) {
		if item == nil {
			return nil, errGone
		}
		var m models.Match
		if err := store.Unmarshal(item, &m); err != nil {
			return nil, err
		}
		fn(&m)
		return store.Marshal(m)
	})
	if errors.Is(err, errGone) {
		return nil
	}
	return err
}

// ProfileSync copies the updated profile's snapshot into every match of the user.
func (t *Triggers) ProfileSync(ctx context.Context, e Event) error {
	if e.Profile == nil {
		return nil
	}
	snap := e.Profile.Snapshot()

	items, err := t.Store.Query(ctx, matchesQuery(e.UserID))
	if err != nil {
		return err
	}
	matches, err := decodeMatches(items)
	if err != nil {
		return err
	}

	for _, m := range matches {
		err := t.updateMatch(ctx, m.MatchID, func(m *models.Match) {
			if m.Profiles == nil {
				m.Profiles = map[string]models.Snapshot{}
			}
			m.Profiles[e.UserID] = snap
		})
		if err != nil {
			return err
		}
	}
	t.logger.Debug(ctx, "profile synced", "userId", e.UserID, "matches", len(matches))
	return nil
}

// UnreadIncrement bumps the recipient's unread counter for a new message.
func (t *Triggers) UnreadIncrement(ctx context.Context, e Event) error {
	msg := e.Message
	if msg == nil {
		return nil
	}
	return t.updateMatch(ctx, msg.MatchID, func(m *models.Match) {
		recipient := m.Other(msg.SenderID)
		if recipient == "" {
			return
		}
		if m.Unread == nil {
			m.Unread = map[string]int{}
		}
		if m.Read == nil {
			m.Read = map[string]bool{}
		}
		m.Unread[recipient]++
		m.Read[recipient] = false
		if msg.CreatedAt > m.LastActivity {
			m.LastActivity = msg.CreatedAt
		}
	})
}

// AccountCleanup deletes every stored object of a deleted user.
func (t *Triggers) AccountCleanup(ctx context.Context, e Event) error {
	if t.S3 == nil || e.UserID == "" {
		return nil
	}
	_, err := t.S3.DeleteByPrefix(ctx, UserPrefix(e.UserID))
	return err
}
