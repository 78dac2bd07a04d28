package services

import (
	"context"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"roomie_server/apperrors"
	"roomie_server/logging"
	"roomie_server/models"
	"roomie_server/store"
)

const (
	MaxMessageLength    = 2000
	DefaultMessageLimit = 50
)

type ChatService struct {
	Store  store.DocumentStore
	Events *EventBus
	Watch  store.WatchOptions
	logger logging.Logger
}

func NewChatService(s store.DocumentStore, events *EventBus, watch store.WatchOptions, logger logging.Logger) *ChatService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ChatService{Store: s, Events: events, Watch: watch, logger: logger}
}

func readMatch(ctx context.Context, tx store.Tx, matchID string) (*models.Match, error) {
	item, err := tx.Get(ctx, matchKey(matchID))
	if err != nil {
		return nil, err
	}
	var m models.Match
	if err := store.Unmarshal(item, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// nextTimestamp returns t, or the smallest time after last when t is not
// after it.
func nextTimestamp(t time.Time, last string) time.Time {
	if last == "" {
		return t
	}
	prev, err := time.Parse(models.TimeLayout, last)
	if err != nil || t.After(prev) {
		return t
	}
	return prev.Add(time.Nanosecond)
}

// SendMessage appends a message to the match and updates the match's last
// message fields in the same transaction. Blank text is rejected before
// anything is read.
func (s *ChatService) SendMessage(ctx context.Context, matchID, sender, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, apperrors.Validation("message is too long")
	}
	if matchID == "" || sender == "" {
		return nil, apperrors.Validation("match id and sender are required")
	}

	var msg models.Message
	err := s.Store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		match, err := readMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if !match.HasMember(sender) {
			return apperrors.ErrForbidden
		}

		seq := match.MessageCount + 1
		createdAt := timestamp(nextTimestamp(now(), match.LastMessageAt))
		msg = models.Message{
			MatchID:   matchID,
			SK:        models.MessageSK(seq),
			MessageID: uuid.NewString(),
			SenderID:  sender,
			Text:      text,
			CreatedAt: createdAt,
			Seq:       seq,
		}
		if err := putDoc(tx, messageKey(matchID, seq), msg); err != nil {
			return err
		}

		match.MessageCount = seq
		match.LastMessage = text
		match.LastSender = sender
		match.LastMessageAt = createdAt
		if createdAt > match.LastActivity {
			match.LastActivity = createdAt
		}
		return putDoc(tx, matchKey(matchID), match)
	})
	if err != nil {
		return nil, storeError(err, "send message")
	}

	s.Events.Publish(ctx, Event{Type: EventMessageCreated, UserID: sender, Message: &msg})
	return &msg, nil
}

// MarkAsRead clears uid's unread counter on the match. The other member's
// state is left alone.
func (s *ChatService) MarkAsRead(ctx context.Context, matchID, uid string) error {
	if matchID == "" || uid == "" {
		return apperrors.Validation("match id and user id are required")
	}
	err := store.Update(ctx, s.Store, matchKey(matchID), func(item store.Item) (store.Item, error) {
		if item == nil {
			return nil, store.ErrNotFound
		}
		var m models.Match
		if err := store.Unmarshal(item, &m); err != nil {
			return nil, err
		}
		if !m.HasMember(uid) {
			return nil, apperrors.ErrForbidden
		}
		if m.Unread == nil {
			m.Unread = map[string]int{}
		}
		if m.Read == nil {
			m.Read = map[string]bool{}
		}
		m.Unread[uid] = 0
		m.Read[uid] = true
		return store.Marshal(m)
	})
	return storeError(err, "mark as read")
}

func messagesQuery(matchID string, limit int) store.Query {
	return store.Query{
		Table:          models.MessagesTable,
		PartitionField: "matchId",
		PartitionValue: matchID,
		Descending:     true,
		Limit:          limit,
	}
}

// decodeMessages turns a newest-first page into oldest-first messages.
func decodeMessages(items []store.Item) ([]models.Message, error) {
	msgs := make([]models.Message, 0, len(items))
	if err := store.UnmarshalList(items, &msgs); err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}

// checkMember returns ErrForbidden unless uid belongs to the match.
func (s *ChatService) checkMember(ctx context.Context, matchID, uid string) error {
	item, err := s.Store.Get(ctx, matchKey(matchID))
	if err != nil {
		return storeError(err, "get match")
	}
	var m models.Match
	if err := store.Unmarshal(item, &m); err != nil {
		return err
	}
	if !m.HasMember(uid) {
		return apperrors.ErrForbidden
	}
	return nil
}

// Messages returns the latest limit messages of the match in ascending
// createdAt order.
func (s *ChatService) Messages(ctx context.Context, matchID, uid string, limit int) ([]models.Message, error) {
	if matchID == "" {
		return nil, apperrors.Validation("match id is required")
	}
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	if err := s.checkMember(ctx, matchID, uid); err != nil {
		return nil, err
	}
	items, err := s.Store.Query(ctx, messagesQuery(matchID, limit))
	if err != nil {
		return nil, storeError(err, "messages")
	}
	return decodeMessages(items)
}

func (s *ChatService) WatchMessages(ctx context.Context, matchID, uid string, limit int) (*store.Subscription[[]models.Message], error) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	if err := s.checkMember(ctx, matchID, uid); err != nil {
		return nil, err
	}
	opts := s.Watch
	opts.Table = models.MessagesTable
	return store.Watch(ctx, s.Store, opts,
		func(ctx context.Context) ([]store.Item, error) {
			return s.Store.Query(ctx, messagesQuery(matchID, limit))
		},
		decodeMessages), nil
}
