package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"roomie_server/config"
	"roomie_server/models"
	"roomie_server/store"
)

type testEnv struct {
	store        *store.MemoryStore
	bus          *EventBus
	interactions *InteractionService
	chat         *ChatService
	matches      *MatchService
	profiles     *UserProfileService
	feed         *FeedService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s := store.NewMemoryStore(Schemas, 200)
	bus := NewEventBus(nil)
	watch := store.WatchOptions{Interval: 10 * time.Millisecond}

	var cfg config.Config
	cfg.LoadDefaults()

	env := &testEnv{store: s, bus: bus}
	env.interactions = NewInteractionService(s, watch, nil)
	env.chat = NewChatService(s, bus, watch, nil)
	env.matches = NewMatchService(s, watch, nil)
	env.profiles = NewUserProfileService(s, env.interactions, nil, bus, nil, nil)
	env.feed = NewFeedService(s, env.profiles, env.interactions, cfg.Feed, nil)
	NewTriggers(s, nil, nil).Register(bus)

	t.Cleanup(bus.Wait)
	return env
}

func ptr[T any](v T) *T { return &v }

func hunter(uid string, lat, lng float64) *models.UserProfile {
	return &models.UserProfile{
		UserID:    uid,
		Name:      "hunter " + uid,
		Role:      models.RoleHunter,
		Images:    []string{"users/" + uid + "/1.jpg"},
		Latitude:  ptr(lat),
		Longitude: ptr(lng),
		Hunter:    &models.HunterDetails{Budget: 800},
	}
}

func host(uid string, lat, lng float64) *models.UserProfile {
	return &models.UserProfile{
		UserID:    uid,
		Name:      "host " + uid,
		Role:      models.RoleHost,
		Latitude:  ptr(lat),
		Longitude: ptr(lng),
		Host:      &models.HostDetails{Rent: 900},
	}
}

func (e *testEnv) saveProfile(t *testing.T, p *models.UserProfile) {
	t.Helper()
	_, err := e.profiles.Upsert(context.Background(), p)
	require.NoError(t, err)
}

// match creates a match between a and b through two likes.
func (e *testEnv) match(t *testing.T, a, b string) string {
	t.Helper()
	ctx := context.Background()
	_, err := e.interactions.Like(ctx, a, b)
	require.NoError(t, err)
	res, err := e.interactions.Like(ctx, b, a)
	require.NoError(t, err)
	require.True(t, res.IsMatch)
	return res.MatchID
}

func (e *testEnv) getMatch(t *testing.T, id string) *models.Match {
	t.Helper()
	item, err := e.store.Get(context.Background(), matchKey(id))
	require.NoError(t, err)
	var m models.Match
	require.NoError(t, store.Unmarshal(item, &m))
	return &m
}

func (e *testEnv) getInteraction(t *testing.T, from, to string) *models.Interaction {
	t.Helper()
	item, err := e.store.Get(context.Background(), interactionKey(from, to))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	require.NoError(t, err)
	var in models.Interaction
	require.NoError(t, store.Unmarshal(item, &in))
	return &in
}

func (e *testEnv) count(t *testing.T, table string) int {
	t.Helper()
	items, err := e.store.Query(context.Background(), store.Query{Table: table})
	require.NoError(t, err)
	return len(items)
}

// freezeTime pins now() to t for the rest of the test.
func freezeTime(t *testing.T, at time.Time) {
	t.Helper()
	orig := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = orig })
}

// unavailableStore fails every write.
type unavailableStore struct {
	store.DocumentStore
}

var errUnavailable = errors.New("backend unavailable")

func (unavailableStore) Put(context.Context, store.Key, store.Item) error { return errUnavailable }

func (unavailableStore) RunTransaction(context.Context, func(context.Context, store.Tx) error) error {
	return errUnavailable
}
