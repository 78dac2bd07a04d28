package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomie_server/apperrors"
	"roomie_server/models"
	"roomie_server/store"
)

// seedNeighbourhood saves a hunter "me" and hosts within a few km of it.
func seedNeighbourhood(t *testing.T, env *testEnv, hosts int) {
	t.Helper()
	env.saveProfile(t, hunter("me", 52.5200, 13.4050))
	for i := 0; i < hosts; i++ {
		env.saveProfile(t, host(fmt.Sprintf("h%02d", i), 52.5200+float64(i)*0.002, 13.4050))
	}
}

func realIDs(items []models.FeedItem) []string {
	var out []string
	for _, it := range items {
		if !it.IsAd {
			out = append(out, it.ID)
		}
	}
	return out
}

func TestFeed_FetchExcludesAndInterleaves(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedNeighbourhood(t, env, 9)

	env.saveProfile(t, hunter("other-hunter", 52.5201, 13.4051))
	env.saveProfile(t, host("far-away", 48.8566, 2.3522))
	noCoords := host("no-coords", 0, 0)
	noCoords.Latitude, noCoords.Longitude = nil, nil
	env.saveProfile(t, noCoords)

	require.NoError(t, env.profiles.Block(ctx, "me", "h01"))
	require.NoError(t, env.interactions.Pass(ctx, "me", "h02"))
	_, err := env.interactions.Like(ctx, "me", "h03")
	require.NoError(t, err)

	page, err := env.feed.Fetch(ctx, "me", 5)
	require.NoError(t, err)
	assert.False(t, page.Retry)

	ids := realIDs(page.Items)
	assert.ElementsMatch(t, []string{"h00", "h04", "h05", "h06", "h07", "h08"}, ids)
	// nearest first
	assert.Equal(t, "h00", ids[0])

	ads := 0
	for _, it := range page.Items {
		if it.IsAd {
			ads++
			assert.NotNil(t, it.Sponsored)
		}
	}
	assert.Equal(t, 6/4, ads)
}

func TestFeed_SecondFetchDoesNotRepeat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedNeighbourhood(t, env, 5)

	first, err := env.feed.Fetch(ctx, "me", 5)
	require.NoError(t, err)
	second, err := env.feed.Fetch(ctx, "me", 5)
	require.NoError(t, err)

	assert.Equal(t, realIDs(first.Items), realIDs(second.Items))
	seen := map[string]bool{}
	for _, it := range second.Items {
		assert.False(t, seen[it.ID], "duplicate %s", it.ID)
		seen[it.ID] = true
	}
}

func TestFeed_ShortFeedGetsOneHouseEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedNeighbourhood(t, env, 1)

	for i := 0; i < 3; i++ {
		_, err := env.feed.Fetch(ctx, "me", 5)
		require.NoError(t, err)
	}

	houses := 0
	for _, it := range env.feed.Items("me") {
		if it.IsHouse {
			houses++
		}
	}
	assert.Equal(t, 1, houses)
}

func TestFeed_FetchInFlight(t *testing.T) {
	env := newTestEnv(t)
	seedNeighbourhood(t, env, 1)

	sess := env.feed.Session("me")
	sess.fetching.Store(true)

	_, err := env.feed.Fetch(context.Background(), "me", 5)
	assert.ErrorIs(t, err, apperrors.ErrFetchInFlight)

	sess.fetching.Store(false)
	_, err = env.feed.Fetch(context.Background(), "me", 5)
	assert.NoError(t, err)
}

func TestFeed_RequiresLocation(t *testing.T) {
	env := newTestEnv(t)
	p := hunter("me", 0, 0)
	p.Latitude, p.Longitude = nil, nil
	env.saveProfile(t, p)

	_, err := env.feed.Fetch(context.Background(), "me", 5)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestFeed_SwipeLikeConfirms(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedNeighbourhood(t, env, 2)
	_, err := env.interactions.Like(ctx, "h00", "me")
	require.NoError(t, err)

	_, err = env.feed.Fetch(ctx, "me", 5)
	require.NoError(t, err)

	res, err := env.feed.Swipe(ctx, "me", "h00", SwipeLike)
	require.NoError(t, err)
	assert.True(t, res.Confirmed)
	require.NotNil(t, res.Like)
	assert.True(t, res.Like.IsMatch)
	assert.NotContains(t, realIDs(env.feed.Items("me")), "h00")

	_, err = env.feed.Swipe(ctx, "me", "h00", SwipeLike)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = env.feed.Swipe(ctx, "me", "h01", "superlike")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestFeed_FailedSwipeIsRequeuedAtHead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedNeighbourhood(t, env, 3)
	_, err := env.feed.Fetch(ctx, "me", 5)
	require.NoError(t, err)

	env.feed.Interactions = NewInteractionService(unavailableStore{env.store}, env.interactions.Watch, nil)

	res, err := env.feed.Swipe(ctx, "me", "h02", SwipePass)
	require.NoError(t, err)
	assert.False(t, res.Confirmed)

	items := env.feed.Items("me")
	require.NotEmpty(t, items)
	assert.Equal(t, "h02", items[0].ID)
	assert.Nil(t, env.getInteraction(t, "me", "h02"))
}

func TestFeed_LogoutClearsSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedNeighbourhood(t, env, 2)

	_, err := env.feed.Fetch(ctx, "me", 5)
	require.NoError(t, err)
	require.Equal(t, 2, env.feed.Session("me").Seen.Len())

	env.feed.Logout("me")
	assert.Equal(t, 0, env.feed.Session("me").Seen.Len())
	assert.Empty(t, env.feed.Items("me"))
}

// unreadableStore fails every Get.
type unreadableStore struct {
	store.DocumentStore
}

func (unreadableStore) Get(context.Context, store.Key) (store.Item, error) {
	return nil, errUnavailable
}

func TestFeed_ProfileReadFailureDegrades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedNeighbourhood(t, env, 3)

	first, err := env.feed.Fetch(ctx, "me", 5)
	require.NoError(t, err)
	require.NotEmpty(t, first.Items)

	env.feed.Profiles = NewUserProfileService(unreadableStore{env.store}, env.interactions, nil, env.bus, nil, nil)
	page, err := env.feed.Fetch(ctx, "me", 5)
	require.NoError(t, err)
	assert.True(t, page.Retry)
	assert.Equal(t, first.Items, page.Items)
}

func TestFeed_UnknownViewerIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.feed.Fetch(context.Background(), "ghost", 5)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
