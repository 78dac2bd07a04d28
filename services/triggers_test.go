package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomie_server/models"
)

// fakeS3 serves a fixed object listing and records deletions.
type fakeS3 struct {
	pages     [][]string
	deleted   []string
	listCalls int
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	i := f.listCalls
	f.listCalls++
	out := &s3.ListObjectsV2Output{}
	if i < len(f.pages) {
		for _, k := range f.pages[i] {
			out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
		}
	}
	if i+1 < len(f.pages) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String("next")
	}
	return out, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	for _, o := range in.Delete.Objects {
		f.deleted = append(f.deleted, aws.ToString(o.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func TestProfileSync_UpdatesMatchSnapshots(t *testing.T) {
	env := newTestEnv(t)
	env.saveProfile(t, hunter("A", 1, 1))
	env.saveProfile(t, host("B", 1, 1))
	env.saveProfile(t, host("C", 1, 1))
	ab := env.match(t, "A", "B")
	ac := env.match(t, "A", "C")
	env.bus.Wait()

	p := hunter("A", 1, 1)
	p.Name = "Renamed"
	p.Images = []string{"users/A/new.jpg"}
	env.saveProfile(t, p)
	env.bus.Wait()

	for _, id := range []string{ab, ac} {
		snap := env.getMatch(t, id).Profiles["A"]
		assert.Equal(t, "Renamed", snap.Name)
		assert.Equal(t, "users/A/new.jpg", snap.Image)
	}
	assert.Equal(t, "host B", env.getMatch(t, ab).Profiles["B"].Name)
}

func TestUnreadIncrement_SkipsDeletedMatch(t *testing.T) {
	env := newTestEnv(t)
	tr := NewTriggers(env.store, nil, nil)

	err := tr.UnreadIncrement(context.Background(), Event{
		Type:    EventMessageCreated,
		Message: &models.Message{MatchID: "gone_match", SenderID: "gone"},
	})
	assert.NoError(t, err)
	assert.Equal(t, 0, env.count(t, models.MatchesTable))
}

func TestAccountCleanup_DeletesUserPrefix(t *testing.T) {
	fake := &fakeS3{pages: [][]string{
		{"users/A/1.jpg", "users/A/2.jpg"},
		{"users/A/3.jpg"},
	}}
	tr := NewTriggers(nil, NewS3Service(fake, nil, "bucket", nil), nil)

	require.NoError(t, tr.AccountCleanup(context.Background(), Event{Type: EventUserDeleted, UserID: "A"}))
	assert.Equal(t, []string{"users/A/1.jpg", "users/A/2.jpg", "users/A/3.jpg"}, fake.deleted)
	assert.Equal(t, 2, fake.listCalls)
}

func TestDeleteByPrefix_RejectsEmptyPrefix(t *testing.T) {
	svc := NewS3Service(&fakeS3{}, nil, "bucket", nil)
	_, err := svc.DeleteByPrefix(context.Background(), "")
	assert.Error(t, err)
}

func TestEventBus_HandlerFailureIsContained(t *testing.T) {
	bus := NewEventBus(nil)
	var calls atomic.Int32
	bus.Subscribe(EventUserDeleted, "failing", func(context.Context, Event) error {
		calls.Add(1)
		return errors.New("boom")
	})
	bus.Subscribe(EventUserDeleted, "ok", func(context.Context, Event) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, Event{Type: EventUserDeleted, UserID: "A"})
	cancel()
	bus.Publish(context.Background(), Event{Type: EventMessageCreated})
	bus.Wait()

	assert.Equal(t, int32(2), calls.Load())
}
