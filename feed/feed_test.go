package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/flashbots/anonboard/board"
	"github.com/flashbots/anonboard/crypto"
	"github.com/flashbots/anonboard/protocol"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotWithVotes(up uint64) *board.Snapshot {
	return &board.Snapshot{
		Slot:     board.Slot{Occupied: true, Content: "c", Upvotes: up},
		Counters: board.Counters{TotalPosts: 1},
	}
}

func receive(t *testing.T, ch <-chan *board.Snapshot) *board.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "channel closed")
		return snap
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for snapshot")
	}
	return nil
}

func TestHubSendsLatestOnSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(&board.Snapshot{})
	ch := hub.Subscribe(ctx)
	first := receive(t, ch)
	assert.False(t, first.Occupied)

	require.NoError(t, hub.Publish(ctx, snapshotWithVotes(3)))
	assert.Equal(t, uint64(3), receive(t, ch).Upvotes)

	late := hub.Subscribe(ctx)
	assert.Equal(t, uint64(3), receive(t, late).Upvotes)
}

func TestHubSlowSubscriberKeepsLatest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	ch := hub.Subscribe(ctx)

	for i := uint64(1); i <= 3*subscriberBuffer; i++ {
		require.NoError(t, hub.Publish(ctx, snapshotWithVotes(i)))
	}

	var last *board.Snapshot
	for len(ch) > 0 {
		last = <-ch
	}
	require.NotNil(t, last)
	assert.Equal(t, uint64(3*subscriberBuffer), last.Upvotes)
}

func TestHubClosesOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	ch := hub.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	assert.Equal(t, 0, hub.Subscribers())
}

func TestHubPublishedSnapshotsAreCopies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	ch := hub.Subscribe(ctx)
	snap := snapshotWithVotes(1)
	require.NoError(t, hub.Publish(ctx, snap))
	snap.Upvotes = 99

	assert.Equal(t, uint64(1), receive(t, ch).Upvotes)
	assert.Equal(t, uint64(1), hub.Latest().Upvotes)
}

type failingPublisher struct{ err error }

func (p failingPublisher) Publish(context.Context, *board.Snapshot) error { return p.err }

func TestFanoutJoinsErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	ch := hub.Subscribe(ctx)
	errA := errors.New("a")
	errB := errors.New("b")

	err := Fanout{failingPublisher{errA}, hub, failingPublisher{errB}}.Publish(ctx, snapshotWithVotes(2))
	require.ErrorIs(t, err, errA)
	require.ErrorIs(t, err, errB)
	assert.Equal(t, uint64(2), receive(t, ch).Upvotes)

	require.NoError(t, Fanout{hub}.Publish(ctx, snapshotWithVotes(3)))
}

func setupRedis(t *testing.T) *redis.Options {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)
	return &redis.Options{Addr: mr.Addr()}
}

func TestRedisRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	opts := setupRedis(t)

	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	publisher, err := NewRedisPublisher(opts, "", priv)
	require.NoError(t, err)
	defer publisher.Close()
	require.NoError(t, publisher.Ping(ctx))

	sub, err := SubscribeRedis(ctx, opts, "", pub)
	require.NoError(t, err)
	defer sub.Close()

	cred, _ := crypto.GenerateCredential()
	tag, _ := crypto.DeriveAuthorTag(cred, 0)
	want := snapshotWithVotes(4)
	want.AuthorTag = tag

	require.NoError(t, publisher.Publish(ctx, want))

	got := receive(t, sub.Events())
	assert.True(t, want.Equal(got))
	assert.True(t, board.Reconcile(got, cred).IsAuthor)
}

func TestRedisRejectsForeignSigner(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	opts := setupRedis(t)

	operator, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	_, impostor, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	publisher, err := NewRedisPublisher(opts, "board", impostor)
	require.NoError(t, err)
	defer publisher.Close()

	sub, err := SubscribeRedis(ctx, opts, "board", operator)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, publisher.Publish(ctx, snapshotWithVotes(1)))

	select {
	case err := <-sub.Errors():
		assert.Error(t, err)
	case <-sub.Events():
		t.Fatal("accepted snapshot from foreign signer")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for error")
	}
}

func TestRedisSkipsGarbage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	opts := setupRedis(t)

	sub, err := SubscribeRedis(ctx, opts, "board", nil)
	require.NoError(t, err)
	defer sub.Close()

	rdb := redis.NewClient(opts)
	defer rdb.Close()
	require.NoError(t, rdb.Publish(ctx, "board", "not json").Err())

	select {
	case err := <-sub.Errors():
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for error")
	}

	_, priv, _ := crypto.GenerateKeyPair()
	signed, err := protocol.NewSigned(priv, snapshotWithVotes(7))
	require.NoError(t, err)
	payload, err := protocol.SerializeMessage(signed)
	require.NoError(t, err)
	require.NoError(t, rdb.Publish(ctx, "board", payload).Err())

	assert.Equal(t, uint64(7), receive(t, sub.Events()).Upvotes)
}

func TestNewRedisPublisherRequiresKey(t *testing.T) {
	_, err := NewRedisPublisher(&redis.Options{}, "", nil)
	require.Error(t, err)
}
