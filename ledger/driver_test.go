package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/flashbots/anonboard/board"
	"github.com/flashbots/anonboard/crypto"
	"github.com/flashbots/anonboard/protocol"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu    sync.Mutex
	snaps []*board.Snapshot
	err   error
}

func (p *recordingPublisher) Publish(ctx context.Context, snap *board.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, snap)
	return p.err
}

// failingStore fails the next Append with err, then behaves like Store.
type failingStore struct {
	Store
	mu  sync.Mutex
	err error
}

func (s *failingStore) failNextAppend(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *failingStore) Append(ctx context.Context, block *Block) error {
	s.mu.Lock()
	err := s.err
	s.err = nil
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.Append(ctx, block)
}

func fixedNow() time.Time {
	return time.UnixMilli(1_700_000_000_000)
}

func newTestDriver(t *testing.T, store Store, pub Publisher) *Driver {
	t.Helper()
	d, err := NewDriver(context.Background(), &DriverConfig{
		Store:     store,
		Publisher: pub,
		Now:       fixedNow,
	})
	require.NoError(t, err)
	return d
}

func postIntention(t *testing.T, cred crypto.Credential, slotID uint64, content string) *protocol.Intention {
	t.Helper()
	tag, err := crypto.DeriveAuthorTag(cred, slotID)
	require.NoError(t, err)
	return protocol.NewPostIntention(content, 1000+slotID, slotID, tag)
}

func TestDriverSubmitCommitsAndPublishes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	pub := &recordingPublisher{}
	d := newTestDriver(t, store, pub)

	cred, err := crypto.GenerateCredential()
	require.NoError(t, err)

	snap, err := d.Submit(ctx, postIntention(t, cred, 0, "hello"))
	require.NoError(t, err)
	require.True(t, snap.Occupied)
	require.Equal(t, uint64(1), snap.TotalPosts)

	snap, err = d.Submit(ctx, protocol.NewVoteIntention(protocol.Up))
	require.NoError(t, err)
	require.Equal(t, uint64(1), snap.Upvotes)

	blocks, err := store.Blocks(ctx)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	require.Equal(t, GenesisHash, blocks[0].PrevHash)
	require.Equal(t, blocks[0].Hash, blocks[1].PrevHash)
	require.Equal(t, fixedNow().UnixMilli(), blocks[1].CommittedAt)

	require.Len(t, pub.snaps, 2)
	require.Equal(t, uint64(1), pub.snaps[1].Upvotes)

	require.Equal(t, blocks[1].Hash, d.Head().Hash)
	require.NoError(t, d.Verify(ctx))
}

func TestDriverRejectionLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	pub := &recordingPublisher{}
	d := newTestDriver(t, store, pub)

	_, err := d.Submit(ctx, protocol.NewVoteIntention(protocol.Down))
	require.ErrorIs(t, err, board.ErrNoActiveConfession)

	cred, _ := crypto.GenerateCredential()
	_, err = d.Submit(ctx, postIntention(t, cred, 0, "first"))
	require.NoError(t, err)

	_, err = d.Submit(ctx, postIntention(t, cred, 1, "second"))
	require.ErrorIs(t, err, board.ErrAlreadyOccupied)

	blocks, _ := store.Blocks(ctx)
	require.Len(t, blocks, 1)
	require.Len(t, pub.snaps, 1)

	snap, err := d.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, "first", snap.Content)
}

func TestDriverCommitFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: NewMemoryStore()}
	d := newTestDriver(t, store, nil)

	cred, _ := crypto.GenerateCredential()
	_, err := d.Submit(ctx, postIntention(t, cred, 0, "kept"))
	require.NoError(t, err)

	before, _ := d.Snapshot(ctx)

	diskFull := errors.New("disk full")
	store.failNextAppend(diskFull)
	_, err = d.Submit(ctx, protocol.NewVoteIntention(protocol.Up))
	require.ErrorIs(t, err, diskFull)

	after, _ := d.Snapshot(ctx)
	require.True(t, before.Equal(after))

	// the chain continues from the last successful block
	_, err = d.Submit(ctx, protocol.NewVoteIntention(protocol.Up))
	require.NoError(t, err)
	require.NoError(t, d.Verify(ctx))
}

func TestDriverPublishFailureDoesNotFailCommit(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	d := newTestDriver(t, NewMemoryStore(), pub)

	cred, _ := crypto.GenerateCredential()
	snap, err := d.Submit(context.Background(), postIntention(t, cred, 0, "x"))
	require.NoError(t, err)
	require.True(t, snap.Occupied)
}

func TestDriverRecoversFromStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	d := newTestDriver(t, store, nil)

	cred, _ := crypto.GenerateCredential()
	_, err := d.Submit(ctx, postIntention(t, cred, 0, "persisted"))
	require.NoError(t, err)
	_, err = d.Submit(ctx, protocol.NewVoteIntention(protocol.Down))
	require.NoError(t, err)

	want, _ := d.Snapshot(ctx)

	restarted := newTestDriver(t, store, nil)
	got, _ := restarted.Snapshot(ctx)
	require.True(t, want.Equal(got))
	require.True(t, board.Reconcile(got, cred).IsAuthor)
}

func TestReplayDetectsTampering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	d := newTestDriver(t, store, nil)

	cred, _ := crypto.GenerateCredential()
	_, err := d.Submit(ctx, postIntention(t, cred, 0, "original"))
	require.NoError(t, err)
	_, err = d.Submit(ctx, protocol.NewVoteIntention(protocol.Up))
	require.NoError(t, err)

	blocks, _ := store.Blocks(ctx)

	t.Run("content", func(t *testing.T) {
		tampered := cloneBlocks(blocks)
		post := *tampered[0].Intention.Post
		post.Content = "forged"
		tampered[0].Intention.Post = &post
		_, err := Replay(nil, tampered)
		require.ErrorIs(t, err, ErrInvalidChain)
	})

	t.Run("link", func(t *testing.T) {
		tampered := cloneBlocks(blocks)
		tampered[1].PrevHash = GenesisHash
		_, err := Replay(nil, tampered)
		require.ErrorIs(t, err, ErrInvalidChain)
	})

	t.Run("state hash", func(t *testing.T) {
		tampered := cloneBlocks(blocks)
		tampered[1].StateHash = tampered[0].StateHash
		var err error
		tampered[1].Hash, err = tampered[1].ComputeHash()
		require.NoError(t, err)
		_, err = Replay(nil, tampered)
		require.ErrorIs(t, err, ErrInvalidChain)
	})

	t.Run("missing block", func(t *testing.T) {
		_, err := Replay(nil, cloneBlocks(blocks)[1:])
		require.ErrorIs(t, err, ErrInvalidChain)
	})

	t.Run("untouched", func(t *testing.T) {
		b, err := Replay(nil, cloneBlocks(blocks))
		require.NoError(t, err)
		require.Equal(t, uint64(1), b.Snapshot().Upvotes)
	})
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger", "board.db")

	store, err := OpenSQLite(path)
	require.NoError(t, err)

	d := newTestDriver(t, store, nil)
	cred, _ := crypto.GenerateCredential()
	_, err = d.Submit(ctx, postIntention(t, cred, 0, "on disk"))
	require.NoError(t, err)
	_, err = d.Submit(ctx, protocol.NewVoteIntention(protocol.Up))
	require.NoError(t, err)
	want, _ := d.Snapshot(ctx)

	head := d.Head()
	dup := *head
	require.ErrorIs(t, store.Append(ctx, &dup), ErrConflict)
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	restarted := newTestDriver(t, reopened, nil)
	got, _ := restarted.Snapshot(ctx)
	require.True(t, want.Equal(got))
	require.NoError(t, restarted.Verify(ctx))
}

func TestSQLiteStoreRejectsInvalidUTF8BeforeCommit(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "board.db"))
	require.NoError(t, err)
	defer store.Close()

	d := newTestDriver(t, store, nil)
	cred, _ := crypto.GenerateCredential()

	_, err = d.Submit(ctx, postIntention(t, cred, 0, "h\xe9llo \xff"))
	require.ErrorIs(t, err, board.ErrInvalidContent)

	blocks, err := store.Blocks(ctx)
	require.NoError(t, err)
	require.Empty(t, blocks)

	_, err = d.Submit(ctx, postIntention(t, cred, 0, "héllo"))
	require.NoError(t, err)
	require.NoError(t, d.Verify(ctx))

	restarted := newTestDriver(t, store, nil)
	snap, _ := restarted.Snapshot(ctx)
	require.Equal(t, "héllo", snap.Content)
}

func TestDriverConcurrentSubmits(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	d := newTestDriver(t, store, nil)

	const posters = 16
	const voters = 32

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		posted   int
		occupied int
	)
	intentions := make([]*protocol.Intention, posters)
	for i := range intentions {
		cred, err := crypto.GenerateCredential()
		require.NoError(t, err)
		intentions[i] = postIntention(t, cred, 0, "racing")
	}

	for _, intention := range intentions {
		wg.Add(1)
		go func(intention *protocol.Intention) {
			defer wg.Done()
			_, err := d.Submit(ctx, intention)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				posted++
			case errors.Is(err, board.ErrAlreadyOccupied):
				occupied++
			}
		}(intention)
	}
	wg.Wait()
	require.Equal(t, 1, posted)
	require.Equal(t, posters-1, occupied)

	var voteErrs sync.Map
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			direction := protocol.Up
			if i%4 == 0 {
				direction = protocol.Down
			}
			if _, err := d.Submit(ctx, protocol.NewVoteIntention(direction)); err != nil {
				voteErrs.Store(i, err)
			}
		}(i)
	}
	wg.Wait()
	voteErrs.Range(func(k, v any) bool {
		t.Errorf("vote %v failed: %v", k, v)
		return true
	})

	snap, _ := d.Snapshot(ctx)
	require.Equal(t, uint64(1), snap.TotalPosts)
	require.Equal(t, uint64(voters/4), snap.Downvotes)
	require.Equal(t, uint64(voters-voters/4), snap.Upvotes)

	blocks, err := store.Blocks(ctx)
	require.NoError(t, err)
	require.Len(t, blocks, 1+voters)
	replayed, err := Replay(nil, blocks)
	require.NoError(t, err)
	require.True(t, replayed.Snapshot().Equal(snap))
}

func TestDriverVerifyDuringCommits(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver(t, NewMemoryStore(), nil)

	cred, _ := crypto.GenerateCredential()
	_, err := d.Submit(ctx, postIntention(t, cred, 0, "busy"))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if _, err := d.Submit(ctx, protocol.NewVoteIntention(protocol.Up)); err != nil {
				t.Errorf("vote failed: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		require.NoError(t, d.Verify(ctx))
	}
	<-done
	require.NoError(t, d.Verify(ctx))
}

func TestMemoryStoreRejectsGaps(t *testing.T) {
	store := NewMemoryStore()
	err := store.Append(context.Background(), &Block{Index: 3})
	require.ErrorIs(t, err, ErrConflict)
}

func cloneBlocks(blocks []*Block) []*Block {
	out := make([]*Block, len(blocks))
	for i, b := range blocks {
		c := *b
		out[i] = &c
	}
	return out
}
