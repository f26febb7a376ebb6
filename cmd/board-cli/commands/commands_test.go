package commands

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/flashbots/anonboard/api/httpserver"
	"github.com/flashbots/anonboard/board"
	"github.com/flashbots/anonboard/client"
	"github.com/flashbots/anonboard/crypto"
	"github.com/flashbots/anonboard/feed"
	"github.com/flashbots/anonboard/ledger"
	"github.com/flashbots/anonboard/services"
	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBoard(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	hub := feed.NewHub(nil)
	driver, err := ledger.NewDriver(ctx, &ledger.DriverConfig{
		Store:     ledger.NewMemoryStore(),
		Publisher: hub,
	})
	require.NoError(t, err)
	initial, err := driver.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, hub.Publish(ctx, initial))

	_, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	svc, err := services.NewBoardService(&services.BoardServiceConfig{
		Ledger:     driver,
		Hub:        hub,
		SigningKey: priv,
		Log:        slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	srv, err := httpserver.New(&httpserver.HTTPServerConfig{ListenAddr: ":0", Log: slog.New(slog.DiscardHandler)}, svc)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

// run executes the real root command and resets flag state afterwards.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	pterm.DisableColor()
	t.Cleanup(func() {
		showJSON = false
		credentialSlot = -1
		operatorKey = ""
		rootCmd.SetArgs([]string{})
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	if args == nil {
		args = []string{}
	}
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := Execute()
	return buf.String(), err
}

func TestRootShowsHelp(t *testing.T) {
	out, err := run(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	for _, sub := range []string{"post", "vote", "show", "watch", "credential"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootRejectsUnknownFlags(t *testing.T) {
	_, err := run(t, "--no-such-flag")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestPostShowVote(t *testing.T) {
	url := startBoard(t)
	dir := t.TempDir()
	alice := filepath.Join(dir, "alice")
	bob := filepath.Join(dir, "bob")

	out, err := run(t, "--board", url, "--credential", alice, "post", "I", "never", "read", "the", "docs")
	require.NoError(t, err)
	assert.Contains(t, out, "Confession posted")
	assert.Contains(t, out, "I never read the docs")
	assert.Contains(t, out, "You wrote this")

	out, err = run(t, "--board", url, "--credential", bob, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "I never read the docs")
	assert.Contains(t, out, "Anonymous")
	assert.NotContains(t, out, "You wrote this")

	out, err = run(t, "--board", url, "--credential", bob, "post", "me too")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already holds a confession")
	assert.Contains(t, out, "I never read the docs")

	_, err = run(t, "--board", url, "--credential", bob, "vote", "up")
	require.NoError(t, err)

	out, err = run(t, "--board", url, "--credential", alice, "show", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"is_author":true`)
	assert.Contains(t, out, `"upvotes":1`)
}

func TestVoteRejectsBadDirection(t *testing.T) {
	_, err := run(t, "--board", "http://localhost:1", "--credential", filepath.Join(t.TempDir(), "c"), "vote", "sideways")
	require.Error(t, err)
}

func TestVoteOnEmptyBoard(t *testing.T) {
	url := startBoard(t)
	_, err := run(t, "--board", url, "--credential", filepath.Join(t.TempDir(), "c"), "vote", "down")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no confession")
}

func TestCredentialCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credential")

	out, err := run(t, "--credential", path, "credential", "--slot", "3")
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.Contains(t, out, "author tag for slot 3")
	assert.FileExists(t, path)

	// the tag is stable for the same credential and slot
	again, err := run(t, "--credential", path, "credential", "--slot", "3")
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestRenderView(t *testing.T) {
	pterm.DisableColor()

	empty := renderView(board.DerivedView{TotalPosts: 2})
	assert.Contains(t, empty, "The board is empty")
	assert.Contains(t, empty, "Total posts: 2")

	slot := uint64(4)
	mine := renderView(board.DerivedView{
		Occupied:      true,
		Content:       "hello",
		Upvotes:       3,
		Downvotes:     1,
		TotalPosts:    5,
		CurrentSlotID: &slot,
		IsAuthor:      true,
	})
	assert.Contains(t, mine, "Confession #4")
	assert.Contains(t, mine, "hello")
	assert.Contains(t, mine, "You wrote this")
	assert.Contains(t, mine, "3")
}

func TestSourceFunc(t *testing.T) {
	ch := make(chan *board.Snapshot)
	var src client.SnapshotSource = sourceFunc(func(ctx context.Context) (<-chan *board.Snapshot, error) { return ch, nil })
	got, err := src.Watch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, (<-chan *board.Snapshot)(ch), got)
}
