package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/flashbots/anonboard/board"
	"github.com/flashbots/anonboard/client"
	"github.com/flashbots/anonboard/feed"
	"github.com/flashbots/anonboard/protocol"
	"github.com/flashbots/anonboard/secretstore"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	watchRedisAddr    string
	watchRedisChannel string
	watchJSON         bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the board as it changes",
	Long: `Follow the board as it changes.

Snapshots are streamed from the board's websocket endpoint, or from a redis
channel when --redis-addr is given. Every snapshot is checked against the
operator key and reconciled with your credential.

Examples:
  # Stream from the board server
  board-cli watch

  # Stream from redis, e.g. from behind a read replica
  board-cli watch --redis-addr=localhost:6379

  # Line-delimited JSON
  board-cli watch --json`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchRedisAddr, "redis-addr", "", "Read snapshots from redis instead of the board websocket")
	watchCmd.Flags().StringVar(&watchRedisChannel, "redis-channel", feed.DefaultChannel, "Redis channel snapshots are published on")
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Print derived views as line-delimited JSON")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	secrets, err := secretstore.NewFileStore(credentialPath)
	if err != nil {
		return err
	}
	driver, err := newDriver()
	if err != nil {
		return err
	}

	var source client.SnapshotSource = driver
	if watchRedisAddr != "" {
		operator, err := driver.Operator(ctx)
		if err != nil {
			return err
		}
		source = sourceFunc(func(ctx context.Context) (<-chan *board.Snapshot, error) {
			sub, err := feed.SubscribeRedis(ctx, &redis.Options{Addr: watchRedisAddr}, watchRedisChannel, operator)
			if err != nil {
				return nil, err
			}
			go func() {
				<-ctx.Done()
				sub.Close()
			}()
			return sub.Events(), nil
		})
	}

	p, err := client.NewParticipant(&client.ParticipantConfig{
		Secrets:   secrets,
		Driver:    driver,
		Snapshots: source,
	})
	if err != nil {
		return err
	}

	views, err := p.Watch(ctx)
	if err != nil {
		return err
	}

	if watchRedisAddr != "" {
		// redis only carries new commits, start from the current state
		view, err := p.View(ctx)
		if err != nil {
			return err
		}
		printWatched(cmd, view)
	}

	for view := range views {
		printWatched(cmd, view)
	}
	return nil
}

func printWatched(cmd *cobra.Command, view board.DerivedView) {
	if watchJSON {
		b, _ := protocol.SerializeMessage(&view)
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderView(view))
}

type sourceFunc func(ctx context.Context) (<-chan *board.Snapshot, error)

func (f sourceFunc) Watch(ctx context.Context) (<-chan *board.Snapshot, error) {
	return f(ctx)
}
