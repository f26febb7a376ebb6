package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flashbots/anonboard/board"
	"github.com/flashbots/anonboard/protocol"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var showJSON bool

var postCmd = &cobra.Command{
	Use:   "post <confession>",
	Short: "Post a confession into the empty slot",
	Long: `Post a confession into the empty slot.

Fails if a confession is already on the board.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPost,
}

var voteCmd = &cobra.Command{
	Use:       "vote <up|down>",
	Short:     "Vote on the current confession",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"up", "down"},
	RunE:      runVote,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the board and whether the confession is yours",
	Args:  cobra.NoArgs,
	RunE:  runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the derived view as JSON")
	rootCmd.AddCommand(postCmd, voteCmd, showCmd)
}

func runPost(cmd *cobra.Command, args []string) error {
	p, _, err := newParticipant()
	if err != nil {
		return err
	}

	view, err := p.PostConfession(cmd.Context(), strings.Join(args, " "))
	if errors.Is(err, board.ErrAlreadyOccupied) {
		fmt.Fprintln(cmd.OutOrStdout(), renderView(view))
		return fmt.Errorf("the board already holds a confession")
	}
	if err != nil {
		return err
	}

	pterm.Success.WithWriter(cmd.OutOrStdout()).Println("Confession posted")
	fmt.Fprintln(cmd.OutOrStdout(), renderView(view))
	return nil
}

func runVote(cmd *cobra.Command, args []string) error {
	direction, err := protocol.ParseDirection(args[0])
	if err != nil {
		return err
	}

	p, _, err := newParticipant()
	if err != nil {
		return err
	}

	view, err := p.Vote(cmd.Context(), direction)
	if errors.Is(err, board.ErrNoActiveConfession) {
		return fmt.Errorf("there is no confession to vote on")
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderView(view))
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	p, _, err := newParticipant()
	if err != nil {
		return err
	}

	view, err := p.View(cmd.Context())
	if err != nil {
		return err
	}

	if showJSON {
		b, err := protocol.SerializeMessage(&view)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderView(view))
	return nil
}
