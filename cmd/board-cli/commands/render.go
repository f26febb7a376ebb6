package commands

import (
	"fmt"
	"time"

	"github.com/flashbots/anonboard/board"
	"github.com/pterm/pterm"
)

// renderView draws a derived view as a titled box.
func renderView(view board.DerivedView) string {
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)

	title := "Confession board"
	if view.CurrentSlotID != nil {
		title = fmt.Sprintf("Confession #%d", *view.CurrentSlotID)
	}

	if !view.Occupied {
		return pbox.WithTitle(title).WithTitleTopLeft().Sprintf("%s\nTotal posts: %d",
			pterm.Cyan("The board is empty"), view.TotalPosts)
	}

	author := pterm.Gray("Anonymous")
	if view.IsAuthor {
		author = pterm.LightGreen("You wrote this")
	}

	posted := time.UnixMilli(int64(view.PostedAt)).UTC().Format(time.RFC3339)
	votes := fmt.Sprintf("%s %d   %s %d",
		pterm.LightGreen("▲"), view.Upvotes,
		pterm.LightRed("▼"), view.Downvotes)

	return pbox.WithTitle(title).WithTitleTopLeft().Sprintf("%s\n\n%s\n%s\nPosted: %s\nTotal posts: %d",
		view.Content, author, votes, posted, view.TotalPosts)
}
