// Package board implements the single-slot confession board.
//
// The board has two states. While Empty a post is accepted, occupying the
// slot with its content, caller-supplied timestamp and author tag, resetting
// both tallies and incrementing TotalPosts. While Occupied any number of up
// and down votes are accepted. A post against an occupied board fails with
// ErrAlreadyOccupied, a vote against an empty board with
// ErrNoActiveConfession; neither changes the state.
//
// There is no transition back to Empty. A board accepts one post in its
// lifetime.
//
// Reconcile answers "is the current confession mine?" from a snapshot and a
// local credential without the credential leaving the caller.
package board
