// Package client is the participant side of the board.
//
// A Participant combines a secretstore.Store with a board.Driver. It derives
// author tags locally and reconciles every snapshot it sees with its own
// credential, so callers only ever handle board.DerivedView values.
package client
