// Package ledger commits board transitions to an append-only, hash-chained log.
//
// # Components
//
// Driver is the transition driver: it serializes intentions, applies each to
// the board, appends a Block and publishes the resulting snapshot. It
// implements board.Driver.
//
// Block records one committed intention together with the hash of the state
// it produced. Blocks link to their predecessor by hash; the first block links
// to GenesisHash. Hashes are SHA3-256 over deterministic CBOR.
//
// Store persists blocks. MemoryStore keeps them in process, PostgresStore and
// SQLiteStore keep them in a database.
//
// # Recovery
//
// On start the Driver replays the stored chain into a fresh board. Replay
// fails on a broken link, a bad hash, an intention that no longer applies or a
// state hash mismatch, so a tampered ledger is never served.
package ledger
