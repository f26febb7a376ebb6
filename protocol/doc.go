// Package protocol defines what travels between board participants, the
// transition driver and observers.
//
// # Intentions
//
// An Intention is one requested transition: either a post (content, the
// caller-supplied timestamp, the slot ordinal the poster expects to occupy,
// and the author tag derived for that ordinal) or a vote (up or down).
// Intentions carry no credential and no participant identity.
//
// # Signed Snapshots
//
// Signed[T] wraps an object with the board operator's Ed25519 signature over
// its JSON serialization. Observers verify snapshots with RecoverFrom against
// the operator key they trust.
//
// # Encodings
//
// JSON is used on the wire (SerializeMessage, DecodeMessage). Deterministic
// CBOR (MarshalCanonical) is used wherever bytes are hashed, so that a ledger
// block hash does not depend on map ordering or integer widths.
package protocol
