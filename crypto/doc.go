// Package crypto provides the cryptographic primitives of the anonymous board.
//
// # Author Tags
//
// A participant holds a Credential: 32 random bytes that never leave their
// process. When posting to slot n the participant publishes
//
//	tag = SHA3-256(pad32(domain) || credential || uint64be(n))
//
// DeriveAuthorTag is deterministic, so the poster can recompute the tag later
// and recognise the slot as theirs. Because the slot ordinal is part of the
// preimage, two posts by the same participant carry unrelated tags.
//
// Credentials can be generated at random (GenerateCredential) or expanded from
// a master seed with HKDF-SHA256 (CredentialFromSeed).
//
// # Operator Keys
//
// Ed25519 keys are used by the board operator to sign published snapshots.
// Participants do not sign anything.
package crypto
