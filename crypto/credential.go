package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"slices"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// CredentialSize is the fixed length of a participant credential in bytes.
const CredentialSize = 32

// AuthorTagSize is the length of a derived author tag in bytes.
const AuthorTagSize = 32

// authorTagDomain separates author tag hashes from any other use of SHA3-256
// over credential material. Padded to a full 32-byte word before hashing.
const authorTagDomain = "anonboard:author-tag:v1"

var (
	ErrInvalidCredential = errors.New("invalid credential length")
	ErrInvalidAuthorTag  = errors.New("invalid author tag")
)

// Credential is a participant's private secret. It never leaves the
// participant's process: only tags derived from it are published.
type Credential []byte

// GenerateCredential returns a fresh credential read from crypto/rand.
func GenerateCredential() (Credential, error) {
	c := make([]byte, CredentialSize)
	if _, err := rand.Read(c); err != nil {
		return nil, err
	}
	return Credential(c), nil
}

// ParseCredential copies and validates raw credential bytes.
func ParseCredential(data []byte) (Credential, error) {
	if len(data) != CredentialSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidCredential, len(data), CredentialSize)
	}
	return Credential(slices.Clone(data)), nil
}

// NewCredentialFromString parses a hex-encoded credential.
func NewCredentialFromString(data string) (Credential, error) {
	raw, err := hex.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return ParseCredential(raw)
}

// CredentialFromSeed expands a master seed into a credential with HKDF-SHA256.
// Distinct info values yield independent credentials from the same seed.
func CredentialFromSeed(seed []byte, info string) (Credential, error) {
	if len(seed) == 0 {
		return nil, errors.New("empty seed")
	}
	kdf := hkdf.New(sha256.New, seed, nil, []byte(info))
	c := make([]byte, CredentialSize)
	if _, err := io.ReadFull(kdf, c); err != nil {
		return nil, err
	}
	return Credential(c), nil
}

// Validate reports whether the credential has the expected length.
func (c Credential) Validate() error {
	if len(c) != CredentialSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidCredential, len(c), CredentialSize)
	}
	return nil
}

// Bytes returns a copy of the credential material.
func (c Credential) Bytes() []byte {
	return slices.Clone(c)
}

// Hex encodes the credential for local storage. Never log the result.
func (c Credential) Hex() string {
	return hex.EncodeToString(c)
}

// String redacts the credential so it cannot leak through formatting.
func (c Credential) String() string {
	return "credential(redacted)"
}

// AuthorTag is the public, one-way commitment binding a post to the
// credential of its author and to the slot ordinal it was posted at.
type AuthorTag [AuthorTagSize]byte

// DeriveAuthorTag computes SHA3-256(domain || credential || slotID).
//
// The slot id is mixed in so that one credential produces unrelated tags
// for different posts; the tag only links back to the credential for
// someone who already holds it.
func DeriveAuthorTag(cred Credential, slotID uint64) (AuthorTag, error) {
	if err := cred.Validate(); err != nil {
		return AuthorTag{}, err
	}

	var domain [32]byte
	copy(domain[:], authorTagDomain)

	var slot [8]byte
	binary.BigEndian.PutUint64(slot[:], slotID)

	h := sha3.New256()
	h.Write(domain[:])
	h.Write(cred)
	h.Write(slot[:])

	var tag AuthorTag
	h.Sum(tag[:0])
	return tag, nil
}

// NewAuthorTagFromString parses a hex-encoded author tag.
func NewAuthorTagFromString(data string) (AuthorTag, error) {
	var tag AuthorTag
	raw, err := hex.DecodeString(data)
	if err != nil {
		return tag, fmt.Errorf("%w: %v", ErrInvalidAuthorTag, err)
	}
	if len(raw) != AuthorTagSize {
		return tag, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidAuthorTag, len(raw), AuthorTagSize)
	}
	copy(tag[:], raw)
	return tag, nil
}

// Equal compares tags in constant time.
func (t AuthorTag) Equal(other AuthorTag) bool {
	return subtle.ConstantTimeCompare(t[:], other[:]) == 1
}

// IsZero reports whether the tag is unset.
func (t AuthorTag) IsZero() bool {
	return t == AuthorTag{}
}

// String returns the hex encoding of the tag.
func (t AuthorTag) String() string {
	return hex.EncodeToString(t[:])
}

// MarshalText encodes the tag as hex. The zero tag encodes as an empty string.
func (t AuthorTag) MarshalText() ([]byte, error) {
	if t.IsZero() {
		return []byte{}, nil
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a hex tag; an empty string yields the zero tag.
func (t *AuthorTag) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*t = AuthorTag{}
		return nil
	}
	parsed, err := NewAuthorTagFromString(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
