package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func FuzzDeriveAuthorTag(f *testing.F) {
	f.Add(make([]byte, CredentialSize), uint64(0))
	f.Add(bytes.Repeat([]byte{0xff}, CredentialSize), uint64(1))
	f.Add([]byte("0123456789abcdef0123456789abcdef"), uint64(1<<63))
	f.Add([]byte("short"), uint64(3))

	f.Fuzz(func(t *testing.T, raw []byte, slotID uint64) {
		cred := Credential(raw)
		tag, err := DeriveAuthorTag(cred, slotID)

		// Invariant 1: only full-length credentials are accepted
		if len(raw) != CredentialSize {
			if !errors.Is(err, ErrInvalidCredential) {
				t.Fatalf("expected ErrInvalidCredential for %d bytes, got %v", len(raw), err)
			}
			return
		}
		if err != nil {
			t.Fatalf("derive failed: %v", err)
		}

		// Invariant 2: deterministic
		tag2, _ := DeriveAuthorTag(cred, slotID)
		if !tag.Equal(tag2) {
			t.Error("derivation is not deterministic")
		}

		// Invariant 3: the slot id changes the tag
		next, _ := DeriveAuthorTag(cred, slotID+1)
		if tag.Equal(next) {
			t.Error("tags for adjacent slots collide")
		}

		// Invariant 4: the credential changes the tag
		flipped := bytes.Clone(raw)
		flipped[0] ^= 0x01
		other, _ := DeriveAuthorTag(Credential(flipped), slotID)
		if tag.Equal(other) {
			t.Error("tags for distinct credentials collide")
		}

		// Invariant 5: the credential bytes do not appear in the tag
		if bytes.Contains(tag[:], raw[:8]) {
			t.Error("tag leaks credential prefix")
		}
	})
}

func FuzzAuthorTagText(f *testing.F) {
	f.Add(make([]byte, AuthorTagSize))
	f.Add(bytes.Repeat([]byte{0xab}, AuthorTagSize))

	f.Fuzz(func(t *testing.T, raw []byte) {
		if len(raw) != AuthorTagSize {
			t.Skip()
		}
		var tag AuthorTag
		copy(tag[:], raw)

		text, err := tag.MarshalText()
		if err != nil {
			t.Fatal(err)
		}

		var decoded AuthorTag
		if err := decoded.UnmarshalText(text); err != nil {
			t.Fatal(err)
		}
		if decoded != tag {
			t.Errorf("text round trip changed tag: %x != %x", decoded, tag)
		}
	})
}
