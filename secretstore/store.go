// Package secretstore keeps a participant's credential on the participant's
// machine.
//
// A credential is created the first time it is requested and returned
// unchanged afterwards. It never leaves the store except to derive author
// tags locally.
package secretstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/flashbots/anonboard/crypto"
)

// Store provides the participant's credential.
type Store interface {
	// GetOrCreateCredential is idempotent.
	GetOrCreateCredential() (crypto.Credential, error)
}

// MemoryStore keeps a credential for the lifetime of the process.
type MemoryStore struct {
	mu   sync.Mutex
	cred crypto.Credential
}

// NewMemoryStore returns a store that generates its credential on first use.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWith returns a store holding cred.
func NewMemoryStoreWith(cred crypto.Credential) (*MemoryStore, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	return &MemoryStore{cred: cred}, nil
}

func (s *MemoryStore) GetOrCreateCredential() (crypto.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cred == nil {
		cred, err := crypto.GenerateCredential()
		if err != nil {
			return nil, err
		}
		s.cred = cred
	}
	return s.cred, nil
}

// FileStore keeps a hex-encoded credential in a file readable only by its owner.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on first use.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("empty credential path")
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// GetOrCreateCredential reads the file, creating it on first use.
func (s *FileStore) GetOrCreateCredential() (crypto.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, err := s.load()
	if err == nil {
		return cred, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cred, err = crypto.GenerateCredential()
	if err != nil {
		return nil, err
	}
	if err := s.write(cred); err != nil {
		return nil, err
	}

	// another process may have won the race to create the file
	return s.load()
}

func (s *FileStore) load() (crypto.Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	cred, err := crypto.NewCredentialFromString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("reading credential %s: %w", s.path, err)
	}
	return cred, nil
}

// write publishes cred atomically: the file either does not exist or holds a
// complete credential. An existing file is left untouched.
func (s *FileStore) write(cred crypto.Credential) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".credential-*")
	if err != nil {
		return fmt.Errorf("creating credential file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.WriteString(cred.Hex() + "\n")
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing credential file: %w", err)
	}

	if err := os.Link(tmp.Name(), s.path); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("publishing credential file: %w", err)
	}
	return nil
}

// DerivedStore derives its credential from a master seed, so several
// participants can be driven from a single secret.
type DerivedStore struct {
	cred crypto.Credential
}

// NewDerivedStore derives the credential for participant from seed.
func NewDerivedStore(seed []byte, participant string) (*DerivedStore, error) {
	cred, err := crypto.CredentialFromSeed(seed, participant)
	if err != nil {
		return nil, err
	}
	return &DerivedStore{cred: cred}, nil
}

func (s *DerivedStore) GetOrCreateCredential() (crypto.Credential, error) {
	return s.cred, nil
}
