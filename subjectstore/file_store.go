/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package subjectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// fileDocument is the on-disk layout of FileStore:
//
//	subjects:
//	  alice: $2a$10$...
//	  bob: ""
type fileDocument struct {
	Subjects map[string]string `yaml:"subjects"`
}

// FileStore is a Store backed by a YAML file.
// The file is read once on open; every save rewrites it atomically (write to a temp file, then rename).
type FileStore struct {
	path string

	mu     sync.RWMutex
	hashes map[string]string
}

var _ Store = (*FileStore)(nil)

// OpenFileStore reads the YAML file at path. A missing file is treated as an empty store.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, hashes: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read subjects file: %w", err)
	}
	var doc fileDocument
	if err = yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse subjects file %s: %w", path, err)
	}
	for subject, hash := range doc.Subjects {
		s.hashes[subject] = hash
	}
	return s, nil
}

// Len returns the number of known subjects.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hashes)
}

// LoadCredentialHash returns the stored hash of the subject.
func (s *FileStore) LoadCredentialHash(ctx context.Context, subject string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	hash, ok := s.hashes[subject]
	if !ok {
		return "", ErrSubjectNotFound
	}
	return hash, nil
}

// SaveCredentialHash stores the hash of the subject and persists the whole store.
// If writing the file fails, the in-memory state is left unchanged.
func (s *FileStore) SaveCredentialHash(ctx context.Context, subject string, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.hashes[subject]
	s.hashes[subject] = hash
	if err := s.flush(); err != nil {
		if existed {
			s.hashes[subject] = prev
		} else {
			delete(s.hashes, subject)
		}
		return err
	}
	return nil
}

func (s *FileStore) flush() error {
	data, err := yaml.Marshal(fileDocument{Subjects: s.hashes})
	if err != nil {
		return fmt.Errorf("marshal subjects: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp subjects file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write subjects file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close subjects file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod subjects file: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace subjects file: %w", err)
	}
	return nil
}
