package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Store keeps the access token in a single file. The dashboard counts as
// authenticated while that file holds a non-empty token.
type Store struct {
	Path string
}

// NewStore returns a store backed by path
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Token returns the stored token, or "" when there is none
func (s *Store) Token() (string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes token, readable only by the current user
func (s *Store) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(s.Path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Clear removes the token. Clearing an absent token is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// Authenticated reports whether a token is present
func (s *Store) Authenticated() bool {
	token, err := s.Token()
	return err == nil && token != ""
}
