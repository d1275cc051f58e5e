package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TokenStore persists the session token between runs.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// FileTokenStore keeps the token in a single 0600 file.
type FileTokenStore struct {
	path string
}

func NewFileTokenStore(path string) *FileTokenStore { return &FileTokenStore{path: path} }

// DefaultTokenPath is ~/.config/docshare/token, or the OS equivalent.
func DefaultTokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "docshare", "token"), nil
}

// Load returns "" with no error when nothing has been saved.
func (s *FileTokenStore) Load() (string, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func (s *FileTokenStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(token), 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileTokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// MemoryTokenStore keeps the token for the life of the process only.
type MemoryTokenStore struct{ token string }

func (m *MemoryTokenStore) Load() (string, error)   { return m.token, nil }
func (m *MemoryTokenStore) Save(token string) error { m.token = token; return nil }
func (m *MemoryTokenStore) Clear() error            { m.token = ""; return nil }
