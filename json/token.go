package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fwojciec/converse"
)

// Interface compliance check.
var _ converse.TokenStore = (*TokenFile)(nil)

type tokenFileDTO struct {
	Token string `json:"token"`
}

// TokenFile stores the bearer token in a JSON file readable only by the
// owner. Writes replace the file atomically.
type TokenFile struct {
	path string
	mu   sync.Mutex
}

// NewTokenFile returns a TokenFile at path. The file need not exist.
func NewTokenFile(path string) *TokenFile {
	return &TokenFile{path: path}
}

// Path returns the file location.
func (f *TokenFile) Path() string { return f.path }

// Token returns the stored token, or "" when the file does not exist.
func (f *TokenFile) Token() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	var dto tokenFileDTO
	if err := decode("token file", data, &dto); err != nil {
		return "", err
	}
	return dto.Token, nil
}

// SetToken writes token, creating parent directories as needed.
func (f *TokenFile) SetToken(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(tokenFileDTO{Token: token})
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Clear removes the token file. A missing file is not an error.
func (f *TokenFile) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}
