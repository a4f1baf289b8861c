// Package credentials stores the bearer token sent with comparison requests.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const EnvVar = "BRASSBOOK_TOKEN"

var ErrNoToken = errors.New("no access token stored")

// Store reads the token from the environment first, then from a file.
type Store struct {
	Env  string
	Path string
}

// DefaultPath is $XDG_CONFIG_HOME/brassbook/token or the platform equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "brassbook", "token")
}

func NewStore() *Store {
	return &Store{Env: EnvVar, Path: DefaultPath()}
}

func (s *Store) Token() (string, error) {
	if s.Env != "" {
		if tok := strings.TrimSpace(os.Getenv(s.Env)); tok != "" {
			return tok, nil
		}
	}
	if s.Path == "" {
		return "", ErrNoToken
	}
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

func (s *Store) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("creating token dir: %w", err)
	}
	if err := os.WriteFile(s.Path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	return nil
}

// Clear removes the stored token file.
func (s *Store) Clear() error {
	err := os.Remove(s.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Static is a fixed token, mostly for tests and one-off CLI flags.
type Static string

func (s Static) Token() (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}
