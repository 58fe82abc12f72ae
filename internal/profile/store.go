// Package profile manages per-site persistent browser profile directories.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Info describes one persisted authentication profile.
type Info struct {
	SiteName    string    `json:"site_name"`
	ProfilePath string    `json:"profile_path"`
	CreatedTime time.Time `json:"created_time"`
}

// Store owns the profile root directory. Profile paths are a deterministic
// function of the site name; two sites never share a path.
type Store struct {
	root   string
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates the root directory (including parents) if absent.
func NewStore(root string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve profile root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create profile root: %w", err)
	}
	return &Store{
		root:   abs,
		logger: logger,
		locks:  map[string]*sync.Mutex{},
	}, nil
}

// Path returns the profile directory for a site. It does not guarantee the
// directory exists.
func (s *Store) Path(siteName string) string {
	return filepath.Join(s.root, siteName)
}

// Ensure creates the profile directory if needed and returns its path.
func (s *Store) Ensure(siteName string) (string, error) {
	path := s.Path(siteName)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create profile %s: %w", siteName, err)
	}
	return path, nil
}

// Exists reports whether a profile directory has been materialized.
func (s *Store) Exists(siteName string) bool {
	info, err := os.Stat(s.Path(siteName))
	return err == nil && info.IsDir()
}

// List enumerates immediate subdirectories of the root. Non-directory
// entries are ignored.
func (s *Store) List() (map[string]Info, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read profile root: %w", err)
	}
	profiles := make(map[string]Info)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		created := time.Time{}
		if fi, err := entry.Info(); err == nil {
			created = fi.ModTime().UTC()
		}
		profiles[entry.Name()] = Info{
			SiteName:    entry.Name(),
			ProfilePath: s.Path(entry.Name()),
			CreatedTime: created,
		}
	}
	return profiles, nil
}

// Delete recursively removes the profile directory. Returns whether it
// existed; repeated deletes are idempotent.
func (s *Store) Delete(siteName string) (bool, error) {
	path := s.Path(siteName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.RemoveAll(path); err != nil {
		return false, fmt.Errorf("delete profile %s: %w", siteName, err)
	}
	s.logger.Info("deleted auth profile", zap.String("site", siteName))
	return true, nil
}

// Lock acquires the per-site advisory lock. A persistent-context profile
// directory must not be opened by two browser sessions at once; every
// orchestrated session holds this lock for its whole duration.
func (s *Store) Lock(siteName string) func() {
	s.mu.Lock()
	l, ok := s.locks[siteName]
	if !ok {
		l = &sync.Mutex{}
		s.locks[siteName] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// TryLock acquires the per-site lock without blocking; ok reports success.
func (s *Store) TryLock(siteName string) (func(), bool) {
	s.mu.Lock()
	l, ok := s.locks[siteName]
	if !ok {
		l = &sync.Mutex{}
		s.locks[siteName] = l
	}
	s.mu.Unlock()
	if !l.TryLock() {
		return nil, false
	}
	return l.Unlock, true
}
