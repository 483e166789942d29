// -----------------------------------------------------------------------
// User Database Factory - one isolated database per user
// -----------------------------------------------------------------------

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curator/internal/common"
)

// userIDPattern guards against path traversal through crafted user ids.
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._@-]+$`)

// Factory opens and memoizes one database handle per user. The handle it
// returns is already user-bound: no API on UserDB accepts a foreign user id.
type Factory struct {
	config  *common.StorageConfig
	logger  arbor.ILogger
	mu      sync.Mutex
	handles map[string]*UserDB
	closed  bool
}

// NewFactory creates the per-user database factory rooted at the configured
// storage path.
func NewFactory(logger arbor.ILogger, config *common.StorageConfig) (*Factory, error) {
	usersDir := filepath.Join(config.Path, "users")
	if err := os.MkdirAll(usersDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create users directory: %w", err)
	}

	return &Factory{
		config:  config,
		logger:  logger,
		handles: make(map[string]*UserDB),
	}, nil
}

// DatabaseFor returns the database handle for userID, initializing it on
// first use. Subsequent calls return the existing handle.
func (f *Factory) DatabaseFor(userID string) (*UserDB, error) {
	if !userIDPattern.MatchString(userID) {
		return nil, fmt.Errorf("invalid user id %q", userID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, fmt.Errorf("database factory is closed")
	}

	if handle, ok := f.handles[userID]; ok {
		return handle, nil
	}

	path := filepath.Join(f.config.Path, "users", userID)
	db, err := NewBadgerDB(f.logger, path, f.config.ResetOnStartup)
	if err != nil {
		return nil, fmt.Errorf("failed to open database for user %s: %w", userID, err)
	}

	handle := newUserDB(userID, db, f.logger)
	f.handles[userID] = handle

	f.logger.Info().Str("user_id", userID).Str("path", path).Msg("User database initialized")
	return handle, nil
}

// KnownUsers lists users that have a database on disk, whether or not their
// handle is currently open. Used by the startup job reaper.
func (f *Factory) KnownUsers() ([]string, error) {
	usersDir := filepath.Join(f.config.Path, "users")
	entries, err := os.ReadDir(usersDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read users directory: %w", err)
	}

	var users []string
	for _, entry := range entries {
		if entry.IsDir() && userIDPattern.MatchString(entry.Name()) {
			users = append(users, entry.Name())
		}
	}
	return users, nil
}

// Close closes every open handle. The factory is unusable afterwards.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	for userID, handle := range f.handles {
		if err := handle.close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close database for user %s: %w", userID, err)
		}
	}
	f.handles = make(map[string]*UserDB)
	f.closed = true
	return firstErr
}
