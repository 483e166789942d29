// -----------------------------------------------------------------------
// Session Storage - durable sessions, shared across all users
// -----------------------------------------------------------------------

package storage

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/curator/internal/models"
)

// SessionStore persists sessions in the system database. Sessions map a
// transport-level id to a user, so they live outside the per-user databases.
type SessionStore struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSessionStore creates a session store over the system database.
func NewSessionStore(db *BadgerDB, logger arbor.ILogger) *SessionStore {
	return &SessionStore{
		db:     db,
		logger: logger,
	}
}

// SaveSession persists one session.
func (s *SessionStore) SaveSession(session *models.Session) error {
	if session.SessionID == "" {
		return fmt.Errorf("session ID is required")
	}
	if err := s.db.Store().Upsert(session.SessionID, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession fetches one session by id.
func (s *SessionStore) GetSession(sessionID string) (*models.Session, error) {
	var session models.Session
	if err := s.db.Store().Get(sessionID, &session); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.NewNotFound("session not found: %s", sessionID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// DeleteSession removes one session. Deleting an absent session is not an
// error.
func (s *SessionStore) DeleteSession(sessionID string) error {
	if err := s.db.Store().Delete(sessionID, &models.Session{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// InvalidateUserSessions marks every session of one user invalid.
func (s *SessionStore) InvalidateUserSessions(userID string) (int, error) {
	var sessions []models.Session
	if err := s.db.Store().Find(&sessions, badgerhold.Where("UserID").Eq(userID)); err != nil {
		return 0, fmt.Errorf("failed to find sessions for user: %w", err)
	}

	invalidated := 0
	for i := range sessions {
		if sessions[i].Invalidated {
			continue
		}
		sessions[i].Invalidated = true
		if err := s.SaveSession(&sessions[i]); err != nil {
			return invalidated, err
		}
		invalidated++
	}
	return invalidated, nil
}

// PurgeExpired removes sessions that expired before now. Returns the number
// removed.
func (s *SessionStore) PurgeExpired(now time.Time) (int, error) {
	var sessions []models.Session
	if err := s.db.Store().Find(&sessions, badgerhold.Where("SessionID").Ne("")); err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	purged := 0
	for i := range sessions {
		session := &sessions[i]
		if now.Before(session.ExpiresAt) && !session.Invalidated {
			continue
		}
		if err := s.DeleteSession(session.SessionID); err != nil {
			return purged, err
		}
		purged++
	}

	if purged > 0 {
		s.logger.Debug().Int("purged", purged).Msg("Expired sessions purged")
	}
	return purged, nil
}
