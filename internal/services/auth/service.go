// -----------------------------------------------------------------------
// Auth Service - session lifecycle and validation
// -----------------------------------------------------------------------

package auth

import (
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curator/internal/common"
	"github.com/ternarybob/curator/internal/models"
	"github.com/ternarybob/curator/internal/storage"
)

// Service owns session creation and validation. Sessions are durable; a
// restart does not log users out.
type Service struct {
	sessions *storage.SessionStore
	config   *common.AuthConfig
	logger   arbor.ILogger

	now func() time.Time
}

func NewService(logger arbor.ILogger, sessions *storage.SessionStore, config *common.AuthConfig) *Service {
	return &Service{
		sessions: sessions,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Authenticate establishes a session. In single-user mode an empty user id
// binds the configured default user; multi-user mode requires one.
func (s *Service) Authenticate(userID string) (*models.Session, error) {
	if userID == "" {
		if s.config.MultiUser {
			return nil, models.NewInvalidParams("user_id is required in multi-user mode")
		}
		userID = s.config.DefaultUser
	}

	now := s.now().UTC()
	session := &models.Session{
		SessionID:    common.NewSessionID(),
		UserID:       userID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.config.SessionTTLDuration()),
		LastAccessed: now,
	}
	if err := s.sessions.SaveSession(session); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", userID).Str("session_id", session.SessionID).Msg("Session established")
	return session, nil
}

// Validate checks a user context against the session store. A valid check
// extends the session: last_accessed moves strictly forward and expiry is
// pushed out by the configured TTL. Any mismatch reads as the same
// invalid_request - which part failed is never leaked.
func (s *Service) Validate(userCtx models.UserContext) error {
	if userCtx.UserID == "" || userCtx.SessionID == "" {
		return models.NewInvalidRequest("missing user context")
	}

	session, err := s.sessions.GetSession(userCtx.SessionID)
	if err != nil {
		return models.NewInvalidRequest("invalid session")
	}

	now := s.now().UTC()
	if session.UserID != userCtx.UserID || !session.IsValid(now) {
		return models.NewInvalidRequest("invalid session")
	}

	session.LastAccessed = now
	session.ExpiresAt = now.Add(s.config.SessionTTLDuration())
	if err := s.sessions.SaveSession(session); err != nil {
		s.logger.Warn().Err(err).Str("session_id", session.SessionID).Msg("Failed to extend session")
	}
	return nil
}

// Invalidate revokes every session of one user.
func (s *Service) Invalidate(userID string) (int, error) {
	return s.sessions.InvalidateUserSessions(userID)
}

// PurgeExpired sweeps dead sessions out of the store.
func (s *Service) PurgeExpired() (int, error) {
	return s.sessions.PurgeExpired(s.now().UTC())
}
