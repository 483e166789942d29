package models

import "time"

// Session binds a transport connection to a user id, with expiry.
type Session struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id" badgerhold:"index"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastAccessed time.Time `json:"last_accessed"`
	Invalidated  bool      `json:"invalidated"`
}

// IsValid reports whether the session can authorize calls at the given time.
func (s *Session) IsValid(now time.Time) bool {
	return !s.Invalidated && now.Before(s.ExpiresAt)
}
