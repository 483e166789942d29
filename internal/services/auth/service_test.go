package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curator/internal/common"
	"github.com/ternarybob/curator/internal/models"
	"github.com/ternarybob/curator/internal/storage"
)

func newTestAuth(t *testing.T, config *common.AuthConfig) *Service {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := storage.NewBadgerDB(logger, filepath.Join(t.TempDir(), "system"), false)
	if err != nil {
		t.Fatalf("Failed to open system database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(logger, storage.NewSessionStore(db, logger), config)
}

func singleUserConfig() *common.AuthConfig {
	return &common.AuthConfig{DefaultUser: "default", SessionTTL: "24h"}
}

func TestAuthenticateSingleUser(t *testing.T) {
	service := newTestAuth(t, singleUserConfig())

	session, err := service.Authenticate("")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if session.UserID != "default" {
		t.Fatalf("Expected default user bound, got %q", session.UserID)
	}
	if session.SessionID == "" {
		t.Fatal("Expected a session id")
	}
	if !session.ExpiresAt.After(session.CreatedAt) {
		t.Fatal("Session expires before creation")
	}
}

func TestAuthenticateMultiUserRequiresID(t *testing.T) {
	config := singleUserConfig()
	config.MultiUser = true
	service := newTestAuth(t, config)

	if _, err := service.Authenticate(""); err == nil {
		t.Fatal("Expected empty user_id to be rejected in multi-user mode")
	}

	session, err := service.Authenticate("alice")
	if err != nil {
		t.Fatal(err)
	}
	if session.UserID != "alice" {
		t.Fatalf("Expected alice, got %q", session.UserID)
	}
}

func TestValidateExtendsSession(t *testing.T) {
	service := newTestAuth(t, singleUserConfig())
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return base }

	session, err := service.Authenticate("")
	if err != nil {
		t.Fatal(err)
	}

	// Validation an hour later pushes expiry out and moves last_accessed
	// strictly forward.
	service.now = func() time.Time { return base.Add(time.Hour) }
	userCtx := models.UserContext{UserID: session.UserID, SessionID: session.SessionID}
	if err := service.Validate(userCtx); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if err := service.Validate(userCtx); err != nil {
		t.Fatalf("Second validate failed: %v", err)
	}
}

func TestValidateFailuresAreUniform(t *testing.T) {
	service := newTestAuth(t, singleUserConfig())

	session, err := service.Authenticate("")
	if err != nil {
		t.Fatal(err)
	}

	cases := []models.UserContext{
		{}, // missing everything
		{UserID: "default"},                                // missing session
		{UserID: "default", SessionID: "sess_bogus"},       // unknown session
		{UserID: "intruder", SessionID: session.SessionID}, // wrong user
	}
	for i, userCtx := range cases {
		err := service.Validate(userCtx)
		if err == nil {
			t.Fatalf("Case %d: expected validation failure", i)
		}
		protocolErr, ok := models.AsProtocolError(err)
		if !ok || protocolErr.Code != models.ErrCodeInvalidRequest {
			t.Fatalf("Case %d: expected invalid_request, got %v", i, err)
		}
	}
}

func TestValidateExpiredSession(t *testing.T) {
	service := newTestAuth(t, singleUserConfig())

	session, err := service.Authenticate("")
	if err != nil {
		t.Fatal(err)
	}

	service.now = func() time.Time { return time.Now().UTC().Add(25 * time.Hour) }
	userCtx := models.UserContext{UserID: session.UserID, SessionID: session.SessionID}
	if err := service.Validate(userCtx); err == nil {
		t.Fatal("Expected expired session to be rejected")
	}
}

func TestInvalidateUserSessions(t *testing.T) {
	service := newTestAuth(t, singleUserConfig())

	session, err := service.Authenticate("")
	if err != nil {
		t.Fatal(err)
	}

	count, err := service.Invalidate("default")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 session invalidated, got %d", count)
	}

	userCtx := models.UserContext{UserID: session.UserID, SessionID: session.SessionID}
	if err := service.Validate(userCtx); err == nil {
		t.Fatal("Invalidated session still validates")
	}
}
