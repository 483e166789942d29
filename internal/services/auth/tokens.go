// -----------------------------------------------------------------------
// Token Vault - OAuth tokens encrypted at rest
// -----------------------------------------------------------------------

package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2"

	"github.com/ternarybob/curator/internal/models"
)

// TokenVault stores per-user OAuth tokens under the storage root, encrypted
// with AES-GCM. The key is derived from the configured symmetric secret.
type TokenVault struct {
	dir    string
	key    [32]byte
	logger arbor.ILogger
}

// NewTokenVault creates the vault directory and derives the cipher key.
func NewTokenVault(logger arbor.ILogger, storagePath, secret string) (*TokenVault, error) {
	if secret == "" {
		return nil, fmt.Errorf("token encryption key is required")
	}

	dir := filepath.Join(storagePath, "tokens")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}

	return &TokenVault{
		dir:    dir,
		key:    sha256.Sum256([]byte(secret)),
		logger: logger,
	}, nil
}

// Store encrypts and persists one user's token.
func (v *TokenVault) Store(userID string, token *oauth2.Token) error {
	plaintext, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	gcm, err := v.cipher()
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, plaintext, nil)

	if err := os.WriteFile(v.path(userID), sealed, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	v.logger.Debug().Str("user_id", userID).Msg("Token stored")
	return nil
}

// Load decrypts one user's token. Absent tokens read as not found.
func (v *TokenVault) Load(userID string) (*oauth2.Token, error) {
	sealed, err := os.ReadFile(v.path(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.NewNotFound("no stored credentials for user %s", userID)
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	gcm, err := v.cipher()
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, models.NewDataIntegrity("token file for user %s is truncated", userID)
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, models.NewDataIntegrity("token file for user %s failed decryption", userID)
	}

	var token oauth2.Token
	if err := json.Unmarshal(plaintext, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &token, nil
}

// Delete removes one user's stored token.
func (v *TokenVault) Delete(userID string) error {
	if err := os.Remove(v.path(userID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete token file: %w", err)
	}
	return nil
}

func (v *TokenVault) path(userID string) string {
	return filepath.Join(v.dir, userID+".token")
}

func (v *TokenVault) cipher() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
