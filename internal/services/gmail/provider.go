package gmail

import (
	"context"
	"sync"

	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/ternarybob/curator/internal/common"
	"github.com/ternarybob/curator/internal/interfaces"
	"github.com/ternarybob/curator/internal/services/auth"
)

// Provider resolves per-user Gmail clients from the token vault, memoizing
// them for the process lifetime.
type Provider struct {
	vault  *auth.TokenVault
	config *common.GmailConfig
	logger arbor.ILogger

	mu      sync.Mutex
	clients map[string]*Client
}

func NewProvider(logger arbor.ILogger, vault *auth.TokenVault, config *common.GmailConfig) *Provider {
	return &Provider{
		vault:   vault,
		config:  config,
		logger:  logger,
		clients: make(map[string]*Client),
	}
}

// GmailFor returns the authenticated client for userID, building it from
// the stored token on first use. Users without stored credentials fail with
// not_found.
func (p *Provider) GmailFor(ctx context.Context, userID string) (interfaces.GmailService, error) {
	p.mu.Lock()
	if client, ok := p.clients[userID]; ok {
		p.mu.Unlock()
		return client, nil
	}
	p.mu.Unlock()

	token, err := p.vault.Load(userID)
	if err != nil {
		return nil, err
	}

	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	if err != nil {
		return nil, err
	}
	client := NewClient(p.logger, svc, p.config)

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.clients[userID]; ok {
		return existing, nil
	}
	p.clients[userID] = client
	p.logger.Debug().Str("user_id", userID).Msg("Gmail client initialized")
	return client, nil
}

// Ensure Provider implements GmailProvider
var _ interfaces.GmailProvider = (*Provider)(nil)
