// -----------------------------------------------------------------------
// Gmail Client - rate-limited, retrying wrapper over the vendor API
// -----------------------------------------------------------------------

package gmail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/ternarybob/curator/internal/common"
	"github.com/ternarybob/curator/internal/interfaces"
	"github.com/ternarybob/curator/internal/models"
)

// metadataHeaders are the only headers fetched; bodies never leave Gmail.
var metadataHeaders = []string{"Subject", "From", "To", "Date"}

// perMessageFallbackMax bounds the batch size for which a failed batch falls
// back to individual fetches.
const perMessageFallbackMax = 10

// Client implements GmailService over the REST API for one user. Every call
// passes the token-bucket limiter and carries the configured timeout;
// transient failures retry with bounded backoff.
type Client struct {
	svc     *gmailapi.Service
	config  *common.GmailConfig
	limiter *rate.Limiter
	logger  arbor.ILogger
}

func NewClient(logger arbor.ILogger, svc *gmailapi.Service, config *common.GmailConfig) *Client {
	rps := config.RatePerSecond
	if rps < 1 {
		rps = 10
	}
	return &Client{
		svc:     svc,
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		logger:  logger,
	}
}

func (c *Client) ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error) {
	if max <= 0 {
		max = int64(c.config.BatchSize)
	}

	var ids []string
	pageToken := ""
	for int64(len(ids)) < max {
		var resp *gmailapi.ListMessagesResponse
		err := c.call(ctx, func(callCtx context.Context) error {
			call := c.svc.Users.Messages.List("me").
				Q(query).
				MaxResults(max - int64(len(ids))).
				Context(callCtx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var callErr error
			resp, callErr = call.Do()
			return callErr
		})
		if err != nil {
			return nil, err
		}

		for _, msg := range resp.Messages {
			ids = append(ids, msg.Id)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return ids, nil
}

func (c *Client) FetchMessages(ctx context.Context, ids []string) ([]*models.EmailIndex, []string, error) {
	emails := make([]*models.EmailIndex, 0, len(ids))
	var missing []string

	batchErr := c.fetchBatch(ctx, ids, &emails, &missing)
	if batchErr == nil {
		return emails, missing, nil
	}
	if len(ids) > perMessageFallbackMax {
		return nil, nil, batchErr
	}

	// Small batches retry message by message so one poisoned id cannot
	// sink the rest.
	c.logger.Warn().Err(batchErr).Int("batch", len(ids)).Msg("Batch fetch failed - falling back to per-message fetch")
	emails = emails[:0]
	missing = missing[:0]
	for _, id := range ids {
		email, err := c.fetchOne(ctx, id)
		if err != nil {
			if models.IsNotFound(err) {
				missing = append(missing, id)
				continue
			}
			c.logger.Warn().Err(err).Str("message_id", id).Msg("Per-message fetch failed - recording as missing")
			missing = append(missing, id)
			continue
		}
		emails = append(emails, email)
	}
	return emails, missing, nil
}

func (c *Client) fetchBatch(ctx context.Context, ids []string, emails *[]*models.EmailIndex, missing *[]string) error {
	for _, id := range ids {
		email, err := c.fetchOne(ctx, id)
		if err != nil {
			if models.IsNotFound(err) {
				*missing = append(*missing, id)
				continue
			}
			return err
		}
		*emails = append(*emails, email)
	}
	return nil
}

func (c *Client) fetchOne(ctx context.Context, id string) (*models.EmailIndex, error) {
	var msg *gmailapi.Message
	err := c.call(ctx, func(callCtx context.Context) error {
		var callErr error
		msg, callErr = c.svc.Users.Messages.Get("me", id).
			Format("metadata").
			MetadataHeaders(metadataHeaders...).
			Context(callCtx).
			Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return messageToIndex(msg), nil
}

func (c *Client) Archive(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.call(ctx, func(callCtx context.Context) error {
		return c.svc.Users.Messages.BatchModify("me", &gmailapi.BatchModifyMessagesRequest{
			Ids:            ids,
			RemoveLabelIds: []string{models.LabelInbox},
		}).Context(callCtx).Do()
	})
}

func (c *Client) Trash(ctx context.Context, ids []string) error {
	for _, id := range ids {
		err := c.call(ctx, func(callCtx context.Context) error {
			_, callErr := c.svc.Users.Messages.Trash("me", id).Context(callCtx).Do()
			return callErr
		})
		if err != nil && !models.IsNotFound(err) {
			return err
		}
	}
	return nil
}

// call wraps one API operation with rate limiting, a per-call timeout and
// bounded backoff on transient failures.
func (c *Client) call(ctx context.Context, op func(context.Context) error) error {
	retries := c.config.MaxRetries
	if retries < 0 {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeoutDuration())
		err := op(callCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = classify(err)

		pe, ok := models.AsProtocolError(lastErr)
		if !ok || pe.Code != models.ErrCodeTransient {
			return lastErr
		}

		backoff := time.Duration(1<<attempt) * 500 * time.Millisecond
		c.logger.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", backoff).Msg("Transient Gmail failure - retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}

// classify maps vendor errors onto the protocol taxonomy.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 404:
			return models.NewNotFound("message not found upstream")
		case apiErr.Code == 429 || apiErr.Code >= 500:
			return models.NewTransient(err, "gmail api failure (%d)", apiErr.Code)
		default:
			return fmt.Errorf("gmail api error: %w", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewTransient(err, "gmail call timed out")
	}
	return fmt.Errorf("gmail call failed: %w", err)
}

// messageToIndex maps a vendor message onto the index record. Absent
// subject/sender stay nil so categorization can flag them instead of
// defaulting.
func messageToIndex(msg *gmailapi.Message) *models.EmailIndex {
	email := &models.EmailIndex{
		ID:        msg.Id,
		ThreadID:  msg.ThreadId,
		Labels:    msg.LabelIds,
		SizeBytes: msg.SizeEstimate,
		Snippet:   models.String(msg.Snippet),
	}

	if msg.InternalDate > 0 {
		email.Date = time.UnixMilli(msg.InternalDate).UTC()
		email.Year = email.Date.Year()
	}

	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			switch strings.ToLower(header.Name) {
			case "subject":
				email.Subject = models.String(header.Value)
			case "from":
				email.Sender = models.String(header.Value)
			case "to":
				email.Recipients = splitRecipients(header.Value)
			}
		}
		for _, part := range msg.Payload.Parts {
			if part.Filename != "" {
				email.HasAttachments = true
				break
			}
		}
	}
	return email
}

func splitRecipients(value string) []string {
	parts := strings.Split(value, ",")
	recipients := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			recipients = append(recipients, trimmed)
		}
	}
	return recipients
}

// Ensure Client implements GmailService
var _ interfaces.GmailService = (*Client)(nil)
