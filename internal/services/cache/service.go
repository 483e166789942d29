// Package cache provides the process-local TTL cache for analysis results
// and other derived data. Keys are namespaced per user so one user's flush
// can never evict another's entries.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curator/internal/common"
	"github.com/ternarybob/curator/internal/interfaces"
	"github.com/ternarybob/curator/internal/models"
)

const userKeyPrefix = "user:"

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Service is a mutex-guarded TTL map with a background sweep.
type Service struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration
	logger     arbor.ILogger

	hits    int64
	misses  int64
	evicted int64
}

// NewService creates the cache and starts its sweep goroutine. The sweep
// stops when ctx is cancelled.
func NewService(ctx context.Context, logger arbor.ILogger, defaultTTL time.Duration, sweepInterval time.Duration) *Service {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}

	s := &Service{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		logger:     logger,
	}

	common.SafeGoWithContext(ctx, logger, "cache-sweep", func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(time.Now())
			}
		}
	})

	return s
}

// Get returns the cached value and true when present and unexpired.
// An expired entry reads as a miss and is dropped on the spot.
func (s *Service) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		atomic.AddInt64(&s.misses, 1)
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		s.Delete(key)
		atomic.AddInt64(&s.misses, 1)
		return nil, false
	}

	atomic.AddInt64(&s.hits, 1)
	return e.value, true
}

// Set stores value under key for the given TTL.
func (s *Service) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Delete removes one key.
func (s *Service) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// DeletePrefix removes every key under the given prefix and returns the
// count.
func (s *Service) DeletePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	flushed := 0
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			flushed++
		}
	}
	return flushed
}

// FlushUser removes every entry belonging to userID and returns the count.
func (s *Service) FlushUser(userID string) int {
	flushed := s.DeletePrefix(userKeyPrefix + userID + ":")
	if flushed > 0 {
		s.logger.Debug().Str("user_id", userID).Int("flushed", flushed).Msg("Flushed user cache entries")
	}
	return flushed
}

// Stats returns a snapshot of the cache counters.
func (s *Service) Stats() interfaces.CacheStats {
	s.mu.RLock()
	entries := len(s.entries)
	s.mu.RUnlock()

	return interfaces.CacheStats{
		Hits:    atomic.LoadInt64(&s.hits),
		Misses:  atomic.LoadInt64(&s.misses),
		Entries: entries,
		Evicted: atomic.LoadInt64(&s.evicted),
	}
}

func (s *Service) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	swept := int64(0)
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
			swept++
		}
	}
	if swept > 0 {
		atomic.AddInt64(&s.evicted, swept)
		s.logger.Debug().Int64("swept", swept).Msg("Swept expired cache entries")
	}
}

// UserKey builds a namespaced cache key for one user.
// Shape: user:{user_id}:{kind}:{discriminator}.
func UserKey(userID, kind, discriminator string) string {
	return fmt.Sprintf("%s%s:%s:%s", userKeyPrefix, userID, kind, discriminator)
}

// ImportanceKey is the cache key of one email's importance verdict under a
// given fingerprint.
func ImportanceKey(userID, fingerprint string) string {
	return UserKey(userID, "importance", fingerprint)
}

// StatsKey is the cache key of an aggregate stats payload.
func StatsKey(userID, groupBy string) string {
	if groupBy == "" {
		groupBy = "totals"
	}
	return UserKey(userID, "stats", groupBy)
}

// StatsPrefix covers every grouping of one user's aggregate stats.
func StatsPrefix(userID string) string {
	return fmt.Sprintf("%s%s:stats:", userKeyPrefix, userID)
}

// EmailListKey is the cache key of one list/search result page. The criteria
// round-trips through canonical JSON so equal filters share an entry.
func EmailListKey(userID string, criteria *models.EmailCriteria) string {
	raw, err := json.Marshal(criteria)
	if err != nil {
		raw = []byte("all")
	}
	return UserKey(userID, "email-list", string(raw))
}

// EmailListPrefix covers every cached list page of one user.
func EmailListPrefix(userID string) string {
	return fmt.Sprintf("%s%s:email-list:", userKeyPrefix, userID)
}

// EmailKey is the cache key of one email record.
func EmailKey(userID, emailID string) string {
	return UserKey(userID, "email", emailID)
}

// EmailPrefix covers every cached single-email record of one user.
func EmailPrefix(userID string) string {
	return fmt.Sprintf("%s%s:email:", userKeyPrefix, userID)
}

// Ensure Service implements CacheService interface
var _ interfaces.CacheService = (*Service)(nil)
