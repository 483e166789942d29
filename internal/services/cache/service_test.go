package cache

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curator/internal/models"
)

func newTestCache(t *testing.T) *Service {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewService(ctx, arbor.NewLogger(), time.Hour, time.Hour)
}

func TestSetGetDelete(t *testing.T) {
	s := newTestCache(t)

	key := UserKey("user-a", "stats", "year")
	s.Set(key, 42, time.Minute)

	value, ok := s.Get(key)
	if !ok {
		t.Fatal("Expected cache hit")
	}
	if value.(int) != 42 {
		t.Fatalf("Unexpected value %v", value)
	}

	s.Delete(key)
	if _, ok := s.Get(key); ok {
		t.Fatal("Expected miss after delete")
	}
}

func TestExpiredEntryReadsAsMiss(t *testing.T) {
	s := newTestCache(t)

	key := UserKey("user-a", "importance", "fp")
	s.Set(key, "cached", time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	if _, ok := s.Get(key); ok {
		t.Fatal("Expected expired entry to read as a miss")
	}
}

func TestFlushUserIsScoped(t *testing.T) {
	s := newTestCache(t)

	s.Set(UserKey("user-a", "stats", "year"), 1, time.Minute)
	s.Set(UserKey("user-a", "importance", "fp"), 2, time.Minute)
	s.Set(UserKey("user-b", "stats", "year"), 3, time.Minute)

	flushed := s.FlushUser("user-a")
	if flushed != 2 {
		t.Fatalf("Expected 2 entries flushed, got %d", flushed)
	}

	if _, ok := s.Get(UserKey("user-a", "stats", "year")); ok {
		t.Fatal("user-a entry survived the flush")
	}
	if _, ok := s.Get(UserKey("user-b", "stats", "year")); !ok {
		t.Fatal("user-b entry evicted by user-a's flush")
	}
}

func TestFlushUserPrefixBoundary(t *testing.T) {
	s := newTestCache(t)

	// "user-a" must not flush "user-ab".
	s.Set(UserKey("user-ab", "stats", "year"), 1, time.Minute)
	if flushed := s.FlushUser("user-a"); flushed != 0 {
		t.Fatalf("Flush crossed the user boundary: %d", flushed)
	}
}

func TestStatsCounters(t *testing.T) {
	s := newTestCache(t)

	key := UserKey("user-a", "stats", "totals")
	s.Get(key) // miss
	s.Set(key, 1, time.Minute)
	s.Get(key) // hit

	stats := s.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("Unexpected counters: hits=%d misses=%d", stats.Hits, stats.Misses)
	}
	if stats.Entries != 1 {
		t.Fatalf("Expected 1 entry, got %d", stats.Entries)
	}
}

func TestKeyShapes(t *testing.T) {
	if got := UserKey("u1", "stats", "year"); got != "user:u1:stats:year" {
		t.Fatalf("Unexpected key %q", got)
	}
	if got := ImportanceKey("u1", "abc"); got != "user:u1:importance:abc" {
		t.Fatalf("Unexpected key %q", got)
	}
	if got := StatsKey("u1", ""); got != "user:u1:stats:totals" {
		t.Fatalf("Unexpected key %q", got)
	}
	if got := EmailKey("u1", "m1"); got != "user:u1:email:m1" {
		t.Fatalf("Unexpected key %q", got)
	}
}

func TestEmailListKeyCanonical(t *testing.T) {
	a := EmailListKey("u1", &models.EmailCriteria{Year: 2024, Limit: 10})
	b := EmailListKey("u1", &models.EmailCriteria{Year: 2024, Limit: 10})
	if a != b {
		t.Fatalf("Equal criteria produced different keys: %q vs %q", a, b)
	}
	c := EmailListKey("u1", &models.EmailCriteria{Year: 2023, Limit: 10})
	if a == c {
		t.Fatal("Different criteria collided on one key")
	}
}

func TestDeletePrefixIsScoped(t *testing.T) {
	s := newTestCache(t)

	s.Set(StatsKey("u1", "year"), 1, time.Minute)
	s.Set(StatsKey("u1", ""), 2, time.Minute)
	s.Set(EmailListKey("u1", &models.EmailCriteria{Year: 2024}), 3, time.Minute)
	s.Set(EmailKey("u1", "m1"), 4, time.Minute)
	s.Set(StatsKey("u2", "year"), 5, time.Minute)

	if deleted := s.DeletePrefix(StatsPrefix("u1")); deleted != 2 {
		t.Fatalf("Expected 2 stats entries deleted, got %d", deleted)
	}
	if _, ok := s.Get(EmailKey("u1", "m1")); !ok {
		t.Fatal("Email entry evicted by a stats flush")
	}
	if _, ok := s.Get(StatsKey("u2", "year")); !ok {
		t.Fatal("Stats flush crossed the user boundary")
	}

	// The single-record prefix must not clip list pages.
	if deleted := s.DeletePrefix(EmailPrefix("u1")); deleted != 1 {
		t.Fatalf("Expected 1 email entry deleted, got %d", deleted)
	}
	if _, ok := s.Get(EmailListKey("u1", &models.EmailCriteria{Year: 2024})); !ok {
		t.Fatal("List page evicted by the single-record flush")
	}
	if deleted := s.DeletePrefix(EmailListPrefix("u1")); deleted != 1 {
		t.Fatalf("Expected 1 list page deleted, got %d", deleted)
	}
}
