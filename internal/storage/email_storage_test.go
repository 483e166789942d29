package storage

import (
	"testing"
	"time"

	"github.com/ternarybob/curator/internal/models"
)

func testUserDB(t *testing.T, factory *Factory, userID string) *UserDB {
	t.Helper()
	db, err := factory.DatabaseFor(userID)
	if err != nil {
		t.Fatalf("Failed to get database for %s: %v", userID, err)
	}
	return db
}

func seedEmail(id, userID, subject, sender string, year int, size int64) *models.EmailIndex {
	return &models.EmailIndex{
		ID:        id,
		UserID:    userID,
		Subject:   models.String(subject),
		Sender:    models.String(sender),
		Snippet:   models.String("snippet for " + subject),
		Date:      time.Date(year, 6, 15, 12, 0, 0, 0, time.UTC),
		Year:      year,
		SizeBytes: size,
	}
}

func TestSaveAndGetEmail(t *testing.T) {
	factory := newTestFactory(t)
	db := testUserDB(t, factory, "user-a")

	email := seedEmail("msg-1", "", "Quarterly report", "boss@corp.com", 2024, 2048)
	if err := db.SaveEmail(email); err != nil {
		t.Fatalf("SaveEmail failed: %v", err)
	}
	if email.UserID != "user-a" {
		t.Fatalf("Expected user id stamped, got %q", email.UserID)
	}

	got, err := db.GetEmail("msg-1")
	if err != nil {
		t.Fatalf("GetEmail failed: %v", err)
	}
	if *got.Subject != "Quarterly report" {
		t.Fatalf("Unexpected subject %q", *got.Subject)
	}

	if _, err := db.GetEmail("missing"); !models.IsNotFound(err) {
		t.Fatalf("Expected not_found, got %v", err)
	}
}

func TestSaveEmailRejectsForeignOwner(t *testing.T) {
	factory := newTestFactory(t)
	db := testUserDB(t, factory, "user-a")

	email := seedEmail("msg-1", "user-b", "Hello", "x@y.com", 2024, 100)
	if err := db.SaveEmail(email); err == nil {
		t.Fatal("Expected save of foreign-owned email to fail")
	}
}

func TestQueryEmailsCriteria(t *testing.T) {
	factory := newTestFactory(t)
	db := testUserDB(t, factory, "user-a")

	emails := []*models.EmailIndex{
		seedEmail("m1", "", "Invoice for March", "billing@vendor.com", 2023, 500),
		seedEmail("m2", "", "Team offsite", "hr@corp.com", 2024, 1500),
		seedEmail("m3", "", "Invoice overdue", "billing@vendor.com", 2024, 3000),
	}
	emails[1].Category = models.CategoryHigh
	emails[2].HasAttachments = true
	if err := db.SaveEmails(emails); err != nil {
		t.Fatal(err)
	}

	// Substring query over subject.
	results, total, err := db.QueryEmails(&models.EmailCriteria{Query: "invoice"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(results) != 2 {
		t.Fatalf("Expected 2 invoice matches, got total=%d len=%d", total, len(results))
	}

	// Sender substring plus year.
	results, _, err = db.QueryEmails(&models.EmailCriteria{Sender: "vendor", Year: 2024})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "m3" {
		t.Fatalf("Expected only m3, got %d results", len(results))
	}

	// Category filter.
	results, _, err = db.QueryEmails(&models.EmailCriteria{Category: string(models.CategoryHigh)})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "m2" {
		t.Fatalf("Expected only m2, got %d results", len(results))
	}

	// Stored categories are upper-case but callers may pass any casing.
	for _, category := range []string{"high", "High", "HIGH"} {
		results, total, err := db.QueryEmails(&models.EmailCriteria{Category: category})
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 1 || total != 1 || results[0].ID != "m2" {
			t.Fatalf("Category %q matched %d/%d, expected m2", category, len(results), total)
		}
	}

	// Size range.
	results, _, err = db.QueryEmails(&models.EmailCriteria{SizeMin: 1000, SizeMax: 2000})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "m2" {
		t.Fatalf("Expected only m2 in size range, got %d results", len(results))
	}

	// Attachment presence.
	yes := true
	results, _, err = db.QueryEmails(&models.EmailCriteria{HasAttachments: &yes})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "m3" {
		t.Fatalf("Expected only m3 with attachments, got %d results", len(results))
	}
}

func TestQueryEmailsPagination(t *testing.T) {
	factory := newTestFactory(t)
	db := testUserDB(t, factory, "user-a")

	for i := 0; i < 5; i++ {
		email := seedEmail(string(rune('a'+i)), "", "Email", "s@x.com", 2024, 100)
		email.Date = time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC)
		if err := db.SaveEmail(email); err != nil {
			t.Fatal(err)
		}
	}

	results, total, err := db.QueryEmails(&models.EmailCriteria{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 {
		t.Fatalf("Expected total 5 before pagination, got %d", total)
	}
	if len(results) != 2 {
		t.Fatalf("Expected page of 2, got %d", len(results))
	}
	// Newest first: offset 1 skips the newest (day 5).
	if results[0].ID != "d" || results[1].ID != "c" {
		t.Fatalf("Unexpected page order: %s, %s", results[0].ID, results[1].ID)
	}
}

func TestEmailUserIsolation(t *testing.T) {
	factory := newTestFactory(t)
	dbA := testUserDB(t, factory, "user-a")
	dbB := testUserDB(t, factory, "user-b")

	if err := dbA.SaveEmail(seedEmail("m1", "", "Private", "a@x.com", 2024, 100)); err != nil {
		t.Fatal(err)
	}
	if err := dbB.SaveEmail(seedEmail("m2", "", "Other", "b@x.com", 2024, 100)); err != nil {
		t.Fatal(err)
	}

	results, total, err := dbB.QueryEmails(nil)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || results[0].ID != "m2" {
		t.Fatalf("Expected user-b to see only its own email, got %d", total)
	}
}

func TestUncategorizedEmails(t *testing.T) {
	factory := newTestFactory(t)
	db := testUserDB(t, factory, "user-a")

	pending := seedEmail("m1", "", "Pending", "a@x.com", 2024, 100)
	done := seedEmail("m2", "", "Done", "a@x.com", 2024, 100)
	done.Category = models.CategoryLow
	if err := db.SaveEmails([]*models.EmailIndex{pending, done}); err != nil {
		t.Fatal(err)
	}

	uncategorized, err := db.UncategorizedEmails(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(uncategorized) != 1 || uncategorized[0].ID != "m1" {
		t.Fatalf("Expected only m1 uncategorized, got %d", len(uncategorized))
	}
}

func TestMarkArchivedAndDeleted(t *testing.T) {
	factory := newTestFactory(t)
	db := testUserDB(t, factory, "user-a")

	if err := db.SaveEmail(seedEmail("m1", "", "Old", "a@x.com", 2020, 100)); err != nil {
		t.Fatal(err)
	}

	when := time.Now().UTC()
	missing, err := db.MarkArchived([]string{"m1", "ghost"}, "gmail", when)
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 1 || missing[0] != "ghost" {
		t.Fatalf("Expected ghost reported missing, got %v", missing)
	}

	got, err := db.GetEmail("m1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Archived || got.ArchiveLocation != "gmail" || got.ArchiveDate == nil {
		t.Fatal("Archive fields not set")
	}

	if _, err := db.MarkDeleted([]string{"m1"}); err != nil {
		t.Fatal(err)
	}
	// Deleted emails drop out of queries but the record stays readable.
	_, total, err := db.QueryEmails(nil)
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Fatalf("Expected deleted email excluded from queries, got %d", total)
	}
	if _, err := db.GetEmail("m1"); err != nil {
		t.Fatalf("Expected deleted email still readable by id: %v", err)
	}
}

func TestEmailStats(t *testing.T) {
	factory := newTestFactory(t)
	db := testUserDB(t, factory, "user-a")

	e1 := seedEmail("m1", "", "One", "a@x.com", 2023, 100)
	e1.Category = models.CategoryHigh
	e2 := seedEmail("m2", "", "Two", "b@x.com", 2024, 200)
	e2.Archived = true
	e3 := seedEmail("m3", "", "Three", "a@x.com", 2024, 300)
	if err := db.SaveEmails([]*models.EmailIndex{e1, e2, e3}); err != nil {
		t.Fatal(err)
	}

	stats, err := db.EmailStats("year")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalEmails != 3 || stats.TotalSizeBytes != 600 {
		t.Fatalf("Unexpected totals: %d emails, %d bytes", stats.TotalEmails, stats.TotalSizeBytes)
	}
	if stats.Categorized != 1 || stats.Archived != 1 {
		t.Fatalf("Unexpected derived counts: categorized=%d archived=%d", stats.Categorized, stats.Archived)
	}
	if stats.Buckets["2024"].Count != 2 || stats.Buckets["2024"].SizeBytes != 500 {
		t.Fatalf("Unexpected 2024 bucket: %+v", stats.Buckets["2024"])
	}

	stats, err = db.EmailStats("category")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Buckets["HIGH"].Count != 1 || stats.Buckets["uncategorized"].Count != 2 {
		t.Fatalf("Unexpected category buckets: %+v", stats.Buckets)
	}

	stats, err = db.EmailStats("archived")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Buckets["active"].Count != 2 || stats.Buckets["archived"].Count != 1 {
		t.Fatalf("Unexpected archived buckets: %+v", stats.Buckets)
	}

	// "all" is totals only, no buckets.
	stats, err = db.EmailStats("all")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Buckets != nil || stats.TotalEmails != 3 {
		t.Fatalf("Unexpected totals aggregate: %+v", stats)
	}

	if _, err := db.EmailStats("bogus"); err == nil {
		t.Fatal("Expected unsupported group_by to be rejected")
	}
}
