package common

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewJobID generates a globally unique job ID.
// Format: job_<unix-millis>_<random-suffix> - the timestamp prefix keeps IDs
// roughly monotonic so job listings sort naturally by creation time.
func NewJobID() string {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		// Fall back to a UUID fragment; rand.Read failing means the system
		// entropy pool is broken, which uuid also draws from, but uuid
		// panics internally rather than returning an error here.
		return fmt.Sprintf("job_%d_%s", time.Now().UnixMilli(), uuid.New().String()[:8])
	}
	return fmt.Sprintf("job_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(suffix))
}

// NewSessionID generates a unique session ID with the "sess_" prefix
func NewSessionID() string {
	return "sess_" + uuid.New().String()
}

// NewPolicyID generates a unique cleanup policy ID with the "policy_" prefix
func NewPolicyID() string {
	return "policy_" + uuid.New().String()
}

// NewScheduleID generates a unique cleanup schedule ID with the "sched_" prefix
func NewScheduleID() string {
	return "sched_" + uuid.New().String()
}

// NewSearchID generates a unique saved search ID with the "search_" prefix
func NewSearchID() string {
	return "search_" + uuid.New().String()
}

// NewArchiveRecordID generates a unique archive record ID
func NewArchiveRecordID() string {
	return "arch_" + uuid.New().String()
}

// NewArchiveRuleID generates a unique archive rule ID with the "arule_" prefix
func NewArchiveRuleID() string {
	return "arule_" + uuid.New().String()
}
