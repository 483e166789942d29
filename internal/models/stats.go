package models

// BucketStats aggregates one stats group.
type BucketStats struct {
	Count     int   `json:"count"`
	SizeBytes int64 `json:"size_bytes"`
}

// EmailStats is the aggregate view over a user's email index.
type EmailStats struct {
	TotalEmails    int                    `json:"total_emails"`
	TotalSizeBytes int64                  `json:"total_size_bytes"`
	Categorized    int                    `json:"categorized"`
	Archived       int                    `json:"archived"`
	GroupBy        string                 `json:"group_by,omitempty"`
	Buckets        map[string]BucketStats `json:"buckets,omitempty"`
}
