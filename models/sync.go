package models

import "time"

// SyncJob tracks a single upload attempt of an event archive.
type SyncJob struct {
	ID          int64      `json:"id"           db:"id"`
	EventID     string     `json:"event_id"     db:"event_id"`
	TicketID    string     `json:"ticket_id"    db:"ticket_id"`
	ArchiveSHA  string     `json:"archive_sha"  db:"archive_sha"`
	ArchiveSize int64      `json:"archive_size" db:"archive_size"`
	Status      string     `json:"status"       db:"status"` // pending|uploading|processing|done|failed
	Attempts    int        `json:"attempts"     db:"attempts"`
	ErrorMsg    string     `json:"error_msg"    db:"error_msg"`
	StartedAt   time.Time  `json:"started_at"   db:"started_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
}

// SyncSummary is the per-run roll-up printed after a sync pass.
type SyncSummary struct {
	Considered int           `json:"considered"`
	Uploaded   int           `json:"uploaded"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Duration   time.Duration `json:"duration"`
}
