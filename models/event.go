package models

import (
	"path/filepath"
	"strings"
	"time"
)

// EventStatus tracks an event through its local lifecycle.
type EventStatus string

const (
	EventDraft   EventStatus = "draft"   // still being captured
	EventReady   EventStatus = "ready"   // complete, queued for sync
	EventSyncing EventStatus = "syncing" // upload in progress
	EventSynced  EventStatus = "synced"  // accepted by the backend
	EventFailed  EventStatus = "failed"  // upload failed, will retry
)

// Event represents a single site observation recorded in the field.
type Event struct {
	ID          string        `json:"id"            db:"id"`
	ProjectCode string        `json:"project_code"  db:"project_code"`
	Inspector   string        `json:"inspector"     db:"inspector"`
	Title       string        `json:"title"         db:"title"`
	Description string        `json:"description"   db:"description"`
	Latitude    float64       `json:"latitude"      db:"latitude"`
	Longitude   float64       `json:"longitude"     db:"longitude"`
	LocationRef string        `json:"location_ref"  db:"location_ref"` // chainage, asset tag, or free text
	Status      EventStatus   `json:"status"        db:"status"`
	Priority    PriorityLevel `json:"priority"      db:"priority"`
	RiskScore   float64       `json:"risk_score"    db:"risk_score"`
	DefectCount int           `json:"defect_count"  db:"defect_count"`
	RemoteID    string        `json:"remote_id"     db:"remote_id"` // backend file identifier once synced
	CreatedAt   time.Time     `json:"created_at"    db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"    db:"updated_at"`
	SyncedAt    *time.Time    `json:"synced_at"     db:"synced_at"`
}

// AttachmentKind classifies a media file captured with an event.
type AttachmentKind string

const (
	AttachmentPhoto    AttachmentKind = "photo"
	AttachmentAudio    AttachmentKind = "audio"
	AttachmentDocument AttachmentKind = "document"
)

// Attachment is a digital asset stored alongside an event.
type Attachment struct {
	ID        int64          `json:"id"         db:"id"`
	EventID   string         `json:"event_id"   db:"event_id"`
	Kind      AttachmentKind `json:"kind"       db:"kind"`
	FileName  string         `json:"file_name"  db:"file_name"`
	LocalPath string         `json:"local_path" db:"local_path"`
	SizeBytes int64          `json:"size_bytes" db:"size_bytes"`
	SHA256    string         `json:"sha256"     db:"sha256"`
	RemoteID  string         `json:"remote_id"  db:"remote_id"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// KindForFile guesses the attachment kind from a file extension.
func KindForFile(name string) AttachmentKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".heic", ".webp":
		return AttachmentPhoto
	case ".m4a", ".mp3", ".wav", ".ogg", ".aac":
		return AttachmentAudio
	default:
		return AttachmentDocument
	}
}
