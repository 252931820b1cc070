// Package store persists event media and metadata on the local disk.
//
// Layout under the events directory:
//
//	<events_dir>/<event-id>/event.json
//	<events_dir>/<event-id>/media/<file>
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/structiq/fieldscan-agent/models"
)

// Store manages the on-disk event directories.
type Store struct {
	EventsDir string
}

// New returns a store rooted at eventsDir.
func New(eventsDir string) *Store {
	return &Store{EventsDir: eventsDir}
}

// EventDir returns the directory holding one event's files.
func (s *Store) EventDir(eventID string) string {
	return filepath.Join(s.EventsDir, eventID)
}

// EnsureEventDir creates the event directory and its media subdirectory.
func (s *Store) EnsureEventDir(eventID string) (string, error) {
	dir := s.EventDir(eventID)
	if err := os.MkdirAll(filepath.Join(dir, "media"), 0o755); err != nil {
		return "", fmt.Errorf("creating event directory: %w", err)
	}
	return dir, nil
}

// AddMedia copies a media file into the event's media directory and
// returns the attachment record (kind, size, sha256 filled in). When a
// file of the same name already exists, a numeric suffix is appended.
func (s *Store) AddMedia(eventID, srcPath string) (*models.Attachment, error) {
	if _, err := s.EnsureEventDir(eventID); err != nil {
		return nil, err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", srcPath, err)
	}
	defer src.Close()

	name := filepath.Base(srcPath)
	dest, destPath, err := s.createUnique(eventID, name)
	if err != nil {
		return nil, err
	}
	defer dest.Close()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(dest, h), src)
	if err != nil {
		os.Remove(destPath)
		return nil, fmt.Errorf("copying %s: %w", name, err)
	}

	return &models.Attachment{
		EventID:   eventID,
		Kind:      models.KindForFile(name),
		FileName:  filepath.Base(destPath),
		LocalPath: destPath,
		SizeBytes: size,
		SHA256:    hex.EncodeToString(h.Sum(nil)),
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (s *Store) createUnique(eventID, name string) (*os.File, string, error) {
	mediaDir := filepath.Join(s.EventDir(eventID), "media")
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]

	candidate := name
	for i := 1; ; i++ {
		path := filepath.Join(mediaDir, candidate)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !os.IsExist(err) {
			return nil, "", fmt.Errorf("creating %s: %w", path, err)
		}
		candidate = fmt.Sprintf("%s-%d%s", base, i, ext)
	}
}

// Snapshot is the event.json payload shipped inside the sync archive.
type Snapshot struct {
	Event       *models.Event          `json:"event"`
	Assessment  *models.RiskAssessment `json:"risk_assessment,omitempty"`
	Defects     []*models.DefectRecord `json:"defects,omitempty"`
	Attachments []*models.Attachment   `json:"attachments,omitempty"`
	WrittenAt   time.Time              `json:"written_at"`
}

// WriteSnapshot serialises the event and its related records to
// event.json inside the event directory.
func (s *Store) WriteSnapshot(snap *Snapshot) error {
	if snap.Event == nil {
		return fmt.Errorf("snapshot has no event")
	}
	if _, err := s.EnsureEventDir(snap.Event.ID); err != nil {
		return err
	}
	snap.WrittenAt = time.Now().UTC()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding event snapshot: %w", err)
	}
	path := filepath.Join(s.EventDir(snap.Event.ID), "event.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// RemoveEvent deletes an event's directory and everything in it.
func (s *Store) RemoveEvent(eventID string) error {
	if err := os.RemoveAll(s.EventDir(eventID)); err != nil {
		return fmt.Errorf("removing event directory: %w", err)
	}
	return nil
}
