// Package syncer uploads local events to the backend: it snapshots an
// event to disk, packs it into a tar.gz archive, requests an upload
// ticket, uploads, and polls until the backend has processed it.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/structiq/fieldscan-agent/internal/backend"
	"github.com/structiq/fieldscan-agent/internal/database"
	"github.com/structiq/fieldscan-agent/internal/store"
	"github.com/structiq/fieldscan-agent/models"
)

// BackendAPI is the slice of the backend client the uploader needs.
type BackendAPI interface {
	CreateUploadTicket(ctx context.Context, req backend.TicketRequest) (*backend.UploadTicket, error)
	UploadArchive(ctx context.Context, ticket *backend.UploadTicket, body io.Reader, size int64) error
	UploadStatus(ctx context.Context, ticketID string) (*backend.UploadState, error)
}

// Uploader pushes pending events to the backend.
type Uploader struct {
	DB           *database.DB
	Store        *store.Store
	Backend      BackendAPI
	ProjectCode  string
	MaxAttempts  int           // upload attempts per event per run
	PollInterval time.Duration // delay between status polls
	PollTimeout  time.Duration // give up polling one upload after this
}

func (u *Uploader) maxAttempts() int {
	if u.MaxAttempts > 0 {
		return u.MaxAttempts
	}
	return 3
}

func (u *Uploader) pollInterval() time.Duration {
	if u.PollInterval > 0 {
		return u.PollInterval
	}
	return 2 * time.Second
}

func (u *Uploader) pollTimeout() time.Duration {
	if u.PollTimeout > 0 {
		return u.PollTimeout
	}
	return 2 * time.Minute
}

// SyncAll uploads every event pending sync and returns the run summary.
// Individual event failures are recorded and do not abort the run.
func (u *Uploader) SyncAll(ctx context.Context) (*models.SyncSummary, error) {
	start := time.Now()
	events, err := u.DB.EventsPendingSync(ctx)
	if err != nil {
		return nil, err
	}

	sum := &models.SyncSummary{Considered: len(events)}
	for _, ev := range events {
		if ctx.Err() != nil {
			sum.Skipped = sum.Considered - sum.Uploaded - sum.Failed
			break
		}
		if err := u.SyncEvent(ctx, ev); err != nil {
			slog.Warn("event sync failed", "event", ev.ID, "error", err)
			sum.Failed++
			continue
		}
		sum.Uploaded++
	}
	sum.Duration = time.Since(start)
	return sum, nil
}

// SyncEvent uploads one event, updating its status and sync-job rows as
// it goes. On success the event is marked synced and carries the
// backend's remote identifier.
func (u *Uploader) SyncEvent(ctx context.Context, ev *models.Event) error {
	ev.Status = models.EventSyncing
	if err := u.DB.UpdateEvent(ctx, ev); err != nil {
		return err
	}

	state, err := u.upload(ctx, ev)
	if err != nil {
		ev.Status = models.EventFailed
		if uerr := u.DB.UpdateEvent(ctx, ev); uerr != nil {
			slog.Warn("could not mark event failed", "event", ev.ID, "error", uerr)
		}
		return err
	}

	now := time.Now().UTC()
	ev.Status = models.EventSynced
	ev.RemoteID = state.RemoteID
	ev.SyncedAt = &now
	return u.DB.UpdateEvent(ctx, ev)
}

func (u *Uploader) upload(ctx context.Context, ev *models.Event) (*backend.UploadState, error) {
	if err := u.snapshot(ctx, ev); err != nil {
		return nil, err
	}

	archivePath := filepath.Join(os.TempDir(), fmt.Sprintf("fieldscan-%s.tar.gz", ev.ID))
	defer os.Remove(archivePath)

	sha, size, err := packArchive(u.Store.EventDir(ev.ID), archivePath)
	if err != nil {
		return nil, err
	}

	job := &models.SyncJob{
		EventID:     ev.ID,
		ArchiveSHA:  sha,
		ArchiveSize: size,
		Status:      "pending",
		StartedAt:   time.Now().UTC(),
	}
	if err := u.DB.InsertSyncJob(ctx, job); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= u.maxAttempts(); attempt++ {
		job.Attempts = attempt
		state, err := u.attempt(ctx, ev, job, archivePath, sha, size)
		if err == nil {
			now := time.Now().UTC()
			job.Status = "done"
			job.ErrorMsg = ""
			job.CompletedAt = &now
			if uerr := u.DB.UpdateSyncJob(ctx, job); uerr != nil {
				slog.Warn("could not record sync job result", "job", job.ID, "error", uerr)
			}
			return state, nil
		}
		lastErr = err
		job.ErrorMsg = err.Error()
		if uerr := u.DB.UpdateSyncJob(ctx, job); uerr != nil {
			slog.Warn("could not record sync attempt", "job", job.ID, "error", uerr)
		}
		slog.Debug("upload attempt failed", "event", ev.ID, "attempt", attempt, "error", err)

		if attempt < u.maxAttempts() {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = u.maxAttempts() // stop retrying
			}
		}
	}

	now := time.Now().UTC()
	job.Status = "failed"
	job.CompletedAt = &now
	if uerr := u.DB.UpdateSyncJob(ctx, job); uerr != nil {
		slog.Warn("could not record sync job result", "job", job.ID, "error", uerr)
	}
	return nil, fmt.Errorf("uploading event %s after %d attempts: %w", ev.ID, u.maxAttempts(), lastErr)
}

// attempt performs one full ticket/upload/poll cycle.
func (u *Uploader) attempt(ctx context.Context, ev *models.Event, job *models.SyncJob,
	archivePath, sha string, size int64) (*backend.UploadState, error) {

	ticket, err := u.Backend.CreateUploadTicket(ctx, backend.TicketRequest{
		EventKey:  fmt.Sprintf("%s:%s", u.ProjectCode, ev.ID),
		SHA256:    sha,
		SizeBytes: size,
	})
	if err != nil {
		return nil, fmt.Errorf("requesting upload ticket: %w", err)
	}
	job.TicketID = ticket.ID
	job.Status = "uploading"

	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	err = u.Backend.UploadArchive(ctx, ticket, f, size)
	f.Close()
	if err != nil {
		return nil, err
	}
	job.Status = "processing"

	return u.poll(ctx, ticket.ID)
}

// poll waits for the backend to finish processing the upload.
func (u *Uploader) poll(ctx context.Context, ticketID string) (*backend.UploadState, error) {
	deadline := time.Now().Add(u.pollTimeout())
	for {
		state, err := u.Backend.UploadStatus(ctx, ticketID)
		if err != nil {
			return nil, fmt.Errorf("polling upload %s: %w", ticketID, err)
		}
		if state.Done() {
			if state.Status == "failed" {
				return nil, fmt.Errorf("backend rejected upload %s: %s", ticketID, state.Error)
			}
			return state, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("upload %s still %s after %s", ticketID, state.Status, u.pollTimeout())
		}
		select {
		case <-time.After(u.pollInterval()):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// snapshot refreshes event.json with the latest related records.
func (u *Uploader) snapshot(ctx context.Context, ev *models.Event) error {
	snap := &store.Snapshot{Event: ev}

	ra, err := u.DB.LatestRiskAssessment(ctx, ev.ID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return err
	}
	snap.Assessment = ra

	if snap.Defects, err = u.DB.ListDefects(ctx, ev.ID); err != nil {
		return err
	}
	if snap.Attachments, err = u.DB.ListAttachments(ctx, ev.ID); err != nil {
		return err
	}
	return u.Store.WriteSnapshot(snap)
}
