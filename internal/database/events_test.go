package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/structiq/fieldscan-agent/internal/config"
	"github.com/structiq/fieldscan-agent/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(config.DatabaseConfig{
		Driver: "sqlite3",
		Path:   filepath.Join(t.TempDir(), "fieldscan.db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	return db
}

func seedEvent(t *testing.T, db *DB, id string, status models.EventStatus, created time.Time) *models.Event {
	t.Helper()
	ev := &models.Event{
		ID:          id,
		ProjectCode: "BR-2024-017",
		Inspector:   "J. Ferreira",
		Title:       "Spalling under girder G3",
		Description: "Exposed reinforcement, rust staining",
		Latitude:    -33.8651,
		Longitude:   151.2099,
		LocationRef: "Pier 4, east face",
		Status:      status,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	if err := db.InsertEvent(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestEventCRUD(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)
	seedEvent(t, db, "ev-1", models.EventDraft, now)

	got, err := db.GetEvent(ctx, "ev-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Spalling under girder G3" || got.Status != models.EventDraft {
		t.Fatalf("unexpected event: %+v", got)
	}
	if got.SyncedAt != nil {
		t.Fatal("fresh event has synced_at set")
	}

	got.Status = models.EventReady
	got.Description = "Updated after second look"
	if err := db.UpdateEvent(ctx, got); err != nil {
		t.Fatal(err)
	}
	got, err = db.GetEvent(ctx, "ev-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.EventReady || got.Description != "Updated after second look" {
		t.Fatalf("update not persisted: %+v", got)
	}

	if err := db.DeleteEvent(ctx, "ev-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.GetEvent(ctx, "ev-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := db.DeleteEvent(ctx, "ev-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestUpdateMissingEventReturnsNotFound(t *testing.T) {
	db := newTestDB(t)
	err := db.UpdateEvent(context.Background(), &models.Event{ID: "ghost"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListEventsFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	base := time.Now().UTC().Truncate(time.Second)
	seedEvent(t, db, "ev-1", models.EventDraft, base.Add(-2*time.Hour))
	seedEvent(t, db, "ev-2", models.EventReady, base.Add(-1*time.Hour))
	seedEvent(t, db, "ev-3", models.EventDraft, base)

	all, err := db.ListEvents(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	if all[0].ID != "ev-3" {
		t.Fatalf("expected newest first, got %s", all[0].ID)
	}

	drafts, err := db.ListEvents(ctx, models.EventDraft)
	if err != nil {
		t.Fatal(err)
	}
	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(drafts))
	}
}

func TestEventsPendingSyncOrderAndStatuses(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	base := time.Now().UTC().Truncate(time.Second)
	seedEvent(t, db, "old-failed", models.EventFailed, base.Add(-3*time.Hour))
	seedEvent(t, db, "draft", models.EventDraft, base.Add(-2*time.Hour))
	seedEvent(t, db, "ready", models.EventReady, base.Add(-1*time.Hour))
	seedEvent(t, db, "synced", models.EventSynced, base)

	pending, err := db.EventsPendingSync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending events, got %d", len(pending))
	}
	// Oldest first so retries go out in order.
	if pending[0].ID != "old-failed" || pending[1].ID != "ready" {
		t.Fatalf("unexpected order: %s, %s", pending[0].ID, pending[1].ID)
	}
}

func TestInsertDefectBumpsCounter(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)
	seedEvent(t, db, "ev-1", models.EventDraft, now)

	for i := 0; i < 2; i++ {
		d := &models.DefectRecord{
			EventID:   "ev-1",
			Component: "girder",
			Fields:    map[string]string{"defect_type": "crack", "length_mm": "450"},
			Summary:   "Dimensions\nLength (mm): 450",
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}
		if err := db.InsertDefect(ctx, d); err != nil {
			t.Fatal(err)
		}
		if d.ID == 0 {
			t.Fatal("defect ID not assigned")
		}
	}

	ev, err := db.GetEvent(ctx, "ev-1")
	if err != nil {
		t.Fatal(err)
	}
	if ev.DefectCount != 2 {
		t.Fatalf("defect_count = %d, want 2", ev.DefectCount)
	}

	defects, err := db.ListDefects(ctx, "ev-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(defects) != 2 {
		t.Fatalf("expected 2 defects, got %d", len(defects))
	}
	if defects[0].Fields["length_mm"] != "450" {
		t.Fatalf("fields not round-tripped: %+v", defects[0].Fields)
	}
}

func TestReconcileDefectCounts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)
	seedEvent(t, db, "ev-1", models.EventDraft, now)
	seedEvent(t, db, "ev-2", models.EventDraft, now)

	d := &models.DefectRecord{EventID: "ev-1", Component: "deck", CreatedAt: now}
	if err := db.InsertDefect(ctx, d); err != nil {
		t.Fatal(err)
	}

	// Simulate drift: counter says 5, table says 1.
	if _, err := db.conn.ExecContext(ctx,
		`UPDATE events SET defect_count = 5 WHERE id = 'ev-1'`); err != nil {
		t.Fatal(err)
	}

	fixed, err := db.ReconcileDefectCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if fixed != 1 {
		t.Fatalf("fixed = %d, want 1", fixed)
	}
	ev, err := db.GetEvent(ctx, "ev-1")
	if err != nil {
		t.Fatal(err)
	}
	if ev.DefectCount != 1 {
		t.Fatalf("defect_count = %d, want 1", ev.DefectCount)
	}

	// Second run is a no-op.
	fixed, err = db.ReconcileDefectCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if fixed != 0 {
		t.Fatalf("second reconcile fixed %d, want 0", fixed)
	}
}

func TestSaveRiskAssessmentMirrorsOntoEvent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)
	seedEvent(t, db, "ev-1", models.EventDraft, now)

	if _, err := db.LatestRiskAssessment(ctx, "ev-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before any assessment, got %v", err)
	}

	first := &models.RiskAssessment{
		EventID:    "ev-1",
		MatrixRev:  "offline-2024.2",
		Answers:    []string{"local", "minor_injury", "partial", "local_env", "likely"},
		Score:      2,
		Priority:   models.PriorityP3,
		AssessedAt: now,
	}
	if err := db.SaveRiskAssessment(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := &models.RiskAssessment{
		EventID:    "ev-1",
		MatrixRev:  "offline-2024.2",
		Answers:    []string{"member", "serious_injury", "major", "waterway", "certain"},
		Score:      6,
		Priority:   models.PriorityP2,
		AssessedAt: now.Add(time.Minute),
	}
	if err := db.SaveRiskAssessment(ctx, second); err != nil {
		t.Fatal(err)
	}

	ev, err := db.GetEvent(ctx, "ev-1")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Priority != models.PriorityP2 || ev.RiskScore != 6 {
		t.Fatalf("event not updated: priority=%s score=%g", ev.Priority, ev.RiskScore)
	}

	latest, err := db.LatestRiskAssessment(ctx, "ev-1")
	if err != nil {
		t.Fatal(err)
	}
	if latest.Score != 6 || len(latest.Answers) != 5 {
		t.Fatalf("unexpected latest assessment: %+v", latest)
	}
}

func TestAttachmentRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)
	seedEvent(t, db, "ev-1", models.EventDraft, now)

	a := &models.Attachment{
		EventID:   "ev-1",
		Kind:      models.AttachmentPhoto,
		FileName:  "crack.jpg",
		LocalPath: "/tmp/crack.jpg",
		SizeBytes: 1024,
		SHA256:    "abc123",
		CreatedAt: now,
	}
	if err := db.InsertAttachment(ctx, a); err != nil {
		t.Fatal(err)
	}
	if a.ID == 0 {
		t.Fatal("attachment ID not assigned")
	}

	atts, err := db.ListAttachments(ctx, "ev-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(atts) != 1 || atts[0].FileName != "crack.jpg" || atts[0].Kind != models.AttachmentPhoto {
		t.Fatalf("unexpected attachments: %+v", atts)
	}
}

func TestSyncJobLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)
	seedEvent(t, db, "ev-1", models.EventReady, now)

	j := &models.SyncJob{
		EventID:     "ev-1",
		ArchiveSHA:  "deadbeef",
		ArchiveSize: 2048,
		Status:      "pending",
		StartedAt:   now,
	}
	if err := db.InsertSyncJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	done := now.Add(10 * time.Second)
	j.TicketID = "t-1"
	j.Status = "done"
	j.Attempts = 2
	j.CompletedAt = &done
	if err := db.UpdateSyncJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	jobs, err := db.ListSyncJobs(ctx, "ev-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	got := jobs[0]
	if got.Status != "done" || got.Attempts != 2 || got.TicketID != "t-1" {
		t.Fatalf("unexpected job: %+v", got)
	}
	if got.CompletedAt == nil {
		t.Fatal("completed_at not persisted")
	}
}
