package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/structiq/fieldscan-agent/models"
)

// InsertEvent stores a new event row.
func (db *DB) InsertEvent(ctx context.Context, ev *models.Event) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO events (id, project_code, inspector, title, description,
			latitude, longitude, location_ref, status, priority, risk_score,
			defect_count, remote_id, created_at, updated_at, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ProjectCode, ev.Inspector, ev.Title, ev.Description,
		ev.Latitude, ev.Longitude, ev.LocationRef, ev.Status, ev.Priority,
		ev.RiskScore, ev.DefectCount, ev.RemoteID, ev.CreatedAt, ev.UpdatedAt,
		nullTime(ev.SyncedAt))
	if err != nil {
		return fmt.Errorf("inserting event %s: %w", ev.ID, err)
	}
	return nil
}

// UpdateEvent rewrites the mutable columns of an event.
func (db *DB) UpdateEvent(ctx context.Context, ev *models.Event) error {
	ev.UpdatedAt = time.Now().UTC()
	res, err := db.conn.ExecContext(ctx, `
		UPDATE events SET title = ?, description = ?, latitude = ?, longitude = ?,
			location_ref = ?, status = ?, priority = ?, risk_score = ?,
			remote_id = ?, updated_at = ?, synced_at = ?
		WHERE id = ?`,
		ev.Title, ev.Description, ev.Latitude, ev.Longitude,
		ev.LocationRef, ev.Status, ev.Priority, ev.RiskScore,
		ev.RemoteID, ev.UpdatedAt, nullTime(ev.SyncedAt), ev.ID)
	if err != nil {
		return fmt.Errorf("updating event %s: %w", ev.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event %s: %w", ev.ID, ErrNotFound)
	}
	return nil
}

const eventColumns = `id, project_code, inspector, title, description,
	latitude, longitude, location_ref, status, priority, risk_score,
	defect_count, remote_id, created_at, updated_at, synced_at`

// GetEvent loads one event by ID.
func (db *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return ev, err
}

// ListEvents returns events, optionally filtered by status, newest first.
func (db *DB) ListEvents(ctx context.Context, status models.EventStatus) ([]*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// EventsPendingSync returns events queued for upload: ready plus
// previously failed ones, oldest first so retries go out in order.
func (db *DB) EventsPendingSync(ctx context.Context) ([]*models.Event, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE status IN (?, ?) ORDER BY created_at ASC`,
		models.EventReady, models.EventFailed)
	if err != nil {
		return nil, fmt.Errorf("listing pending events: %w", err)
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// DeleteEvent removes an event and its dependent rows.
func (db *DB) DeleteEvent(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting delete: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"attachments", "defects", "risk_assessments", "sync_jobs"} {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE event_id = ?`, id); err != nil {
			return fmt.Errorf("deleting %s for event %s: %w", table, id, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting event %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(r rowScanner) (*models.Event, error) {
	var ev models.Event
	var synced sql.NullTime
	err := r.Scan(&ev.ID, &ev.ProjectCode, &ev.Inspector, &ev.Title,
		&ev.Description, &ev.Latitude, &ev.Longitude, &ev.LocationRef,
		&ev.Status, &ev.Priority, &ev.RiskScore, &ev.DefectCount,
		&ev.RemoteID, &ev.CreatedAt, &ev.UpdatedAt, &synced)
	if err != nil {
		return nil, err
	}
	if synced.Valid {
		t := synced.Time
		ev.SyncedAt = &t
	}
	return &ev, nil
}

// InsertAttachment records a stored media file.
func (db *DB) InsertAttachment(ctx context.Context, a *models.Attachment) error {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO attachments (event_id, kind, file_name, local_path,
			size_bytes, sha256, remote_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.EventID, a.Kind, a.FileName, a.LocalPath,
		a.SizeBytes, a.SHA256, a.RemoteID, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting attachment %s: %w", a.FileName, err)
	}
	a.ID, _ = res.LastInsertId()
	return nil
}

// ListAttachments returns all attachments of an event, oldest first.
func (db *DB) ListAttachments(ctx context.Context, eventID string) ([]*models.Attachment, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, event_id, kind, file_name, local_path, size_bytes,
			sha256, remote_id, created_at
		FROM attachments WHERE event_id = ? ORDER BY created_at ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing attachments: %w", err)
	}
	defer rows.Close()

	var out []*models.Attachment
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.EventID, &a.Kind, &a.FileName,
			&a.LocalPath, &a.SizeBytes, &a.SHA256, &a.RemoteID, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// InsertDefect stores a defect record and bumps the parent event's
// defect counter in the same transaction.
func (db *DB) InsertDefect(ctx context.Context, d *models.DefectRecord) error {
	fields, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("encoding defect fields: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting defect insert: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO defects (event_id, component, fields, summary, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		d.EventID, d.Component, string(fields), d.Summary, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting defect: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE events SET defect_count = defect_count + 1, updated_at = ?
		WHERE id = ?`, time.Now().UTC(), d.EventID); err != nil {
		return fmt.Errorf("bumping defect count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	d.ID, _ = res.LastInsertId()
	return nil
}

// ListDefects returns all defect records of an event.
func (db *DB) ListDefects(ctx context.Context, eventID string) ([]*models.DefectRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, event_id, component, fields, summary, created_at
		FROM defects WHERE event_id = ? ORDER BY created_at ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing defects: %w", err)
	}
	defer rows.Close()

	var out []*models.DefectRecord
	for rows.Next() {
		var d models.DefectRecord
		var fields string
		if err := rows.Scan(&d.ID, &d.EventID, &d.Component, &fields,
			&d.Summary, &d.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fields), &d.Fields); err != nil {
			return nil, fmt.Errorf("decoding defect %d fields: %w", d.ID, err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// ReconcileDefectCounts recomputes every event's defect_count from the
// defects table and returns how many events were corrected. Counters
// can drift when a sync or delete is interrupted.
func (db *DB) ReconcileDefectCounts(ctx context.Context) (int, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT e.id, e.defect_count, COUNT(d.id)
		FROM events e LEFT JOIN defects d ON d.event_id = e.id
		GROUP BY e.id, e.defect_count`)
	if err != nil {
		return 0, fmt.Errorf("counting defects: %w", err)
	}
	defer rows.Close()

	type fix struct {
		id     string
		actual int
	}
	var fixes []fix
	for rows.Next() {
		var id string
		var stored, actual int
		if err := rows.Scan(&id, &stored, &actual); err != nil {
			return 0, err
		}
		if stored != actual {
			fixes = append(fixes, fix{id: id, actual: actual})
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, f := range fixes {
		if _, err := db.conn.ExecContext(ctx, `
			UPDATE events SET defect_count = ?, updated_at = ? WHERE id = ?`,
			f.actual, time.Now().UTC(), f.id); err != nil {
			return 0, fmt.Errorf("fixing defect count for %s: %w", f.id, err)
		}
	}
	return len(fixes), nil
}

// SaveRiskAssessment stores an assessment and mirrors its outcome onto
// the event row.
func (db *DB) SaveRiskAssessment(ctx context.Context, ra *models.RiskAssessment) error {
	answers, err := json.Marshal(ra.Answers)
	if err != nil {
		return fmt.Errorf("encoding answers: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting assessment insert: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO risk_assessments (event_id, matrix_rev, answers, score, priority, assessed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ra.EventID, ra.MatrixRev, string(answers), ra.Score, ra.Priority, ra.AssessedAt)
	if err != nil {
		return fmt.Errorf("inserting assessment: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE events SET priority = ?, risk_score = ?, updated_at = ? WHERE id = ?`,
		ra.Priority, ra.Score, time.Now().UTC(), ra.EventID); err != nil {
		return fmt.Errorf("updating event priority: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	ra.ID, _ = res.LastInsertId()
	return nil
}

// LatestRiskAssessment returns the most recent assessment for an event.
func (db *DB) LatestRiskAssessment(ctx context.Context, eventID string) (*models.RiskAssessment, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, event_id, matrix_rev, answers, score, priority, assessed_at
		FROM risk_assessments WHERE event_id = ?
		ORDER BY assessed_at DESC, id DESC LIMIT 1`, eventID)

	var ra models.RiskAssessment
	var answers string
	err := row.Scan(&ra.ID, &ra.EventID, &ra.MatrixRev, &answers,
		&ra.Score, &ra.Priority, &ra.AssessedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("assessment for event %s: %w", eventID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(answers), &ra.Answers); err != nil {
		return nil, fmt.Errorf("decoding answers: %w", err)
	}
	return &ra, nil
}

// InsertSyncJob records the start of an upload attempt.
func (db *DB) InsertSyncJob(ctx context.Context, j *models.SyncJob) error {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO sync_jobs (event_id, ticket_id, archive_sha, archive_size,
			status, attempts, error_msg, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.EventID, j.TicketID, j.ArchiveSHA, j.ArchiveSize,
		j.Status, j.Attempts, j.ErrorMsg, j.StartedAt, nullTime(j.CompletedAt))
	if err != nil {
		return fmt.Errorf("inserting sync job: %w", err)
	}
	j.ID, _ = res.LastInsertId()
	return nil
}

// UpdateSyncJob rewrites a job's progress columns.
func (db *DB) UpdateSyncJob(ctx context.Context, j *models.SyncJob) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE sync_jobs SET ticket_id = ?, archive_sha = ?, archive_size = ?,
			status = ?, attempts = ?, error_msg = ?, completed_at = ?
		WHERE id = ?`,
		j.TicketID, j.ArchiveSHA, j.ArchiveSize,
		j.Status, j.Attempts, j.ErrorMsg, nullTime(j.CompletedAt), j.ID)
	if err != nil {
		return fmt.Errorf("updating sync job %d: %w", j.ID, err)
	}
	return nil
}

// ListSyncJobs returns the upload history of an event, newest first.
func (db *DB) ListSyncJobs(ctx context.Context, eventID string) ([]*models.SyncJob, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, event_id, ticket_id, archive_sha, archive_size,
			status, attempts, error_msg, started_at, completed_at
		FROM sync_jobs WHERE event_id = ? ORDER BY started_at DESC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing sync jobs: %w", err)
	}
	defer rows.Close()

	var out []*models.SyncJob
	for rows.Next() {
		var j models.SyncJob
		var completed sql.NullTime
		if err := rows.Scan(&j.ID, &j.EventID, &j.TicketID, &j.ArchiveSHA,
			&j.ArchiveSize, &j.Status, &j.Attempts, &j.ErrorMsg,
			&j.StartedAt, &completed); err != nil {
			return nil, err
		}
		if completed.Valid {
			t := completed.Time
			j.CompletedAt = &t
		}
		out = append(out, &j)
	}
	return out, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
