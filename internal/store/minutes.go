// internal/store/minutes.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dialogmote-coordinator/internal/models"

	"github.com/google/uuid"
)

const minutesColumns = `
	id, uuid, meeting_id, created_at, updated_at, finalized, document,
	situation, worker_task, employer_task, plan,
	practitioner_attended, practitioner_task, practitioner_gets_copy,
	pdf, journalpost_id, distributed_at,
	worker_read_at, employer_read_at, practitioner_read_at`

// CreateMinutes inserts a minutes revision and returns its generated id.
func CreateMinutes(ctx context.Context, q DBTX, m *models.Minutes) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO minutes (uuid, meeting_id, created_at, updated_at, finalized, document,
			situation, worker_task, employer_task, plan,
			practitioner_attended, practitioner_task, practitioner_gets_copy, pdf)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		m.UUID, m.MeetingID, m.CreatedAt, m.UpdatedAt, m.Finalized, []byte(m.Document),
		m.Situation, m.WorkerTask, m.EmployerTask, m.Plan,
		m.PractitionerAttended, m.PractitionerTask, m.PractitionerGetsCopy, m.PDF,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert minutes: %w", err)
	}
	return id, nil
}

// UpdateDraftMinutes rewrites the content of a non-finalized revision in
// place. Finalized revisions are immutable and never matched.
func UpdateDraftMinutes(ctx context.Context, q DBTX, m *models.Minutes) error {
	res, err := q.ExecContext(ctx, `
		UPDATE minutes SET updated_at = $1, document = $2,
			situation = $3, worker_task = $4, employer_task = $5, plan = $6,
			practitioner_attended = $7, practitioner_task = $8, practitioner_gets_copy = $9
		WHERE id = $10 AND finalized = FALSE`,
		m.UpdatedAt, []byte(m.Document),
		m.Situation, m.WorkerTask, m.EmployerTask, m.Plan,
		m.PractitionerAttended, m.PractitionerTask, m.PractitionerGetsCopy,
		m.ID)
	if err != nil {
		return fmt.Errorf("update draft minutes: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update draft minutes: revision %d is finalized or missing", m.ID)
	}
	return nil
}

// FinalizeMinutes freezes a draft revision: content, rendered PDF and the
// finalized flag are written together.
func FinalizeMinutes(ctx context.Context, q DBTX, m *models.Minutes, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE minutes SET finalized = TRUE, updated_at = $1, document = $2,
			situation = $3, worker_task = $4, employer_task = $5, plan = $6, pdf = $7
		WHERE id = $8 AND finalized = FALSE`,
		at, []byte(m.Document),
		m.Situation, m.WorkerTask, m.EmployerTask, m.Plan, m.PDF,
		m.ID)
	if err != nil {
		return fmt.Errorf("finalize minutes: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finalize minutes: revision %d already finalized or missing", m.ID)
	}
	return nil
}

// ListMinutes returns every minutes revision of a meeting, oldest first.
func ListMinutes(ctx context.Context, q DBTX, meetingID int64) ([]models.Minutes, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+minutesColumns+`
		FROM minutes WHERE meeting_id = $1
		ORDER BY created_at, id`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list minutes: %w", err)
	}
	defer rows.Close()

	var out []models.Minutes
	for rows.Next() {
		m, err := scanMinutes(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// GetMinutesByUUID loads one minutes revision, or sql.ErrNoRows.
func GetMinutesByUUID(ctx context.Context, q DBTX, u uuid.UUID) (*models.Minutes, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+minutesColumns+`
		FROM minutes WHERE uuid = $1`, u)
	return scanMinutes(row)
}

// SetMinutesRead records a per-recipient read timestamp once.
func SetMinutesRead(ctx context.Context, q DBTX, minutesID int64, recipient models.ParticipantType, at time.Time) error {
	var column string
	switch recipient {
	case models.ParticipantWorker:
		column = "worker_read_at"
	case models.ParticipantEmployer:
		column = "employer_read_at"
	case models.ParticipantPractitioner:
		column = "practitioner_read_at"
	default:
		return fmt.Errorf("set minutes read: unknown recipient %q", recipient)
	}

	if _, err := q.ExecContext(ctx, `
		UPDATE minutes SET `+column+` = $1 WHERE id = $2 AND `+column+` IS NULL`,
		at, minutesID,
	); err != nil {
		return fmt.Errorf("set minutes read: %w", err)
	}
	return nil
}

// ListUndistributedMinutes returns finalized minutes whose archival id is
// set but whose physical distribution has not been confirmed. Minutes are
// distributed to the worker.
func ListUndistributedMinutes(ctx context.Context, q DBTX) ([]DistributionRow, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT m.id, m.uuid, m.journalpost_id, mt.worker_person_id
		FROM minutes m
		JOIN meetings mt ON mt.id = m.meeting_id
		WHERE m.finalized = TRUE AND m.journalpost_id IS NOT NULL AND m.distributed_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("list undistributed minutes: %w", err)
	}
	defer rows.Close()

	var out []DistributionRow
	for rows.Next() {
		r := DistributionRow{RecipientType: models.ParticipantWorker}
		var u string
		if err := rows.Scan(&r.ID, &u, &r.JournalpostID, &r.RecipientRef); err != nil {
			return nil, fmt.Errorf("scan undistributed minutes: %w", err)
		}
		r.UUID = parseUUID(u)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetMinutesDistributed records the distribution-ordered timestamp.
func SetMinutesDistributed(ctx context.Context, q DBTX, minutesID int64, at time.Time) error {
	if _, err := q.ExecContext(ctx, `
		UPDATE minutes SET distributed_at = $1 WHERE id = $2 AND distributed_at IS NULL`,
		at, minutesID,
	); err != nil {
		return fmt.Errorf("set minutes distributed: %w", err)
	}
	return nil
}

func scanMinutes(row rowScanner) (*models.Minutes, error) {
	var (
		m             models.Minutes
		u             string
		document      []byte
		journalpostID sql.NullString
		distributedAt sql.NullTime
		workerRead    sql.NullTime
		employerRead  sql.NullTime
		practRead     sql.NullTime
	)
	err := row.Scan(&m.ID, &u, &m.MeetingID, &m.CreatedAt, &m.UpdatedAt, &m.Finalized, &document,
		&m.Situation, &m.WorkerTask, &m.EmployerTask, &m.Plan,
		&m.PractitionerAttended, &m.PractitionerTask, &m.PractitionerGetsCopy,
		&m.PDF, &journalpostID, &distributedAt,
		&workerRead, &employerRead, &practRead)
	if err != nil {
		return nil, err
	}

	m.UUID = parseUUID(u)
	m.Document = document
	m.JournalpostID = journalpostID.String
	if distributedAt.Valid {
		m.DistributedAt = &distributedAt.Time
	}
	if workerRead.Valid {
		m.WorkerReadAt = &workerRead.Time
	}
	if employerRead.Valid {
		m.EmployerReadAt = &employerRead.Time
	}
	if practRead.Valid {
		m.PractitionerReadAt = &practRead.Time
	}
	return &m, nil
}
