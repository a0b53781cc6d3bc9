// internal/store/meetings.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dialogmote-coordinator/internal/models"

	"github.com/google/uuid"
)

// CreateMeeting inserts the meeting row and returns its generated id.
func CreateMeeting(ctx context.Context, q DBTX, m *models.Meeting) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO meetings (uuid, created_at, updated_at, status, case_worker_id, office_id, worker_person_id, employer_org_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		m.UUID, m.CreatedAt, m.UpdatedAt, m.Status, m.CaseWorkerID, m.OfficeID, m.WorkerPersonID, m.EmployerOrgNumber,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert meeting: %w", err)
	}
	return id, nil
}

// GetMeetingByUUID loads a meeting with its time/place and minutes
// revisions. Returns sql.ErrNoRows when the meeting does not exist.
func GetMeetingByUUID(ctx context.Context, q DBTX, u uuid.UUID) (*models.Meeting, error) {
	m := &models.Meeting{}
	err := q.QueryRowContext(ctx, `
		SELECT id, uuid, created_at, updated_at, status, case_worker_id, office_id, worker_person_id, employer_org_number
		FROM meetings WHERE uuid = $1`, u,
	).Scan(&m.ID, &m.UUID, &m.CreatedAt, &m.UpdatedAt, &m.Status, &m.CaseWorkerID, &m.OfficeID, &m.WorkerPersonID, &m.EmployerOrgNumber)
	if err != nil {
		return nil, err
	}

	if m.TimeAndPlaces, err = listTimeAndPlace(ctx, q, m.ID); err != nil {
		return nil, err
	}
	if m.Minutes, err = ListMinutes(ctx, q, m.ID); err != nil {
		return nil, err
	}
	return m, nil
}

// HasActiveMeeting reports whether a meeting in an active status exists for
// the (worker, employer) pair. The check reads committed state; there is no
// uniqueness constraint backing it, so concurrent opens can in principle
// race (documented limitation).
func HasActiveMeeting(ctx context.Context, q DBTX, workerPersonID, orgNumber string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM meetings
			WHERE worker_person_id = $1 AND employer_org_number = $2 AND status IN ($3, $4)
		)`,
		workerPersonID, orgNumber, models.StatusSummoned, models.StatusRescheduled,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active meeting: %w", err)
	}
	return exists, nil
}

// UpdateMeetingStatus writes the new status and bumps updated_at.
func UpdateMeetingStatus(ctx context.Context, q DBTX, meetingID int64, status models.MeetingStatus, at time.Time) error {
	if _, err := q.ExecContext(ctx, `
		UPDATE meetings SET status = $1, updated_at = $2 WHERE id = $3`,
		status, at, meetingID,
	); err != nil {
		return fmt.Errorf("update meeting status: %w", err)
	}
	return nil
}

// CreateTimeAndPlace appends a scheduling revision.
func CreateTimeAndPlace(ctx context.Context, q DBTX, tp *models.TimeAndPlace) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO meeting_time_place (meeting_id, created_at, scheduled_at, place, video_link)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		tp.MeetingID, tp.CreatedAt, tp.ScheduledAt, tp.Place, tp.VideoLink,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert time and place: %w", err)
	}
	return id, nil
}

func listTimeAndPlace(ctx context.Context, q DBTX, meetingID int64) ([]models.TimeAndPlace, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, meeting_id, created_at, scheduled_at, place, video_link
		FROM meeting_time_place WHERE meeting_id = $1
		ORDER BY created_at, id`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list time and place: %w", err)
	}
	defer rows.Close()

	var out []models.TimeAndPlace
	for rows.Next() {
		var tp models.TimeAndPlace
		var videoLink sql.NullString
		if err := rows.Scan(&tp.ID, &tp.MeetingID, &tp.CreatedAt, &tp.ScheduledAt, &tp.Place, &videoLink); err != nil {
			return nil, fmt.Errorf("scan time and place: %w", err)
		}
		tp.VideoLink = videoLink.String
		out = append(out, tp)
	}
	return out, rows.Err()
}

// CreateStatusChange appends one audit row for a lifecycle transition and
// fills in the row id.
func CreateStatusChange(ctx context.Context, q DBTX, sc *models.StatusChange) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO status_changes (meeting_id, status, actor, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		sc.MeetingID, sc.Status, sc.Actor, sc.CreatedAt,
	).Scan(&sc.ID)
	if err != nil {
		return fmt.Errorf("insert status change: %w", err)
	}
	return nil
}
