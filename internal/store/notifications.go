// internal/store/notifications.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dialogmote-coordinator/internal/models"

	"github.com/google/uuid"
)

const notificationColumns = `
	id, uuid, recipient_type, participant_id, kind, free_text, document, pdf,
	digital, read_at, response_type, response_text, response_at,
	journalpost_id, distributed_at, created_at`

// CreateNotification inserts one letter row and returns its generated id.
func CreateNotification(ctx context.Context, q DBTX, n *models.Notification) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO notifications (uuid, recipient_type, participant_id, kind, free_text, document, pdf, digital, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		n.UUID, n.RecipientType, n.ParticipantID, n.Kind, n.FreeText, []byte(n.Document), n.PDF, n.Digital, n.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return id, nil
}

// GetNotificationByUUID loads one notification. Returns sql.ErrNoRows when
// no such notification exists.
func GetNotificationByUUID(ctx context.Context, q DBTX, u uuid.UUID) (*models.Notification, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications WHERE uuid = $1`, u)
	return scanNotification(row)
}

// ListNotifications returns every notification owned by a participant,
// oldest first.
func ListNotifications(ctx context.Context, q DBTX, participantID int64) ([]models.Notification, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications WHERE participant_id = $1
		ORDER BY created_at, id`, participantID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		n, err := scanNotificationRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// LatestPractitionerNotification returns the newest practitioner
// notification of the given kind for a meeting, or sql.ErrNoRows.
func LatestPractitionerNotification(ctx context.Context, q DBTX, meetingID int64, kind models.NotificationKind) (*models.Notification, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE recipient_type = $1 AND kind = $2
		  AND participant_id IN (SELECT id FROM participants WHERE meeting_id = $3)
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		models.ParticipantPractitioner, kind, meetingID)
	return scanNotification(row)
}

// MarkWorkerTodosRead marks every unread worker notification of the meeting
// as read. Used when a transition supersedes the worker's pending to-do.
func MarkWorkerTodosRead(ctx context.Context, q DBTX, meetingID int64, at time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE notifications SET read_at = $1
		WHERE recipient_type = $2 AND read_at IS NULL
		  AND participant_id IN (SELECT id FROM participants WHERE meeting_id = $3)`,
		at, models.ParticipantWorker, meetingID)
	if err != nil {
		return 0, fmt.Errorf("mark worker todos read: %w", err)
	}
	return res.RowsAffected()
}

// SetNotificationRead records the recipient's read timestamp once; repeated
// reads keep the first timestamp.
func SetNotificationRead(ctx context.Context, q DBTX, notificationID int64, at time.Time) error {
	if _, err := q.ExecContext(ctx, `
		UPDATE notifications SET read_at = $1 WHERE id = $2 AND read_at IS NULL`,
		at, notificationID,
	); err != nil {
		return fmt.Errorf("set notification read: %w", err)
	}
	return nil
}

// SetNotificationResponse stores the single response a notification may
// receive. The caller enforces the at-most-one invariant before writing;
// the WHERE clause backs it up at the row level.
func SetNotificationResponse(ctx context.Context, q DBTX, notificationID int64, rtype models.ResponseType, text string, at time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE notifications SET response_type = $1, response_text = $2, response_at = $3
		WHERE id = $4 AND response_type IS NULL`,
		rtype, text, at, notificationID)
	if err != nil {
		return 0, fmt.Errorf("set notification response: %w", err)
	}
	return res.RowsAffected()
}

// DistributionRow is one archived-but-undistributed artifact queued for the
// retry cronjob, together with the resolved physical recipient.
type DistributionRow struct {
	ID            int64
	UUID          uuid.UUID
	JournalpostID string
	RecipientType models.ParticipantType
	RecipientRef  string
}

// ListUndistributedNotifications returns rows of one kind whose archival id
// is set but whose physical distribution has not been confirmed.
func ListUndistributedNotifications(ctx context.Context, q DBTX, kind models.NotificationKind) ([]DistributionRow, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT n.id, n.uuid, n.journalpost_id, n.recipient_type,
		       COALESCE(p.person_id, p.org_number, p.practitioner_ref)
		FROM notifications n
		JOIN participants p ON p.id = n.participant_id
		WHERE n.kind = $1 AND n.digital = FALSE
		  AND n.journalpost_id IS NOT NULL AND n.distributed_at IS NULL`, kind)
	if err != nil {
		return nil, fmt.Errorf("list undistributed notifications: %w", err)
	}
	defer rows.Close()

	var out []DistributionRow
	for rows.Next() {
		var r DistributionRow
		var u string
		if err := rows.Scan(&r.ID, &u, &r.JournalpostID, &r.RecipientType, &r.RecipientRef); err != nil {
			return nil, fmt.Errorf("scan undistributed notification: %w", err)
		}
		r.UUID = parseUUID(u)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetNotificationDistributed records the distribution-ordered timestamp.
// One UPDATE per row; rows are independent so no surrounding transaction is
// needed.
func SetNotificationDistributed(ctx context.Context, q DBTX, notificationID int64, at time.Time) error {
	if _, err := q.ExecContext(ctx, `
		UPDATE notifications SET distributed_at = $1 WHERE id = $2 AND distributed_at IS NULL`,
		at, notificationID,
	); err != nil {
		return fmt.Errorf("set notification distributed: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row *sql.Row) (*models.Notification, error) {
	return scanNotificationRows(row)
}

func scanNotificationRows(row rowScanner) (*models.Notification, error) {
	var (
		n             models.Notification
		u             string
		freeText      sql.NullString
		document      []byte
		readAt        sql.NullTime
		responseType  sql.NullString
		responseText  sql.NullString
		responseAt    sql.NullTime
		journalpostID sql.NullString
		distributedAt sql.NullTime
	)
	err := row.Scan(&n.ID, &u, &n.RecipientType, &n.ParticipantID, &n.Kind, &freeText, &document, &n.PDF,
		&n.Digital, &readAt, &responseType, &responseText, &responseAt,
		&journalpostID, &distributedAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}

	n.UUID = parseUUID(u)
	n.FreeText = freeText.String
	n.Document = document
	n.JournalpostID = journalpostID.String
	if readAt.Valid {
		n.ReadAt = &readAt.Time
	}
	if distributedAt.Valid {
		n.DistributedAt = &distributedAt.Time
	}
	if responseType.Valid {
		n.Response = &models.NotificationResponse{
			Type:      models.ResponseType(responseType.String),
			Text:      responseText.String,
			CreatedAt: responseAt.Time,
		}
	}
	return &n, nil
}
