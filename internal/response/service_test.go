// internal/response/service_test.go
package response

import (
	"context"
	"database/sql"
	"testing"
	"time"

	domainerrors "dialogmote-coordinator/internal/common/errors"
	"dialogmote-coordinator/internal/common/logger"
	"dialogmote-coordinator/internal/dispatch"
	"dialogmote-coordinator/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingPublisher struct{ events []dispatch.Event }

func (p *capturingPublisher) Publish(_ context.Context, event dispatch.Event) error {
	p.events = append(p.events, event)
	return nil
}

var testClock = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func notificationRow(u uuid.UUID, kind models.NotificationKind, responseType interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "uuid", "recipient_type", "participant_id", "kind", "free_text", "document",
		"pdf", "digital", "read_at", "response_type", "response_text", "response_at",
		"journalpost_id", "distributed_at", "created_at",
	}).AddRow(
		int64(100), u.String(), "practitioner", int64(12), string(kind), "", []byte(`[]`),
		[]byte{1}, true, nil, responseType, nil, nil,
		nil, nil, testClock.Add(-24*time.Hour),
	)
}

func meetingRow(u uuid.UUID, status models.MeetingStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "uuid", "created_at", "updated_at", "status",
		"case_worker_id", "office_id", "worker_person_id", "employer_org_number",
	}).AddRow(int64(7), u.String(), testClock, testClock, string(status), "Z999999", "0315", "12345678901", "987654321")
}

func TestRecordDigitalResponse_StoresFirstResponse(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	u := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM notifications WHERE uuid`).
		WithArgs(u).
		WillReturnRows(notificationRow(u, models.KindSummoned, nil))
	mock.ExpectExec(`UPDATE notifications SET response_type`).
		WithArgs(models.ResponseAttends, "Jeg kommer.", testClock, int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	pub := &capturingPublisher{}
	svc := NewService(db, pub, logger.NewTestLogger(t)).
		WithClock(func() time.Time { return testClock })

	err = svc.RecordDigitalResponse(context.Background(), u, models.ResponseAttends, "Jeg kommer.")

	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "dialogmote.varsel.responded", pub.events[0].Type)
	assert.Equal(t, u.String(), pub.events[0].NotificationUUID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDigitalResponse_AlreadyAnswered(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	u := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM notifications WHERE uuid`).
		WithArgs(u).
		WillReturnRows(notificationRow(u, models.KindSummoned, string(models.ResponseAttends)))
	mock.ExpectRollback()

	svc := NewService(db, nil, logger.NewTestLogger(t))

	err = svc.RecordDigitalResponse(context.Background(), u, models.ResponseDeclines, "Ombestemt.")

	assert.True(t, domainerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "already has a response")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDigitalResponse_MinutesRejected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	u := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM notifications WHERE uuid`).
		WithArgs(u).
		WillReturnRows(notificationRow(u, models.KindMinutes, nil))
	mock.ExpectRollback()

	svc := NewService(db, nil, logger.NewTestLogger(t))

	err = svc.RecordDigitalResponse(context.Background(), u, models.ResponseAttends, "")
	assert.True(t, domainerrors.IsValidation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleClinicalReply_MatchesConversationRef(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	u := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM notifications WHERE uuid`).
		WithArgs(u).
		WillReturnRows(notificationRow(u, models.KindSummoned, nil))
	mock.ExpectExec(`UPDATE notifications SET response_type`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	svc := NewService(db, nil, logger.NewTestLogger(t)).
		WithClock(func() time.Time { return testClock })

	err = svc.HandleClinicalReply(context.Background(), InboundMessage{
		ConversationRef: u.String(),
		Type:            models.ResponseAttends,
		Text:            "Jeg deltar i møtet.",
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleClinicalReply_ReplyWithUnknownRefFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	u := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM notifications WHERE uuid`).
		WithArgs(u).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	svc := NewService(db, nil, logger.NewTestLogger(t))

	err = svc.HandleClinicalReply(context.Background(), InboundMessage{
		ConversationRef: u.String(),
		Type:            models.ResponseDeclines,
	})

	assert.True(t, domainerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "conversation reference")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleClinicalReply_CancelledMeetingDiscarded(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	meetingUUID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM meetings WHERE uuid`).
		WithArgs(meetingUUID).
		WillReturnRows(meetingRow(meetingUUID, models.StatusCancelled))
	mock.ExpectQuery(`FROM meeting_time_place`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "meeting_id", "created_at", "scheduled_at", "place", "video_link"}))
	mock.ExpectQuery(`FROM minutes`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "uuid", "meeting_id", "created_at", "updated_at", "finalized", "document",
			"situation", "worker_task", "employer_task", "plan",
			"practitioner_attended", "practitioner_task", "practitioner_gets_copy",
			"pdf", "journalpost_id", "distributed_at",
			"worker_read_at", "employer_read_at", "practitioner_read_at",
		}))
	mock.ExpectCommit()

	pub := &capturingPublisher{}
	svc := NewService(db, pub, logger.NewTestLogger(t))

	err = svc.HandleClinicalReply(context.Background(), InboundMessage{
		MeetingUUID:    meetingUUID,
		InitialRequest: true,
		InferredKind:   models.KindSummoned,
		Type:           models.ResponseAttends,
	})

	// Discarded silently: committed with no response written and no event.
	assert.NoError(t, err)
	assert.Empty(t, pub.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkNotificationRead_Idempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	u := uuid.New()
	readAt := testClock.Add(-time.Hour)
	rows := sqlmock.NewRows([]string{
		"id", "uuid", "recipient_type", "participant_id", "kind", "free_text", "document",
		"pdf", "digital", "read_at", "response_type", "response_text", "response_at",
		"journalpost_id", "distributed_at", "created_at",
	}).AddRow(
		int64(100), u.String(), "worker", int64(10), "SUMMONED", "", []byte(`[]`),
		[]byte{1}, true, readAt, nil, nil, nil,
		nil, nil, testClock.Add(-24*time.Hour),
	)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM notifications WHERE uuid`).WithArgs(u).WillReturnRows(rows)
	mock.ExpectCommit()

	pub := &capturingPublisher{}
	svc := NewService(db, pub, logger.NewTestLogger(t))

	err = svc.MarkNotificationRead(context.Background(), u)

	assert.NoError(t, err)
	assert.Empty(t, pub.events, "already-read notifications publish nothing")
	assert.NoError(t, mock.ExpectationsWereMet())
}
