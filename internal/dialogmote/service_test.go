// internal/dialogmote/service_test.go
package dialogmote

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	domainerrors "dialogmote-coordinator/internal/common/errors"
	"dialogmote-coordinator/internal/common/logger"
	"dialogmote-coordinator/internal/common/metrics"
	"dialogmote-coordinator/internal/dispatch"
	"dialogmote-coordinator/internal/models"
	"dialogmote-coordinator/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spyDispatcher records every Dispatch call. Rows are persisted by the real
// orchestrator; the spy only captures what the service asked for.
type spyDispatcher struct {
	calls []dispatchCall
	err   error
}

type dispatchCall struct {
	set     dispatch.NotificationSet
	deliver bool
}

func (d *spyDispatcher) Dispatch(_ context.Context, _ store.DBTX, _ *models.Meeting, _ models.Participants, set dispatch.NotificationSet, deliver bool) (*dispatch.Result, error) {
	d.calls = append(d.calls, dispatchCall{set: set, deliver: deliver})
	if d.err != nil {
		return nil, d.err
	}
	return &dispatch.Result{}, nil
}

type stubRenderer struct{}

func (stubRenderer) Render(_ context.Context, _ models.NotificationKind, _ dispatch.RecipientContext, _ json.RawMessage) ([]byte, error) {
	return []byte("%PDF-stub"), nil
}

// countingRenderer records how many times Render was invoked.
type countingRenderer struct {
	calls int
}

func (r *countingRenderer) Render(_ context.Context, _ models.NotificationKind, _ dispatch.RecipientContext, _ json.RawMessage) ([]byte, error) {
	r.calls++
	return []byte("%PDF-stub"), nil
}

var testDoc = json.RawMessage(`[{"title":"Innkalling","key":"intro","texts":["Du innkalles til dialogmøte."]}]`)

func testLetter() LetterInput {
	return LetterInput{Document: testDoc}
}

func meetingHeaderRows(id int64, u uuid.UUID, status models.MeetingStatus, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "uuid", "created_at", "updated_at", "status",
		"case_worker_id", "office_id", "worker_person_id", "employer_org_number",
	}).AddRow(id, u.String(), now, now, string(status), "Z999999", "0315", "12345678901", "987654321")
}

func timePlaceRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "meeting_id", "created_at", "scheduled_at", "place", "video_link"})
}

func minutesRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "uuid", "meeting_id", "created_at", "updated_at", "finalized", "document",
		"situation", "worker_task", "employer_task", "plan",
		"practitioner_attended", "practitioner_task", "practitioner_gets_copy",
		"pdf", "journalpost_id", "distributed_at",
		"worker_read_at", "employer_read_at", "practitioner_read_at",
	})
}

func participantRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "uuid", "type", "person_id", "org_number", "contact_name", "contact_email",
		"practitioner_ref", "name", "office_name",
	})
}

func expectMeetingLoad(mock sqlmock.Sqlmock, id int64, u uuid.UUID, status models.MeetingStatus, now time.Time, tp *sqlmock.Rows, minutes *sqlmock.Rows) {
	mock.ExpectQuery(`FROM meetings WHERE uuid`).
		WithArgs(u).
		WillReturnRows(meetingHeaderRows(id, u, status, now))
	mock.ExpectQuery(`FROM meeting_time_place`).WithArgs(id).WillReturnRows(tp)
	mock.ExpectQuery(`FROM minutes`).WithArgs(id).WillReturnRows(minutes)
}

func TestOpen_DuplicateActiveMeetingConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("12345678901", "987654321", models.StatusSummoned, models.StatusRescheduled).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	spy := &spyDispatcher{}
	svc := NewService(db, spy, stubRenderer{}, nil, logger.NewTestLogger(t), metrics.NewRecorder())

	_, err = svc.Open(context.Background(), NewMeeting{
		CaseWorkerID:      "Z999999",
		WorkerPersonID:    "12345678901",
		EmployerOrgNumber: "987654321",
		TimeAndPlace:      TimeAndPlaceInput{ScheduledAt: time.Now().Add(48 * time.Hour), Place: "Oslo"},
		Worker:            testLetter(),
		Employer:          testLetter(),
	})

	assert.True(t, domainerrors.IsConflict(err))
	assert.Empty(t, spy.calls, "conflict must happen before any dispatch")
	// No INSERT was expected: a conflicting open writes nothing.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_PastTimePersistsWithoutDelivery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO meetings`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(`INSERT INTO meeting_time_place`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO participants`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectQuery(`INSERT INTO participants`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery(`INSERT INTO status_changes`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	spy := &spyDispatcher{}
	svc := NewService(db, spy, stubRenderer{}, nil, logger.NewTestLogger(t), metrics.NewRecorder()).
		WithClock(func() time.Time { return clock })

	meeting, err := svc.Open(context.Background(), NewMeeting{
		CaseWorkerID:      "Z999999",
		WorkerPersonID:    "12345678901",
		EmployerOrgNumber: "987654321",
		TimeAndPlace:      TimeAndPlaceInput{ScheduledAt: clock.Add(-time.Hour), Place: "Oslo"},
		Worker:            testLetter(),
		Employer:          testLetter(),
	})

	require.NoError(t, err)
	assert.Equal(t, models.StatusSummoned, meeting.Status)
	require.Len(t, spy.calls, 1)
	assert.Equal(t, models.KindSummoned, spy.calls[0].set.Kind)
	assert.False(t, spy.calls[0].deliver, "letters for a past time are persisted but not delivered")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancel_MissingPractitionerReasonFailsBeforeWrites(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	u := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectMeetingLoad(mock, 7, u, models.StatusSummoned, now, timePlaceRows(), minutesRows())
	mock.ExpectQuery(`FROM participants`).
		WithArgs(int64(7)).
		WillReturnRows(participantRows().
			AddRow(10, uuid.New().String(), "worker", "12345678901", nil, nil, nil, nil, nil, nil).
			AddRow(11, uuid.New().String(), "employer", nil, "987654321", nil, nil, nil, nil, nil).
			AddRow(12, uuid.New().String(), "practitioner", nil, nil, nil, nil, "hpr-443", "Dr. Lege", nil))
	mock.ExpectRollback()

	spy := &spyDispatcher{}
	svc := NewService(db, spy, stubRenderer{}, nil, logger.NewTestLogger(t), metrics.NewRecorder())

	err = svc.Cancel(context.Background(), u, CancelRequest{
		CaseWorkerID: "Z999999",
		Worker:       testLetter(),
		Employer:     testLetter(),
		// Practitioner letter deliberately missing.
	})

	assert.True(t, domainerrors.IsValidation(err))
	assert.Empty(t, spy.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancel_TerminalStatusConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	u := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectMeetingLoad(mock, 7, u, models.StatusCancelled, now, timePlaceRows(), minutesRows())
	mock.ExpectRollback()

	svc := NewService(db, &spyDispatcher{}, stubRenderer{}, nil, logger.NewTestLogger(t), metrics.NewRecorder())

	err = svc.Cancel(context.Background(), u, CancelRequest{
		CaseWorkerID: "Z999999",
		Worker:       testLetter(),
		Employer:     testLetter(),
	})
	assert.True(t, domainerrors.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalize_AlreadyFinalizedConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	u := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectMeetingLoad(mock, 7, u, models.StatusFinalized, now, timePlaceRows(),
		minutesRows().AddRow(3, uuid.New().String(), 7, now, now, true, []byte(`[]`),
			"", "", "", "", false, "", false, []byte{1}, nil, nil, nil, nil, nil))
	mock.ExpectRollback()

	spy := &spyDispatcher{}
	svc := NewService(db, spy, stubRenderer{}, nil, logger.NewTestLogger(t), metrics.NewRecorder())

	err = svc.FinalizeMinutes(context.Background(), u, FinalizeRequest{
		CaseWorkerID: "Z999999",
		Content:      MinutesContent{Document: testDoc},
		Worker:       testLetter(),
		Employer:     testLetter(),
	})

	assert.True(t, domainerrors.IsConflict(err))
	assert.Empty(t, spy.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveDraftMinutes_UpdatesExistingDraftInPlace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	u := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectMeetingLoad(mock, 7, u, models.StatusSummoned, now, timePlaceRows(),
		minutesRows().AddRow(3, uuid.New().String(), 7, now, now, false, []byte(`[]`),
			"gammel", "", "", "", false, "", false, []byte{}, nil, nil, nil, nil, nil))
	mock.ExpectExec(`UPDATE minutes SET updated_at`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	svc := NewService(db, &spyDispatcher{}, stubRenderer{}, nil, logger.NewTestLogger(t), metrics.NewRecorder())

	err = svc.SaveDraftMinutes(context.Background(), u, MinutesContent{
		Document:  testDoc,
		Situation: "oppdatert situasjon",
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveDraftMinutes_CancelledMeetingConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	u := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectMeetingLoad(mock, 7, u, models.StatusCancelled, now, timePlaceRows(), minutesRows())
	mock.ExpectRollback()

	svc := NewService(db, &spyDispatcher{}, stubRenderer{}, nil, logger.NewTestLogger(t), metrics.NewRecorder())

	err = svc.SaveDraftMinutes(context.Background(), u, MinutesContent{Document: testDoc})
	assert.True(t, domainerrors.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReschedule_AppendsRevisionAndDelivers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	u := uuid.New()
	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectMeetingLoad(mock, 7, u, models.StatusSummoned, clock,
		timePlaceRows().AddRow(1, 7, clock.Add(-72*time.Hour), clock.Add(24*time.Hour), "Oslo", nil),
		minutesRows())
	mock.ExpectQuery(`FROM participants`).
		WithArgs(int64(7)).
		WillReturnRows(participantRows().
			AddRow(10, uuid.New().String(), "worker", "12345678901", nil, nil, nil, nil, nil, nil).
			AddRow(11, uuid.New().String(), "employer", nil, "987654321", nil, nil, nil, nil, nil))
	mock.ExpectQuery(`INSERT INTO meeting_time_place`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectExec(`UPDATE meetings SET status`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO status_changes`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec(`UPDATE notifications SET read_at`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	spy := &spyDispatcher{}
	svc := NewService(db, spy, stubRenderer{}, nil, logger.NewTestLogger(t), metrics.NewRecorder()).
		WithClock(func() time.Time { return clock })

	err = svc.Reschedule(context.Background(), u, RescheduleRequest{
		CaseWorkerID: "Z999999",
		TimeAndPlace: TimeAndPlaceInput{ScheduledAt: clock.Add(96 * time.Hour), Place: "Bergen"},
		Worker:       testLetter(),
		Employer:     testLetter(),
	})

	require.NoError(t, err)
	require.Len(t, spy.calls, 1)
	assert.Equal(t, models.KindRescheduled, spy.calls[0].set.Kind)
	assert.True(t, spy.calls[0].deliver)
	assert.Nil(t, spy.calls[0].set.Practitioner, "no practitioner participant, no practitioner letter")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_DispatchFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO meetings`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(`INSERT INTO meeting_time_place`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO participants`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectQuery(`INSERT INTO participants`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery(`INSERT INTO status_changes`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectRollback()

	spy := &spyDispatcher{err: domainerrors.NewUpstreamUnavailableError("business-mailbox", assert.AnError)}
	rec := metrics.NewRecorder()
	svc := NewService(db, spy, stubRenderer{}, nil, logger.NewTestLogger(t), rec)

	_, err = svc.Open(context.Background(), NewMeeting{
		CaseWorkerID:      "Z999999",
		WorkerPersonID:    "12345678901",
		EmployerOrgNumber: "987654321",
		TimeAndPlace:      TimeAndPlaceInput{ScheduledAt: time.Now().Add(48 * time.Hour), Place: "Oslo"},
		Worker:            testLetter(),
		Employer:          testLetter(),
	})

	assert.True(t, domainerrors.IsUpstreamUnavailable(err))
	assert.Equal(t, 1, rec.Failed["SUMMONED/UPSTREAM_UNAVAILABLE"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeMinutes_FreezesDraftAndDispatches(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	u := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectMeetingLoad(mock, 7, u, models.StatusSummoned, now, timePlaceRows(),
		minutesRows().AddRow(3, uuid.New().String(), 7, now, now, false, []byte(`[]`),
			"utkast", "", "", "", false, "", false, []byte{}, nil, nil, nil, nil, nil))
	mock.ExpectQuery(`FROM participants`).
		WithArgs(int64(7)).
		WillReturnRows(participantRows().
			AddRow(10, uuid.New().String(), "worker", "12345678901", nil, nil, nil, nil, nil, nil).
			AddRow(11, uuid.New().String(), "employer", nil, "987654321", nil, nil, nil, nil, nil))
	mock.ExpectExec(`UPDATE minutes SET finalized = TRUE`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE meetings SET status`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO status_changes`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec(`UPDATE notifications SET read_at`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	spy := &spyDispatcher{}
	svc := NewService(db, spy, stubRenderer{}, nil, logger.NewTestLogger(t), metrics.NewRecorder()).
		WithClock(func() time.Time { return now })

	err = svc.FinalizeMinutes(context.Background(), u, FinalizeRequest{
		CaseWorkerID: "Z999999",
		Content:      MinutesContent{Document: testDoc, Situation: "delvis tilbake"},
		Worker:       testLetter(),
		Employer:     testLetter(),
	})

	require.NoError(t, err)
	require.Len(t, spy.calls, 1)
	assert.Equal(t, models.KindMinutes, spy.calls[0].set.Kind)
	assert.False(t, spy.calls[0].set.Amendment)
	assert.True(t, spy.calls[0].deliver, "minutes always dispatch, the meeting has taken place")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAmendFinalizedMinutes_CreatesNewRevision(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	u := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectMeetingLoad(mock, 7, u, models.StatusFinalized, now, timePlaceRows(),
		minutesRows().AddRow(3, uuid.New().String(), 7, now, now, true, []byte(`[]`),
			"", "", "", "", false, "", false, []byte{1}, nil, nil, nil, nil, nil))
	mock.ExpectQuery(`FROM participants`).
		WithArgs(int64(7)).
		WillReturnRows(participantRows().
			AddRow(10, uuid.New().String(), "worker", "12345678901", nil, nil, nil, nil, nil, nil).
			AddRow(11, uuid.New().String(), "employer", nil, "987654321", nil, nil, nil, nil, nil))
	mock.ExpectQuery(`INSERT INTO minutes`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(4)))
	mock.ExpectExec(`UPDATE notifications SET read_at`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	spy := &spyDispatcher{}
	svc := NewService(db, spy, stubRenderer{}, nil, logger.NewTestLogger(t), metrics.NewRecorder()).
		WithClock(func() time.Time { return now })

	err = svc.AmendFinalizedMinutes(context.Background(), u, FinalizeRequest{
		CaseWorkerID: "Z999999",
		Content:      MinutesContent{Document: testDoc, Situation: "korrigert"},
		Worker:       testLetter(),
		Employer:     testLetter(),
	})

	require.NoError(t, err)
	require.Len(t, spy.calls, 1)
	assert.Equal(t, models.KindMinutes, spy.calls[0].set.Kind)
	assert.True(t, spy.calls[0].set.Amendment)
	assert.True(t, spy.calls[0].deliver)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeMinutes_InvalidDocumentRejectedBeforeRender(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	u := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectMeetingLoad(mock, 7, u, models.StatusSummoned, now, timePlaceRows(),
		minutesRows().AddRow(3, uuid.New().String(), 7, now, now, false, []byte(`[]`),
			"", "", "", "", false, "", false, []byte{}, nil, nil, nil, nil, nil))
	mock.ExpectQuery(`FROM participants`).
		WithArgs(int64(7)).
		WillReturnRows(participantRows().
			AddRow(10, uuid.New().String(), "worker", "12345678901", nil, nil, nil, nil, nil, nil).
			AddRow(11, uuid.New().String(), "employer", nil, "987654321", nil, nil, nil, nil, nil))
	mock.ExpectRollback()

	renderer := &countingRenderer{}
	svc := NewService(db, &spyDispatcher{}, renderer, nil, logger.NewTestLogger(t), metrics.NewRecorder())

	err = svc.FinalizeMinutes(context.Background(), u, FinalizeRequest{
		CaseWorkerID: "Z999999",
		Content:      MinutesContent{Document: json.RawMessage(`[{"title":"uten tekst"}]`)},
		Worker:       testLetter(),
		Employer:     testLetter(),
	})

	assert.True(t, domainerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "invalid minutes document")
	assert.Zero(t, renderer.calls, "invalid bodies never reach the renderer")
	assert.NoError(t, mock.ExpectationsWereMet())
}
