// internal/store/minutes_test.go
package store

import (
	"context"
	"testing"
	"time"

	"dialogmote-coordinator/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestUpdateDraftMinutes_RefusesFinalized(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	m := &models.Minutes{ID: 3, UpdatedAt: time.Now().UTC(), Situation: "ny status"}

	// Zero rows matched: the revision is finalized (or gone) and must not be
	// rewritten.
	mock.ExpectExec(`UPDATE minutes SET updated_at`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = UpdateDraftMinutes(context.Background(), db, m)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "finalized or missing")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeMinutes_SecondCallFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	at := time.Now().UTC()
	m := &models.Minutes{ID: 3, PDF: []byte{1, 2}}

	mock.ExpectExec(`UPDATE minutes SET finalized = TRUE`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, FinalizeMinutes(context.Background(), db, m, at))

	mock.ExpectExec(`UPDATE minutes SET finalized = TRUE`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = FinalizeMinutes(context.Background(), db, m, at)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already finalized")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetMinutesRead(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	at := time.Now().UTC()
	mock.ExpectExec(`UPDATE minutes SET worker_read_at`).
		WithArgs(at, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, SetMinutesRead(context.Background(), db, 4, models.ParticipantWorker, at))

	err = SetMinutesRead(context.Background(), db, 4, models.ParticipantType("bogus"), at)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
