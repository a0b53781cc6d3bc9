// internal/store/participants.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"dialogmote-coordinator/internal/models"
)

// CreateWorkerParticipant inserts the worker participant row.
func CreateWorkerParticipant(ctx context.Context, q DBTX, p *models.WorkerParticipant) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO participants (uuid, meeting_id, type, person_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		p.UUID, p.MeetingID, models.ParticipantWorker, p.PersonID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert worker participant: %w", err)
	}
	return id, nil
}

// CreateEmployerParticipant inserts the employer participant row.
func CreateEmployerParticipant(ctx context.Context, q DBTX, p *models.EmployerParticipant) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO participants (uuid, meeting_id, type, org_number, contact_name, contact_email)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		p.UUID, p.MeetingID, models.ParticipantEmployer, p.OrgNumber, p.ContactName, p.ContactEmail,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert employer participant: %w", err)
	}
	return id, nil
}

// CreatePractitionerParticipant inserts the optional practitioner row.
func CreatePractitionerParticipant(ctx context.Context, q DBTX, p *models.PractitionerParticipant) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO participants (uuid, meeting_id, type, practitioner_ref, name, office_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		p.UUID, p.MeetingID, models.ParticipantPractitioner, p.PractitionerRef, p.Name, p.OfficeName,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert practitioner participant: %w", err)
	}
	return id, nil
}

// GetParticipants loads all participant rows for a meeting.
func GetParticipants(ctx context.Context, q DBTX, meetingID int64) (models.Participants, error) {
	var out models.Participants

	rows, err := q.QueryContext(ctx, `
		SELECT id, uuid, type, person_id, org_number, contact_name, contact_email, practitioner_ref, name, office_name
		FROM participants WHERE meeting_id = $1
		ORDER BY id`, meetingID)
	if err != nil {
		return out, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id                       int64
			u                        string
			ptype                    models.ParticipantType
			personID, orgNumber      sql.NullString
			contactName, contactMail sql.NullString
			practitionerRef          sql.NullString
			name, officeName         sql.NullString
		)
		if err := rows.Scan(&id, &u, &ptype, &personID, &orgNumber, &contactName, &contactMail, &practitionerRef, &name, &officeName); err != nil {
			return out, fmt.Errorf("scan participant: %w", err)
		}

		switch ptype {
		case models.ParticipantWorker:
			out.Worker = &models.WorkerParticipant{
				ID:        id,
				MeetingID: meetingID,
				PersonID:  personID.String,
			}
			out.Worker.UUID = parseUUID(u)
		case models.ParticipantEmployer:
			out.Employer = &models.EmployerParticipant{
				ID:           id,
				MeetingID:    meetingID,
				OrgNumber:    orgNumber.String,
				ContactName:  contactName.String,
				ContactEmail: contactMail.String,
			}
			out.Employer.UUID = parseUUID(u)
		case models.ParticipantPractitioner:
			out.Practitioner = &models.PractitionerParticipant{
				ID:              id,
				MeetingID:       meetingID,
				PractitionerRef: practitionerRef.String,
				Name:            name.String,
				OfficeName:      officeName.String,
			}
			out.Practitioner.UUID = parseUUID(u)
		}
	}
	return out, rows.Err()
}
