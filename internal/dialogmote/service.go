// internal/dialogmote/service.go
// Package dialogmote implements the meeting lifecycle state machine. Every
// operation runs inside one transaction: status update, notification and
// minutes rows, to-do clearing and the dispatch side effects either all
// happen or none of them do.
package dialogmote

import (
	"context"
	"database/sql"
	"time"

	domainerrors "dialogmote-coordinator/internal/common/errors"
	"dialogmote-coordinator/internal/common/logger"
	"dialogmote-coordinator/internal/common/metrics"
	"dialogmote-coordinator/internal/common/validation"
	"dialogmote-coordinator/internal/dispatch"
	"dialogmote-coordinator/internal/models"
	"dialogmote-coordinator/internal/store"

	"github.com/google/uuid"
)

// Dispatcher is the notification dispatch orchestrator contract.
type Dispatcher interface {
	Dispatch(ctx context.Context, tx store.DBTX, meeting *models.Meeting, participants models.Participants, set dispatch.NotificationSet, deliver bool) (*dispatch.Result, error)
}

// AuditIndexer mirrors status changes into the search index. Best effort:
// it runs after commit and its failure never fails the use case.
type AuditIndexer interface {
	IndexStatusChange(ctx context.Context, meetingUUID string, change models.StatusChange)
}

// Service is the meeting lifecycle state machine.
type Service struct {
	db         *sql.DB
	dispatcher Dispatcher
	renderer   dispatch.PDFRenderer
	audit      AuditIndexer
	log        logger.Logger
	metrics    metrics.Sink
	now        func() time.Time
}

// NewService wires the state machine. audit may be nil.
func NewService(db *sql.DB, dispatcher Dispatcher, renderer dispatch.PDFRenderer, audit AuditIndexer, log logger.Logger, sink metrics.Sink) *Service {
	return &Service{
		db:         db,
		dispatcher: dispatcher,
		renderer:   renderer,
		audit:      audit,
		log:        log.WithFields(map[string]interface{}{"component": "dialogmote"}),
		metrics:    sink,
		now:        time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Open creates a meeting in SUMMONED state together with its participants
// and initial time/place, and issues the SUMMONED notifications. Fails with
// a conflict when an active meeting already exists for the (worker,
// employer) pair.
func (s *Service) Open(ctx context.Context, nm NewMeeting) (*models.Meeting, error) {
	started := s.now()
	var meeting *models.Meeting
	var change models.StatusChange

	err := store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		active, err := store.HasActiveMeeting(ctx, tx, nm.WorkerPersonID, nm.EmployerOrgNumber)
		if err != nil {
			return err
		}
		if active {
			return domainerrors.NewConflictError(
				"active meeting already exists",
				"worker "+nm.WorkerPersonID+" / employer "+nm.EmployerOrgNumber,
			)
		}

		now := s.now().UTC()
		meeting = &models.Meeting{
			UUID:              uuid.New(),
			CreatedAt:         now,
			UpdatedAt:         now,
			Status:            models.StatusSummoned,
			CaseWorkerID:      nm.CaseWorkerID,
			OfficeID:          nm.OfficeID,
			WorkerPersonID:    nm.WorkerPersonID,
			EmployerOrgNumber: nm.EmployerOrgNumber,
		}
		if meeting.ID, err = store.CreateMeeting(ctx, tx, meeting); err != nil {
			return err
		}

		tp := models.TimeAndPlace{
			MeetingID:   meeting.ID,
			CreatedAt:   now,
			ScheduledAt: nm.TimeAndPlace.ScheduledAt,
			Place:       nm.TimeAndPlace.Place,
			VideoLink:   nm.TimeAndPlace.VideoLink,
		}
		if tp.ID, err = store.CreateTimeAndPlace(ctx, tx, &tp); err != nil {
			return err
		}
		meeting.TimeAndPlaces = []models.TimeAndPlace{tp}

		participants, err := s.createParticipants(ctx, tx, meeting.ID, nm)
		if err != nil {
			return err
		}

		change = models.StatusChange{MeetingID: meeting.ID, Status: models.StatusSummoned, Actor: nm.CaseWorkerID, CreatedAt: now}
		if err := store.CreateStatusChange(ctx, tx, &change); err != nil {
			return err
		}

		set := dispatch.NotificationSet{
			Kind:     models.KindSummoned,
			Worker:   letter(nm.Worker),
			Employer: letter(nm.Employer),
		}
		if participants.HasPractitioner() && nm.Practitioner != nil {
			set.Practitioner = letter(*nm.Practitioner)
		}

		deliver := nm.TimeAndPlace.ScheduledAt.After(s.now())
		_, err = s.dispatcher.Dispatch(ctx, tx, meeting, participants, set, deliver)
		return err
	})
	if err != nil {
		s.fail("open", models.KindSummoned, err)
		return nil, err
	}

	s.finish(ctx, "open", started, meeting.UUID, change)
	return meeting, nil
}

// Cancel transitions the meeting to CANCELLED, clears the worker's pending
// to-dos and issues the CANCELLED notifications. A practitioner-facing
// reason is mandatory when the meeting has a practitioner participant.
func (s *Service) Cancel(ctx context.Context, meetingUUID uuid.UUID, req CancelRequest) error {
	started := s.now()
	var meetingRef uuid.UUID
	var change models.StatusChange

	err := store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		meeting, participants, err := s.loadForTransition(ctx, tx, meetingUUID, models.StatusCancelled)
		if err != nil {
			return err
		}
		if err := requirePractitionerLetter(participants, req.Practitioner); err != nil {
			return err
		}
		meetingRef = meeting.UUID

		now := s.now().UTC()
		if err := store.UpdateMeetingStatus(ctx, tx, meeting.ID, models.StatusCancelled, now); err != nil {
			return err
		}
		change = models.StatusChange{MeetingID: meeting.ID, Status: models.StatusCancelled, Actor: req.CaseWorkerID, CreatedAt: now}
		if err := store.CreateStatusChange(ctx, tx, &change); err != nil {
			return err
		}
		if _, err := store.MarkWorkerTodosRead(ctx, tx, meeting.ID, now); err != nil {
			return err
		}

		set := dispatch.NotificationSet{
			Kind:     models.KindCancelled,
			Worker:   letter(req.Worker),
			Employer: letter(req.Employer),
		}
		if participants.HasPractitioner() {
			set.Practitioner = letter(*req.Practitioner)
		}

		deliver := s.timeNotPassed(meeting)
		_, err = s.dispatcher.Dispatch(ctx, tx, meeting, participants, set, deliver)
		return err
	})
	if err != nil {
		s.fail("cancel", models.KindCancelled, err)
		return err
	}

	s.finish(ctx, "cancel", started, meetingRef, change)
	return nil
}

// Reschedule appends a new time/place revision, clears pending to-dos and
// issues the RESCHEDULED notifications. Validation mirrors Cancel.
func (s *Service) Reschedule(ctx context.Context, meetingUUID uuid.UUID, req RescheduleRequest) error {
	started := s.now()
	var meetingRef uuid.UUID
	var change models.StatusChange

	err := store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		meeting, participants, err := s.loadForTransition(ctx, tx, meetingUUID, models.StatusRescheduled)
		if err != nil {
			return err
		}
		if err := requirePractitionerLetter(participants, req.Practitioner); err != nil {
			return err
		}
		meetingRef = meeting.UUID

		now := s.now().UTC()
		tp := models.TimeAndPlace{
			MeetingID:   meeting.ID,
			CreatedAt:   now,
			ScheduledAt: req.TimeAndPlace.ScheduledAt,
			Place:       req.TimeAndPlace.Place,
			VideoLink:   req.TimeAndPlace.VideoLink,
		}
		if tp.ID, err = store.CreateTimeAndPlace(ctx, tx, &tp); err != nil {
			return err
		}
		meeting.TimeAndPlaces = append(meeting.TimeAndPlaces, tp)

		if err := store.UpdateMeetingStatus(ctx, tx, meeting.ID, models.StatusRescheduled, now); err != nil {
			return err
		}
		change = models.StatusChange{MeetingID: meeting.ID, Status: models.StatusRescheduled, Actor: req.CaseWorkerID, CreatedAt: now}
		if err := store.CreateStatusChange(ctx, tx, &change); err != nil {
			return err
		}
		if _, err := store.MarkWorkerTodosRead(ctx, tx, meeting.ID, now); err != nil {
			return err
		}

		set := dispatch.NotificationSet{
			Kind:     models.KindRescheduled,
			Worker:   letter(req.Worker),
			Employer: letter(req.Employer),
		}
		if participants.HasPractitioner() {
			set.Practitioner = letter(*req.Practitioner)
		}

		deliver := req.TimeAndPlace.ScheduledAt.After(s.now())
		_, err = s.dispatcher.Dispatch(ctx, tx, meeting, participants, set, deliver)
		return err
	})
	if err != nil {
		s.fail("reschedule", models.KindRescheduled, err)
		return err
	}

	s.finish(ctx, "reschedule", started, meetingRef, change)
	return nil
}

// SaveDraftMinutes creates or updates in place the single non-finalized
// minutes revision. No notifications are issued.
func (s *Service) SaveDraftMinutes(ctx context.Context, meetingUUID uuid.UUID, content MinutesContent) error {
	started := s.now()

	err := store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		meeting, err := store.GetMeetingByUUID(ctx, tx, meetingUUID)
		if err != nil {
			return notFoundOr(err, meetingUUID)
		}
		if meeting.Status == models.StatusCancelled {
			return domainerrors.NewConflictError("meeting is cancelled", meeting.UUID.String())
		}

		now := s.now().UTC()
		draft := meeting.CurrentDraftMinutes()
		if draft == nil {
			m := models.Minutes{
				UUID:      uuid.New(),
				MeetingID: meeting.ID,
				CreatedAt: now,
				UpdatedAt: now,
			}
			applyMinutesContent(&m, content)
			_, err = store.CreateMinutes(ctx, tx, &m)
			return err
		}

		draft.UpdatedAt = now
		applyMinutesContent(draft, content)
		return store.UpdateDraftMinutes(ctx, tx, draft)
	})
	if err != nil {
		s.fail("save-draft-minutes", models.KindMinutes, err)
		return err
	}

	s.metrics.ObserveUseCase("save-draft-minutes", s.now().Sub(started))
	return nil
}

// FinalizeMinutes freezes the current draft (creating one when none
// exists), renders its PDF, transitions the meeting to FINALIZED and issues
// the MINUTES notifications. Finalizing twice is a conflict.
func (s *Service) FinalizeMinutes(ctx context.Context, meetingUUID uuid.UUID, req FinalizeRequest) error {
	return s.finalize(ctx, meetingUUID, req, false)
}

// AmendFinalizedMinutes creates the next finalized minutes revision with
// read state reset, and re-issues the MINUTES notifications tagged as an
// amendment. Requires an existing finalized revision; its absence is a data
// inconsistency, not a user error.
func (s *Service) AmendFinalizedMinutes(ctx context.Context, meetingUUID uuid.UUID, req FinalizeRequest) error {
	return s.finalize(ctx, meetingUUID, req, true)
}

func (s *Service) finalize(ctx context.Context, meetingUUID uuid.UUID, req FinalizeRequest, amendment bool) error {
	operation := "finalize-minutes"
	if amendment {
		operation = "amend-minutes"
	}
	started := s.now()
	var meetingRef uuid.UUID
	var change models.StatusChange

	err := store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		meeting, err := store.GetMeetingByUUID(ctx, tx, meetingUUID)
		if err != nil {
			return notFoundOr(err, meetingUUID)
		}
		meetingRef = meeting.UUID

		if amendment {
			if meeting.Status != models.StatusFinalized {
				return domainerrors.NewConflictError("meeting is not finalized", string(meeting.Status))
			}
			if meeting.LatestFinalizedMinutes() == nil {
				return domainerrors.NewDataInconsistencyError("finalized meeting has no finalized minutes", meeting.UUID.String())
			}
		} else {
			if !meeting.Status.CanTransitionTo(models.StatusFinalized) {
				return domainerrors.NewConflictError("cannot finalize minutes", string(meeting.Status))
			}
			if meeting.CurrentDraftMinutes() == nil && meeting.LatestFinalizedMinutes() != nil {
				return domainerrors.NewConflictError("minutes already finalized", meeting.UUID.String())
			}
		}

		participants, err := store.GetParticipants(ctx, tx, meeting.ID)
		if err != nil {
			return err
		}
		if participants.HasPractitioner() && req.Content.PractitionerGetsCopy {
			if err := requirePractitionerLetter(participants, req.Practitioner); err != nil {
				return err
			}
		}

		if err := validation.ValidateDocument(req.Content.Document); err != nil {
			return domainerrors.NewValidationError("invalid minutes document", err.Error())
		}
		pdf, err := s.renderer.Render(ctx, models.KindMinutes, dispatch.RecipientContext{
			Type:     models.ParticipantWorker,
			PersonID: meeting.WorkerPersonID,
		}, req.Content.Document)
		if err != nil {
			return domainerrors.NewUpstreamUnavailableError("pdf-render", err)
		}

		now := s.now().UTC()
		if amendment {
			next := models.Minutes{
				UUID:      uuid.New(),
				MeetingID: meeting.ID,
				CreatedAt: now,
				UpdatedAt: now,
				Finalized: true,
				PDF:       pdf,
			}
			applyMinutesContent(&next, req.Content)
			if _, err := store.CreateMinutes(ctx, tx, &next); err != nil {
				return err
			}
		} else {
			draft := meeting.CurrentDraftMinutes()
			if draft == nil {
				m := models.Minutes{
					UUID:      uuid.New(),
					MeetingID: meeting.ID,
					CreatedAt: now,
					UpdatedAt: now,
					Finalized: true,
					PDF:       pdf,
				}
				applyMinutesContent(&m, req.Content)
				if _, err := store.CreateMinutes(ctx, tx, &m); err != nil {
					return err
				}
			} else {
				applyMinutesContent(draft, req.Content)
				draft.PDF = pdf
				if err := store.FinalizeMinutes(ctx, tx, draft, now); err != nil {
					return err
				}
			}

			if err := store.UpdateMeetingStatus(ctx, tx, meeting.ID, models.StatusFinalized, now); err != nil {
				return err
			}
			change = models.StatusChange{MeetingID: meeting.ID, Status: models.StatusFinalized, Actor: req.CaseWorkerID, CreatedAt: now}
			if err := store.CreateStatusChange(ctx, tx, &change); err != nil {
				return err
			}
		}

		if _, err := store.MarkWorkerTodosRead(ctx, tx, meeting.ID, now); err != nil {
			return err
		}

		set := dispatch.NotificationSet{
			Kind:      models.KindMinutes,
			Amendment: amendment,
			Worker:    letter(req.Worker),
			Employer:  letter(req.Employer),
		}
		if participants.HasPractitioner() && req.Content.PractitionerGetsCopy {
			set.Practitioner = letter(*req.Practitioner)
		}

		// Minutes always dispatch: the meeting has by definition taken
		// place, the past-time guard only applies to scheduling letters.
		_, err = s.dispatcher.Dispatch(ctx, tx, meeting, participants, set, true)
		return err
	})
	if err != nil {
		s.fail(operation, models.KindMinutes, err)
		return err
	}

	s.finish(ctx, operation, started, meetingRef, change)
	return nil
}

func (s *Service) createParticipants(ctx context.Context, tx *sql.Tx, meetingID int64, nm NewMeeting) (models.Participants, error) {
	var out models.Participants
	var err error

	out.Worker = &models.WorkerParticipant{UUID: uuid.New(), MeetingID: meetingID, PersonID: nm.WorkerPersonID}
	if out.Worker.ID, err = store.CreateWorkerParticipant(ctx, tx, out.Worker); err != nil {
		return out, err
	}

	out.Employer = &models.EmployerParticipant{
		UUID:         uuid.New(),
		MeetingID:    meetingID,
		OrgNumber:    nm.EmployerOrgNumber,
		ContactName:  nm.EmployerContactName,
		ContactEmail: nm.EmployerContactEmail,
	}
	if out.Employer.ID, err = store.CreateEmployerParticipant(ctx, tx, out.Employer); err != nil {
		return out, err
	}

	if nm.PractitionerRef != "" {
		out.Practitioner = &models.PractitionerParticipant{
			UUID:            uuid.New(),
			MeetingID:       meetingID,
			PractitionerRef: nm.PractitionerRef,
			Name:            nm.PractitionerName,
			OfficeName:      nm.PractitionerOfficeName,
		}
		if out.Practitioner.ID, err = store.CreatePractitionerParticipant(ctx, tx, out.Practitioner); err != nil {
			return out, err
		}
	}
	return out, nil
}

// loadForTransition loads the meeting with participants and checks the
// lifecycle table before anything is written.
func (s *Service) loadForTransition(ctx context.Context, tx *sql.Tx, meetingUUID uuid.UUID, next models.MeetingStatus) (*models.Meeting, models.Participants, error) {
	meeting, err := store.GetMeetingByUUID(ctx, tx, meetingUUID)
	if err != nil {
		return nil, models.Participants{}, notFoundOr(err, meetingUUID)
	}
	if !meeting.Status.CanTransitionTo(next) {
		return nil, models.Participants{}, domainerrors.NewConflictError(
			"transition not allowed",
			string(meeting.Status)+" -> "+string(next),
		)
	}
	participants, err := store.GetParticipants(ctx, tx, meeting.ID)
	if err != nil {
		return nil, models.Participants{}, err
	}
	return meeting, participants, nil
}

// timeNotPassed reports whether the meeting's latest scheduled time is still
// in the future; letters for a meeting that already happened are persisted
// but not delivered.
func (s *Service) timeNotPassed(meeting *models.Meeting) bool {
	tp := meeting.LatestTimeAndPlace()
	return tp != nil && tp.ScheduledAt.After(s.now())
}

func (s *Service) fail(operation string, kind models.NotificationKind, err error) {
	s.metrics.IncDispatchFailed(string(kind), string(domainerrors.CodeOf(err)))
	s.log.Warn("use case failed", map[string]interface{}{
		"operation": operation,
		"error":     err.Error(),
	})
}

func (s *Service) finish(ctx context.Context, operation string, started time.Time, meetingUUID uuid.UUID, change models.StatusChange) {
	s.metrics.ObserveUseCase(operation, s.now().Sub(started))
	if s.audit != nil && change.MeetingID != 0 {
		s.audit.IndexStatusChange(ctx, meetingUUID.String(), change)
	}
	s.log.Info("use case completed", map[string]interface{}{
		"operation": operation,
		"meeting":   meetingUUID.String(),
	})
}

func requirePractitionerLetter(participants models.Participants, letter *LetterInput) error {
	if participants.HasPractitioner() && letter == nil {
		return domainerrors.NewValidationError(
			"practitioner-facing reason is required",
			"meeting has a practitioner participant",
		)
	}
	return nil
}

func notFoundOr(err error, meetingUUID uuid.UUID) error {
	if err == sql.ErrNoRows {
		return domainerrors.NewValidationError("meeting not found", meetingUUID.String())
	}
	return err
}

func letter(in LetterInput) *dispatch.Letter {
	return &dispatch.Letter{FreeText: in.FreeText, Document: in.Document}
}

func applyMinutesContent(m *models.Minutes, c MinutesContent) {
	m.Document = c.Document
	m.Situation = c.Situation
	m.WorkerTask = c.WorkerTask
	m.EmployerTask = c.EmployerTask
	m.Plan = c.Plan
	m.PractitionerAttended = c.PractitionerAttended
	m.PractitionerTask = c.PractitionerTask
	m.PractitionerGetsCopy = c.PractitionerGetsCopy
}
