// internal/response/service.go
// Package response matches inbound recipient responses back to the
// notification they answer and records them under the at-most-one-response
// invariant.
package response

import (
	"context"
	"database/sql"
	"time"

	domainerrors "dialogmote-coordinator/internal/common/errors"
	"dialogmote-coordinator/internal/common/logger"
	"dialogmote-coordinator/internal/dispatch"
	"dialogmote-coordinator/internal/models"
	"dialogmote-coordinator/internal/store"

	"github.com/google/uuid"
)

// InboundMessage is a clinical-messaging reply or initial request from a
// practitioner's system.
type InboundMessage struct {
	// ConversationRef references the notification the message answers; for
	// replies this carries the practitioner notification's UUID.
	ConversationRef string
	// MeetingUUID identifies the meeting for fallback matching.
	MeetingUUID uuid.UUID
	// InitialRequest marks messages that open a conversation rather than
	// answer one.
	InitialRequest bool
	// InferredKind is the notification kind the message appears to answer,
	// used only for fallback matching of initial requests.
	InferredKind models.NotificationKind

	Type models.ResponseType
	Text string
}

// Service correlates and records notification responses.
type Service struct {
	db     *sql.DB
	events dispatch.EventPublisher
	log    logger.Logger
	now    func() time.Time
}

// NewService wires the correlation service. events may be nil.
func NewService(db *sql.DB, events dispatch.EventPublisher, log logger.Logger) *Service {
	return &Service{
		db:     db,
		events: events,
		log:    log.WithFields(map[string]interface{}{"component": "response"}),
		now:    time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RecordDigitalResponse stores the response to a notification identified
// directly by UUID, as digital portal responses are. Fails with a
// validation error when the notification is unknown or already answered.
func (s *Service) RecordDigitalResponse(ctx context.Context, notificationUUID uuid.UUID, rtype models.ResponseType, text string) error {
	return store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		n, err := store.GetNotificationByUUID(ctx, tx, notificationUUID)
		if err == sql.ErrNoRows {
			return domainerrors.NewValidationError("notification not found", notificationUUID.String())
		}
		if err != nil {
			return err
		}
		return s.record(ctx, tx, n, rtype, text)
	})
}

// HandleClinicalReply resolves the practitioner notification an inbound
// clinical message answers. Replies match on the conversation reference;
// initial requests fall back to the newest notification of the inferred
// kind, but only while the meeting is still non-terminal. Messages
// referencing a cancelled meeting are discarded without creating a
// response.
func (s *Service) HandleClinicalReply(ctx context.Context, msg InboundMessage) error {
	return store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		n, err := s.resolve(ctx, tx, msg)
		if err != nil {
			return err
		}
		if n == nil {
			// Discarded by design; not an error.
			s.log.Info("inbound message discarded", map[string]interface{}{
				"conversationRef": msg.ConversationRef,
				"meeting":         msg.MeetingUUID.String(),
			})
			return nil
		}
		return s.record(ctx, tx, n, msg.Type, msg.Text)
	})
}

// MarkNotificationRead records the recipient's read timestamp and publishes
// the read fact.
func (s *Service) MarkNotificationRead(ctx context.Context, notificationUUID uuid.UUID) error {
	return store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		n, err := store.GetNotificationByUUID(ctx, tx, notificationUUID)
		if err == sql.ErrNoRows {
			return domainerrors.NewValidationError("notification not found", notificationUUID.String())
		}
		if err != nil {
			return err
		}
		if n.ReadAt != nil {
			return nil
		}
		if err := store.SetNotificationRead(ctx, tx, n.ID, s.now().UTC()); err != nil {
			return err
		}
		s.publish(ctx, "dialogmote.varsel.read", n.UUID.String())
		return nil
	})
}

// MarkMinutesRead records a per-recipient read timestamp on a finalized
// minutes revision.
func (s *Service) MarkMinutesRead(ctx context.Context, minutesUUID uuid.UUID, recipient models.ParticipantType) error {
	return store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		m, err := store.GetMinutesByUUID(ctx, tx, minutesUUID)
		if err == sql.ErrNoRows {
			return domainerrors.NewValidationError("minutes not found", minutesUUID.String())
		}
		if err != nil {
			return err
		}
		if err := store.SetMinutesRead(ctx, tx, m.ID, recipient, s.now().UTC()); err != nil {
			return err
		}
		s.publish(ctx, "dialogmote.referat.read", m.UUID.String())
		return nil
	})
}

func (s *Service) resolve(ctx context.Context, tx *sql.Tx, msg InboundMessage) (*models.Notification, error) {
	if msg.ConversationRef != "" {
		if ref, err := uuid.Parse(msg.ConversationRef); err == nil {
			n, err := store.GetNotificationByUUID(ctx, tx, ref)
			if err == nil {
				return n, nil
			}
			if err != sql.ErrNoRows {
				return nil, err
			}
		}
	}

	if !msg.InitialRequest {
		return nil, domainerrors.NewValidationError("no notification matches conversation reference", msg.ConversationRef)
	}

	meeting, err := store.GetMeetingByUUID(ctx, tx, msg.MeetingUUID)
	if err == sql.ErrNoRows {
		return nil, domainerrors.NewValidationError("meeting not found", msg.MeetingUUID.String())
	}
	if err != nil {
		return nil, err
	}
	if meeting.Status.IsTerminal() {
		// A message about a meeting that no longer issues notifications is
		// dropped, most commonly one referencing a cancelled meeting.
		return nil, nil
	}

	n, err := store.LatestPractitionerNotification(ctx, tx, meeting.ID, msg.InferredKind)
	if err == sql.ErrNoRows {
		return nil, domainerrors.NewValidationError("no practitioner notification of inferred kind", string(msg.InferredKind))
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) record(ctx context.Context, tx *sql.Tx, n *models.Notification, rtype models.ResponseType, text string) error {
	if n.Kind == models.KindMinutes {
		return domainerrors.NewValidationError("responses are not supported on minutes", n.UUID.String())
	}
	if n.Answered() {
		return domainerrors.NewValidationError("notification already has a response", n.UUID.String())
	}

	affected, err := store.SetNotificationResponse(ctx, tx, n.ID, rtype, Sanitize(text), s.now().UTC())
	if err != nil {
		return err
	}
	if affected == 0 {
		return domainerrors.NewValidationError("notification already has a response", n.UUID.String())
	}

	s.publish(ctx, "dialogmote.varsel.responded", n.UUID.String())
	return nil
}

func (s *Service) publish(ctx context.Context, eventType, notificationUUID string) {
	if s.events == nil {
		return
	}
	ev := dispatch.Event{
		Type:             eventType,
		NotificationUUID: notificationUUID,
		OccurredAt:       s.now().UTC().Format(time.RFC3339),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		// Facts are fire-and-forget; losing one must not roll back the
		// recorded response.
		s.log.Warn("event publish failed", map[string]interface{}{
			"type":  eventType,
			"error": err.Error(),
		})
	}
}
