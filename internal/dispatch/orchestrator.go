// internal/dispatch/orchestrator.go
package dispatch

import (
	"context"
	"encoding/json"
	"time"

	domainerrors "dialogmote-coordinator/internal/common/errors"
	"dialogmote-coordinator/internal/common/logger"
	"dialogmote-coordinator/internal/common/metrics"
	"dialogmote-coordinator/internal/common/validation"
	"dialogmote-coordinator/internal/models"
	"dialogmote-coordinator/internal/store"

	"github.com/google/uuid"
)

// Channel names the delivery route chosen for one recipient.
type Channel string

const (
	ChannelDigital  Channel = "digital"
	ChannelPhysical Channel = "physical"
	ChannelMailbox  Channel = "business-mailbox"
	ChannelContact  Channel = "contact-person"
	ChannelClinical Channel = "clinical-message"
	ChannelNone     Channel = "none"
)

// Letter is one recipient's generated artifact for a lifecycle event.
type Letter struct {
	FreeText string
	Document json.RawMessage
}

// NotificationSet groups the letters issued by one transition. Nil letters
// mean the recipient gets nothing for this event.
type NotificationSet struct {
	Kind         models.NotificationKind
	Amendment    bool
	Worker       *Letter
	Employer     *Letter
	Practitioner *Letter
}

// Result reports what Dispatch did per recipient.
type Result struct {
	WorkerChannel       Channel
	EmployerChannel     Channel
	PractitionerChannel Channel
	Notifications       []models.Notification
}

// Orchestrator implements the per-recipient channel decision and the
// corresponding external sends. Rows are always persisted through the
// caller's transaction before any side effect runs.
type Orchestrator struct {
	renderer        PDFRenderer
	reachability    ReachabilityChecker
	contacts        ContactLookup
	mailbox         BusinessMailbox
	messenger       ClinicalMessenger
	contactNotifier ContactNotifier
	events          EventPublisher
	log             logger.Logger
	metrics         metrics.Sink
	now             func() time.Time
}

// NewOrchestrator wires the orchestrator. contactNotifier and events may be
// nil when the corresponding integration is disabled.
func NewOrchestrator(
	renderer PDFRenderer,
	reachability ReachabilityChecker,
	contacts ContactLookup,
	mailbox BusinessMailbox,
	messenger ClinicalMessenger,
	contactNotifier ContactNotifier,
	events EventPublisher,
	log logger.Logger,
	sink metrics.Sink,
) *Orchestrator {
	return &Orchestrator{
		renderer:        renderer,
		reachability:    reachability,
		contacts:        contacts,
		mailbox:         mailbox,
		messenger:       messenger,
		contactNotifier: contactNotifier,
		events:          events,
		log:             log.WithFields(map[string]interface{}{"component": "dispatch"}),
		metrics:         sink,
		now:             time.Now,
	}
}

// WithClock overrides the orchestrator's clock. Test hook.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Dispatch persists one notification row per letter and, when deliver is
// true, performs the channel side effect for each. When deliver is false
// (the meeting time already passed) the rows are still written so the
// letters exist in history, but nothing leaves the system.
//
// All writes go through tx and are committed by the caller; any error
// returned here must abort the caller's transaction.
func (o *Orchestrator) Dispatch(ctx context.Context, tx store.DBTX, meeting *models.Meeting, participants models.Participants, set NotificationSet, deliver bool) (*Result, error) {
	result := &Result{
		WorkerChannel:       ChannelNone,
		EmployerChannel:     ChannelNone,
		PractitionerChannel: ChannelNone,
	}

	if set.Worker != nil {
		if participants.Worker == nil {
			return nil, domainerrors.NewDataInconsistencyError("meeting has no worker participant", meeting.UUID.String())
		}
		ch, err := o.dispatchWorker(ctx, tx, meeting, participants.Worker, set, deliver, result)
		if err != nil {
			return nil, err
		}
		result.WorkerChannel = ch
	}

	if set.Employer != nil {
		if participants.Employer == nil {
			return nil, domainerrors.NewDataInconsistencyError("meeting has no employer participant", meeting.UUID.String())
		}
		ch, err := o.dispatchEmployer(ctx, tx, meeting, participants.Employer, set, deliver, result)
		if err != nil {
			return nil, err
		}
		result.EmployerChannel = ch
	}

	if set.Practitioner != nil && participants.Practitioner != nil {
		ch, err := o.dispatchPractitioner(ctx, tx, meeting, participants.Practitioner, set, deliver, result)
		if err != nil {
			return nil, err
		}
		result.PractitionerChannel = ch
	}

	return result, nil
}

func (o *Orchestrator) dispatchWorker(ctx context.Context, tx store.DBTX, meeting *models.Meeting, worker *models.WorkerParticipant, set NotificationSet, deliver bool, result *Result) (Channel, error) {
	recipient := RecipientContext{Type: models.ParticipantWorker, PersonID: worker.PersonID}
	pdf, err := o.renderLetter(ctx, set.Kind, recipient, set.Worker)
	if err != nil {
		return ChannelNone, err
	}

	digital := false
	if deliver {
		digital, err = o.reachability.IsDigitallyReachable(ctx, worker.PersonID)
		if err != nil {
			return ChannelNone, domainerrors.NewUpstreamUnavailableError("reachability", err)
		}
	}

	n, err := o.persist(ctx, tx, models.ParticipantWorker, worker.ID, set, set.Worker, pdf, digital, result)
	if err != nil {
		return ChannelNone, err
	}
	if !deliver {
		return ChannelNone, nil
	}

	if !digital {
		// Physical path: archival assigns the journalpost id upstream, the
		// distribution cronjob picks the row up from there.
		o.metrics.IncDispatched(string(ChannelPhysical), string(set.Kind))
		return ChannelPhysical, nil
	}

	if err := o.publish(ctx, meeting, n, set, "worker"); err != nil {
		return ChannelNone, err
	}
	o.metrics.IncDispatched(string(ChannelDigital), string(set.Kind))
	return ChannelDigital, nil
}

func (o *Orchestrator) dispatchEmployer(ctx context.Context, tx store.DBTX, meeting *models.Meeting, employer *models.EmployerParticipant, set NotificationSet, deliver bool, result *Result) (Channel, error) {
	recipient := RecipientContext{Type: models.ParticipantEmployer, OrgNumber: employer.OrgNumber, Name: employer.ContactName}
	pdf, err := o.renderLetter(ctx, set.Kind, recipient, set.Employer)
	if err != nil {
		return ChannelNone, err
	}

	var contact *Contact
	if deliver {
		contact, err = o.contacts.ActiveContact(ctx, meeting.WorkerPersonID, employer.OrgNumber)
		if err != nil {
			return ChannelNone, domainerrors.NewUpstreamUnavailableError("contact-lookup", err)
		}
	}

	// Both employer channels count as digital: neither needs the physical
	// distribution path.
	n, err := o.persist(ctx, tx, models.ParticipantEmployer, employer.ID, set, set.Employer, pdf, deliver, result)
	if err != nil {
		return ChannelNone, err
	}
	if !deliver {
		return ChannelNone, nil
	}

	if contact == nil {
		meta := LetterMetadata{
			Title:     letterTitle(set),
			Kind:      set.Kind,
			MeetingID: meeting.ID,
		}
		if err := o.mailbox.Send(ctx, employer.OrgNumber, pdf, meta); err != nil {
			return ChannelNone, domainerrors.NewUpstreamUnavailableError("business-mailbox", err)
		}
		o.metrics.IncDispatched(string(ChannelMailbox), string(set.Kind))
		return ChannelMailbox, nil
	}

	if err := o.publish(ctx, meeting, n, set, "employer-contact"); err != nil {
		return ChannelNone, err
	}
	if o.contactNotifier != nil {
		if err := o.contactNotifier.NotifyContact(ctx, *contact, set.Kind, meeting.UUID.String()); err != nil {
			return ChannelNone, domainerrors.NewUpstreamUnavailableError("contact-notifier", err)
		}
	}
	o.metrics.IncDispatched(string(ChannelContact), string(set.Kind))
	return ChannelContact, nil
}

func (o *Orchestrator) dispatchPractitioner(ctx context.Context, tx store.DBTX, meeting *models.Meeting, practitioner *models.PractitionerParticipant, set NotificationSet, deliver bool, result *Result) (Channel, error) {
	recipient := RecipientContext{Type: models.ParticipantPractitioner, Name: practitioner.Name}
	pdf, err := o.renderLetter(ctx, set.Kind, recipient, set.Practitioner)
	if err != nil {
		return ChannelNone, err
	}

	n, err := o.persist(ctx, tx, models.ParticipantPractitioner, practitioner.ID, set, set.Practitioner, pdf, deliver, result)
	if err != nil {
		return ChannelNone, err
	}
	if !deliver {
		return ChannelNone, nil
	}

	msg := ClinicalMessage{
		PractitionerRef:  practitioner.PractitionerRef,
		NotificationUUID: n.UUID.String(),
		Kind:             set.Kind,
		Document:         set.Practitioner.Document,
		PDF:              pdf,
		FreeText:         set.Practitioner.FreeText,
	}
	if err := o.messenger.Send(ctx, msg); err != nil {
		return ChannelNone, domainerrors.NewUpstreamUnavailableError("clinical-messaging", err)
	}
	o.metrics.IncDispatched(string(ChannelClinical), string(set.Kind))
	return ChannelClinical, nil
}

func (o *Orchestrator) renderLetter(ctx context.Context, kind models.NotificationKind, recipient RecipientContext, letter *Letter) ([]byte, error) {
	if err := validation.ValidateDocument(letter.Document); err != nil {
		return nil, domainerrors.NewValidationError("invalid letter document", err.Error())
	}
	pdf, err := o.renderer.Render(ctx, kind, recipient, letter.Document)
	if err != nil {
		return nil, domainerrors.NewUpstreamUnavailableError("pdf-render", err)
	}
	return pdf, nil
}

func (o *Orchestrator) persist(ctx context.Context, tx store.DBTX, recipientType models.ParticipantType, participantID int64, set NotificationSet, letter *Letter, pdf []byte, digital bool, result *Result) (*models.Notification, error) {
	n := models.Notification{
		UUID:          uuid.New(),
		RecipientType: recipientType,
		ParticipantID: participantID,
		Kind:          set.Kind,
		FreeText:      letter.FreeText,
		Document:      letter.Document,
		PDF:           pdf,
		Digital:       digital,
		CreatedAt:     o.now().UTC(),
	}
	id, err := store.CreateNotification(ctx, tx, &n)
	if err != nil {
		return nil, err
	}
	n.ID = id
	result.Notifications = append(result.Notifications, n)
	return &n, nil
}

func (o *Orchestrator) publish(ctx context.Context, meeting *models.Meeting, n *models.Notification, set NotificationSet, recipient string) error {
	spec := set.Kind.Spec()
	eventType := spec.EventType
	if set.Amendment && spec.AmendedEventType != "" {
		eventType = spec.AmendedEventType
	}

	if o.events == nil {
		return nil
	}

	ev := Event{
		Type:             eventType,
		MeetingUUID:      meeting.UUID.String(),
		NotificationUUID: n.UUID.String(),
		Recipient:        recipient,
		OccurredAt:       o.now().UTC().Format(time.RFC3339),
	}
	if err := o.events.Publish(ctx, ev); err != nil {
		return domainerrors.NewUpstreamUnavailableError("event-publisher", err)
	}
	return nil
}

func letterTitle(set NotificationSet) string {
	switch set.Kind {
	case models.KindSummoned:
		return "Innkalling til dialogmøte"
	case models.KindCancelled:
		return "Avlysning av dialogmøte"
	case models.KindRescheduled:
		return "Endret dialogmøte"
	case models.KindMinutes:
		if set.Amendment {
			return "Endret referat fra dialogmøte"
		}
		return "Referat fra dialogmøte"
	default:
		return "Brev om dialogmøte"
	}
}
