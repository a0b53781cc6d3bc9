// internal/dispatch/collaborators.go
// Package dispatch decides, per recipient, how a notification leaves the
// system: digitally, through the national business mailbox, or flagged for
// physical archival and distribution.
package dispatch

import (
	"context"
	"encoding/json"

	"dialogmote-coordinator/internal/models"
)

// RecipientContext carries the recipient fields a letter rendering needs.
type RecipientContext struct {
	Type      models.ParticipantType `json:"type"`
	PersonID  string                 `json:"personId,omitempty"`
	OrgNumber string                 `json:"orgNumber,omitempty"`
	Name      string                 `json:"name,omitempty"`
}

// PDFRenderer renders a structured letter body into PDF bytes.
type PDFRenderer interface {
	Render(ctx context.Context, kind models.NotificationKind, recipient RecipientContext, document json.RawMessage) ([]byte, error)
}

// ReachabilityChecker resolves whether a person can receive digital mail.
type ReachabilityChecker interface {
	IsDigitallyReachable(ctx context.Context, personID string) (bool, error)
}

// Contact is an employer's designated contact person.
type Contact struct {
	Name  string
	Email string
}

// ContactLookup resolves the employer's active contact person for a worker,
// if any. A nil Contact with nil error means no active contact exists.
type ContactLookup interface {
	ActiveContact(ctx context.Context, personID, orgNumber string) (*Contact, error)
}

// LetterMetadata accompanies a business-mailbox submission.
type LetterMetadata struct {
	Title     string
	Kind      models.NotificationKind
	MeetingID int64
}

// BusinessMailbox submits a rendered PDF to the national business-mailbox
// gateway. The call is synchronous; its failure fails the use case.
type BusinessMailbox interface {
	Send(ctx context.Context, orgNumber string, pdf []byte, meta LetterMetadata) error
}

// ClinicalMessage is a structured message to a treating practitioner.
type ClinicalMessage struct {
	PractitionerRef  string
	NotificationUUID string
	Kind             models.NotificationKind
	Document         json.RawMessage
	PDF              []byte
	FreeText         string
}

// ClinicalMessenger sends a structured message to the practitioner's
// clinical inbox. Delivery after the ack is the messaging system's problem.
type ClinicalMessenger interface {
	Send(ctx context.Context, msg ClinicalMessage) error
}

// ContactNotifier tells an employer's designated contact person about a new
// letter.
type ContactNotifier interface {
	NotifyContact(ctx context.Context, contact Contact, kind models.NotificationKind, meetingUUID string) error
}

// Event is an outbound fact for downstream consumers; send-only.
type Event struct {
	Type             string `json:"type"`
	MeetingUUID      string `json:"meetingUuid"`
	NotificationUUID string `json:"notificationUuid,omitempty"`
	Recipient        string `json:"recipient,omitempty"`
	OccurredAt       string `json:"occurredAt"`
}

// EventPublisher publishes outbound facts; no response is expected beyond
// the ack.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
