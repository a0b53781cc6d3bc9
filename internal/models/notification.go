// internal/models/notification.go
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NotificationKind identifies the lifecycle event a letter was issued for.
type NotificationKind string

const (
	KindSummoned    NotificationKind = "SUMMONED"
	KindCancelled   NotificationKind = "CANCELLED"
	KindRescheduled NotificationKind = "RESCHEDULED"
	KindMinutes     NotificationKind = "MINUTES"
)

// KindSpec is the single mapping table driving kind-dependent behavior.
// Adding a notification kind means adding one row here, not editing every
// service that switches on the kind.
type KindSpec struct {
	// EventType is the outbound fact published when a notification of this
	// kind is issued.
	EventType string
	// AmendedEventType replaces EventType when the notification re-issues an
	// amended artifact. Empty when the kind has no amendment variant.
	AmendedEventType string
	// DistributionEligible marks kinds the retry cronjob reconciles for
	// physical distribution.
	DistributionEligible bool
	// ClearsWorkerTodo marks kinds whose issuance clears the worker's
	// pending to-do notifications.
	ClearsWorkerTodo bool
}

var kindSpecs = map[NotificationKind]KindSpec{
	KindSummoned: {
		EventType:            "dialogmote.varsel.summoned",
		DistributionEligible: true,
	},
	KindCancelled: {
		EventType:            "dialogmote.varsel.cancelled",
		DistributionEligible: true,
		ClearsWorkerTodo:     true,
	},
	KindRescheduled: {
		EventType:            "dialogmote.varsel.rescheduled",
		DistributionEligible: true,
		ClearsWorkerTodo:     true,
	},
	KindMinutes: {
		EventType:        "dialogmote.referat.finalized",
		AmendedEventType: "dialogmote.referat.amended",
		ClearsWorkerTodo: true,
	},
}

// Spec returns the behavior table row for the kind. Unknown kinds return the
// zero spec, which is inert on every axis.
func (k NotificationKind) Spec() KindSpec {
	return kindSpecs[k]
}

// Valid reports whether k is one of the enumerated kinds.
func (k NotificationKind) Valid() bool {
	_, ok := kindSpecs[k]
	return ok
}

// DistributionEligibleKinds returns the notification kinds the retry cronjob
// scans, in a stable order. Minutes follow the same path through a parallel
// query over the minutes table and are not listed here.
func DistributionEligibleKinds() []NotificationKind {
	kinds := make([]NotificationKind, 0, 3)
	for _, k := range []NotificationKind{KindSummoned, KindCancelled, KindRescheduled, KindMinutes} {
		if kindSpecs[k].DistributionEligible {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// ResponseType classifies a recipient's answer to a notification.
type ResponseType string

const (
	ResponseAttends       ResponseType = "ATTENDS"
	ResponseNewTimeWanted ResponseType = "NEW_TIME_WANTED"
	ResponseDeclines      ResponseType = "DECLINES"
)

// NotificationResponse is the single answer a notification may receive.
type NotificationResponse struct {
	Type      ResponseType `json:"type"`
	Text      string       `json:"text,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Notification is one letter issued to one participant for one lifecycle
// event.
type Notification struct {
	ID            int64                 `json:"id"`
	UUID          uuid.UUID             `json:"uuid"`
	RecipientType ParticipantType       `json:"recipientType"`
	ParticipantID int64                 `json:"participantId"`
	Kind          NotificationKind      `json:"kind"`
	FreeText      string                `json:"freeText,omitempty"`
	Document      json.RawMessage       `json:"document"`
	PDF           []byte                `json:"-"`
	Digital       bool                  `json:"digital"`
	ReadAt        *time.Time            `json:"readAt,omitempty"`
	Response      *NotificationResponse `json:"response,omitempty"`
	JournalpostID string                `json:"journalpostId,omitempty"`
	DistributedAt *time.Time            `json:"distributedAt,omitempty"`
	CreatedAt     time.Time             `json:"createdAt"`
}

// Answered reports whether the notification already holds a response.
func (n *Notification) Answered() bool {
	return n.Response != nil
}
