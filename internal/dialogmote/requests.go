// internal/dialogmote/requests.go
package dialogmote

import (
	"encoding/json"
	"time"
)

// LetterInput is the caller-supplied content for one recipient's letter.
type LetterInput struct {
	FreeText string          `json:"freeText,omitempty"`
	Document json.RawMessage `json:"document"`
}

// TimeAndPlaceInput is the scheduling data for a new or changed meeting.
type TimeAndPlaceInput struct {
	ScheduledAt time.Time `json:"scheduledAt"`
	Place       string    `json:"place"`
	VideoLink   string    `json:"videoLink,omitempty"`
}

// NewMeeting is the draft for opening a meeting. PractitionerRef is empty
// when no practitioner takes part; the practitioner letter is then ignored.
type NewMeeting struct {
	CaseWorkerID      string `json:"caseWorkerId"`
	OfficeID          string `json:"officeId"`
	WorkerPersonID    string `json:"workerPersonId"`
	EmployerOrgNumber string `json:"employerOrgNumber"`

	EmployerContactName  string `json:"employerContactName,omitempty"`
	EmployerContactEmail string `json:"employerContactEmail,omitempty"`

	PractitionerRef        string `json:"practitionerRef,omitempty"`
	PractitionerName       string `json:"practitionerName,omitempty"`
	PractitionerOfficeName string `json:"practitionerOfficeName,omitempty"`

	TimeAndPlace TimeAndPlaceInput `json:"timeAndPlace"`

	Worker       LetterInput  `json:"worker"`
	Employer     LetterInput  `json:"employer"`
	Practitioner *LetterInput `json:"practitioner,omitempty"`
}

// CancelRequest carries the per-recipient cancellation reasons. The
// practitioner letter is mandatory when the meeting has a practitioner
// participant.
type CancelRequest struct {
	CaseWorkerID string       `json:"caseWorkerId"`
	Worker       LetterInput  `json:"worker"`
	Employer     LetterInput  `json:"employer"`
	Practitioner *LetterInput `json:"practitioner,omitempty"`
}

// RescheduleRequest carries the new time and the per-recipient letters
// explaining the change.
type RescheduleRequest struct {
	CaseWorkerID string            `json:"caseWorkerId"`
	TimeAndPlace TimeAndPlaceInput `json:"timeAndPlace"`
	Worker       LetterInput       `json:"worker"`
	Employer     LetterInput       `json:"employer"`
	Practitioner *LetterInput      `json:"practitioner,omitempty"`
}

// MinutesContent is the referat content, shared by draft saves, finalizing
// and amending.
type MinutesContent struct {
	Document     json.RawMessage `json:"document"`
	Situation    string          `json:"situation,omitempty"`
	WorkerTask   string          `json:"workerTask,omitempty"`
	EmployerTask string          `json:"employerTask,omitempty"`
	Plan         string          `json:"plan,omitempty"`

	PractitionerAttended bool   `json:"practitionerAttended,omitempty"`
	PractitionerTask     string `json:"practitionerTask,omitempty"`
	PractitionerGetsCopy bool   `json:"practitionerGetsCopy,omitempty"`
}

// FinalizeRequest finalizes (or amends) minutes and issues the MINUTES
// notifications built from the same content.
type FinalizeRequest struct {
	CaseWorkerID string         `json:"caseWorkerId"`
	Content      MinutesContent `json:"content"`
	Worker       LetterInput    `json:"worker"`
	Employer     LetterInput    `json:"employer"`
	Practitioner *LetterInput   `json:"practitioner,omitempty"`
}
