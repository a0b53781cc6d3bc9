// internal/models/participant.go
package models

import "github.com/google/uuid"

// ParticipantType discriminates the three participant kinds of a meeting.
type ParticipantType string

const (
	ParticipantWorker       ParticipantType = "worker"
	ParticipantEmployer     ParticipantType = "employer"
	ParticipantPractitioner ParticipantType = "practitioner"
)

// WorkerParticipant is the sick-listed worker side of a meeting.
type WorkerParticipant struct {
	ID            int64          `json:"id"`
	UUID          uuid.UUID      `json:"uuid"`
	MeetingID     int64          `json:"meetingId"`
	PersonID      string         `json:"personId"`
	Notifications []Notification `json:"notifications"`
}

// EmployerParticipant is the employer side of a meeting. ContactName and
// ContactEmail identify the designated contact person, when one was known at
// creation time; the dispatch-time contact is always re-resolved.
type EmployerParticipant struct {
	ID            int64          `json:"id"`
	UUID          uuid.UUID      `json:"uuid"`
	MeetingID     int64          `json:"meetingId"`
	OrgNumber     string         `json:"orgNumber"`
	ContactName   string         `json:"contactName,omitempty"`
	ContactEmail  string         `json:"contactEmail,omitempty"`
	Notifications []Notification `json:"notifications"`
}

// PractitionerParticipant is the optional treating practitioner side of a
// meeting.
type PractitionerParticipant struct {
	ID              int64          `json:"id"`
	UUID            uuid.UUID      `json:"uuid"`
	MeetingID       int64          `json:"meetingId"`
	PractitionerRef string         `json:"practitionerRef"`
	Name            string         `json:"name,omitempty"`
	OfficeName      string         `json:"officeName,omitempty"`
	Notifications   []Notification `json:"notifications"`
}

// Participants groups the meeting's participant records. Practitioner is nil
// when no practitioner takes part.
type Participants struct {
	Worker       *WorkerParticipant
	Employer     *EmployerParticipant
	Practitioner *PractitionerParticipant
}

// HasPractitioner reports whether a practitioner participant exists.
func (p Participants) HasPractitioner() bool {
	return p.Practitioner != nil
}
