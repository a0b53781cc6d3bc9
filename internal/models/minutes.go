// internal/models/minutes.go
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Minutes is one referat revision for a meeting. A meeting has at most one
// non-finalized draft at a time; finalizing freezes the row, and an
// amendment creates the next revision with read state reset.
type Minutes struct {
	ID        int64           `json:"id"`
	UUID      uuid.UUID       `json:"uuid"`
	MeetingID int64           `json:"meetingId"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Finalized bool            `json:"finalized"`
	Document  json.RawMessage `json:"document"`

	// Narrative sections of the referat.
	Situation    string `json:"situation,omitempty"`
	WorkerTask   string `json:"workerTask,omitempty"`
	EmployerTask string `json:"employerTask,omitempty"`
	Plan         string `json:"plan,omitempty"`

	// Practitioner attendance metadata, meaningful only when the meeting has
	// a practitioner participant.
	PractitionerAttended bool   `json:"practitionerAttended,omitempty"`
	PractitionerTask     string `json:"practitionerTask,omitempty"`
	PractitionerGetsCopy bool   `json:"practitionerGetsCopy,omitempty"`

	PDF           []byte     `json:"-"`
	JournalpostID string     `json:"journalpostId,omitempty"`
	DistributedAt *time.Time `json:"distributedAt,omitempty"`

	WorkerReadAt       *time.Time `json:"workerReadAt,omitempty"`
	EmployerReadAt     *time.Time `json:"employerReadAt,omitempty"`
	PractitionerReadAt *time.Time `json:"practitionerReadAt,omitempty"`
}
