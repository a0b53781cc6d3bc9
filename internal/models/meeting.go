// internal/models/meeting.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// MeetingStatus is the lifecycle state of a dialogue meeting.
type MeetingStatus string

const (
	StatusSummoned    MeetingStatus = "SUMMONED"
	StatusRescheduled MeetingStatus = "RESCHEDULED"
	StatusCancelled   MeetingStatus = "CANCELLED"
	StatusFinalized   MeetingStatus = "FINALIZED"
	StatusClosed      MeetingStatus = "CLOSED"
)

// transitions is the full lifecycle table. A meeting always starts as
// SUMMONED; CANCELLED and CLOSED have no outgoing edges.
var transitions = map[MeetingStatus][]MeetingStatus{
	StatusSummoned:    {StatusCancelled, StatusRescheduled, StatusFinalized},
	StatusRescheduled: {StatusCancelled, StatusRescheduled, StatusFinalized},
	StatusFinalized:   {StatusClosed},
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s MeetingStatus) CanTransitionTo(next MeetingStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsActive reports whether the meeting still blocks a new meeting for the
// same (worker, employer) pair. Only SUMMONED and RESCHEDULED count as
// active; a finalized meeting no longer issues notifications but does not
// block a new one either.
func (s MeetingStatus) IsActive() bool {
	return s == StatusSummoned || s == StatusRescheduled
}

// IsTerminal reports whether no further notifications may be issued.
func (s MeetingStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusFinalized || s == StatusClosed
}

// TimeAndPlace is one scheduling revision for a meeting. Revisions are
// append-only and ordered by CreatedAt, ties broken by ID.
type TimeAndPlace struct {
	ID          int64     `json:"id"`
	MeetingID   int64     `json:"meetingId"`
	CreatedAt   time.Time `json:"createdAt"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Place       string    `json:"place"`
	VideoLink   string    `json:"videoLink,omitempty"`
}

// Meeting is one dialogue meeting between a sick-listed worker, their
// employer and optionally a treating practitioner.
type Meeting struct {
	ID                int64          `json:"id"`
	UUID              uuid.UUID      `json:"uuid"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	Status            MeetingStatus  `json:"status"`
	CaseWorkerID      string         `json:"caseWorkerId"`
	OfficeID          string         `json:"officeId"`
	WorkerPersonID    string         `json:"workerPersonId"`
	EmployerOrgNumber string         `json:"employerOrgNumber"`
	TimeAndPlaces     []TimeAndPlace `json:"timeAndPlaces"`
	Minutes           []Minutes      `json:"minutes"`
}

// LatestTimeAndPlace returns the newest scheduling revision, or nil when the
// meeting has none loaded.
func (m *Meeting) LatestTimeAndPlace() *TimeAndPlace {
	var latest *TimeAndPlace
	for i := range m.TimeAndPlaces {
		tp := &m.TimeAndPlaces[i]
		if latest == nil || tp.CreatedAt.After(latest.CreatedAt) ||
			(tp.CreatedAt.Equal(latest.CreatedAt) && tp.ID > latest.ID) {
			latest = tp
		}
	}
	return latest
}

// CurrentDraftMinutes returns the single non-finalized minutes revision, or
// nil when every revision is finalized or none exist.
func (m *Meeting) CurrentDraftMinutes() *Minutes {
	for i := range m.Minutes {
		if !m.Minutes[i].Finalized {
			return &m.Minutes[i]
		}
	}
	return nil
}

// LatestFinalizedMinutes returns the newest finalized minutes revision, or
// nil when none has been finalized.
func (m *Meeting) LatestFinalizedMinutes() *Minutes {
	var latest *Minutes
	for i := range m.Minutes {
		r := &m.Minutes[i]
		if !r.Finalized {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) ||
			(r.CreatedAt.Equal(latest.CreatedAt) && r.ID > latest.ID) {
			latest = r
		}
	}
	return latest
}

// StatusChange is one append-only audit row recording a lifecycle
// transition.
type StatusChange struct {
	ID        int64         `json:"id"`
	MeetingID int64         `json:"meetingId"`
	Status    MeetingStatus `json:"status"`
	Actor     string        `json:"actor"`
	CreatedAt time.Time     `json:"createdAt"`
}
