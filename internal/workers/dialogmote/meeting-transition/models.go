// internal/workers/dialogmote/meeting-transition/models.go
package meetingtransition

import "encoding/json"

// Action names accepted by the worker. Each maps to one lifecycle use case.
const (
	ActionOpen       = "open"
	ActionCancel     = "cancel"
	ActionReschedule = "reschedule"
	ActionSaveDraft  = "save-draft-minutes"
	ActionFinalize   = "finalize-minutes"
	ActionAmend      = "amend-minutes"
)

type Input struct {
	Action      string          `json:"action"`
	MeetingUUID string          `json:"meetingUuid,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

type Output struct {
	MeetingUUID string `json:"meetingUuid"`
	Action      string `json:"action"`
	CompletedAt int64  `json:"completedAt"` // unix milliseconds
}
