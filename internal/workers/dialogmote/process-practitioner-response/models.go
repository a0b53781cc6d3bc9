// internal/workers/dialogmote/process-practitioner-response/models.go
package processpractitionerresponse

type Input struct {
	ConversationRef string `json:"conversationRef,omitempty"`
	MeetingUUID     string `json:"meetingUuid,omitempty"`
	InitialRequest  bool   `json:"initialRequest,omitempty"`
	InferredKind    string `json:"inferredKind,omitempty"`
	ResponseType    string `json:"responseType"`
	ResponseText    string `json:"responseText,omitempty"`
}

type Output struct {
	Recorded    bool  `json:"recorded"`
	ProcessedAt int64 `json:"processedAt"` // unix milliseconds
}
