// internal/workers/dialogmote/meeting-transition/handler.go
// Worker meeting-transition executes the dialogmote lifecycle use cases for
// BPMN process instances: open, cancel, reschedule and the minutes
// operations, selected by an action name in the job variables.
package meetingtransition

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	domainerrors "dialogmote-coordinator/internal/common/errors"
	"dialogmote-coordinator/internal/common/logger"
	"dialogmote-coordinator/internal/dialogmote"
)

const (
	TaskType = "dialogmote-meeting-transition"
)

// action runs one use case and returns the meeting UUID it acted on.
type action func(ctx context.Context, svc *dialogmote.Service, in *Input) (string, error)

// registry maps action names to use cases. Unknown actions fail the job
// without retries.
var registry = map[string]action{
	ActionOpen: func(ctx context.Context, svc *dialogmote.Service, in *Input) (string, error) {
		var nm dialogmote.NewMeeting
		if err := json.Unmarshal(in.Payload, &nm); err != nil {
			return "", domainerrors.NewValidationError("invalid open payload", err.Error())
		}
		meeting, err := svc.Open(ctx, nm)
		if err != nil {
			return "", err
		}
		return meeting.UUID.String(), nil
	},
	ActionCancel: func(ctx context.Context, svc *dialogmote.Service, in *Input) (string, error) {
		id, err := parseMeetingUUID(in.MeetingUUID)
		if err != nil {
			return "", err
		}
		var req dialogmote.CancelRequest
		if err := json.Unmarshal(in.Payload, &req); err != nil {
			return "", domainerrors.NewValidationError("invalid cancel payload", err.Error())
		}
		return in.MeetingUUID, svc.Cancel(ctx, id, req)
	},
	ActionReschedule: func(ctx context.Context, svc *dialogmote.Service, in *Input) (string, error) {
		id, err := parseMeetingUUID(in.MeetingUUID)
		if err != nil {
			return "", err
		}
		var req dialogmote.RescheduleRequest
		if err := json.Unmarshal(in.Payload, &req); err != nil {
			return "", domainerrors.NewValidationError("invalid reschedule payload", err.Error())
		}
		return in.MeetingUUID, svc.Reschedule(ctx, id, req)
	},
	ActionSaveDraft: func(ctx context.Context, svc *dialogmote.Service, in *Input) (string, error) {
		id, err := parseMeetingUUID(in.MeetingUUID)
		if err != nil {
			return "", err
		}
		var content dialogmote.MinutesContent
		if err := json.Unmarshal(in.Payload, &content); err != nil {
			return "", domainerrors.NewValidationError("invalid minutes payload", err.Error())
		}
		return in.MeetingUUID, svc.SaveDraftMinutes(ctx, id, content)
	},
	ActionFinalize: func(ctx context.Context, svc *dialogmote.Service, in *Input) (string, error) {
		id, err := parseMeetingUUID(in.MeetingUUID)
		if err != nil {
			return "", err
		}
		var req dialogmote.FinalizeRequest
		if err := json.Unmarshal(in.Payload, &req); err != nil {
			return "", domainerrors.NewValidationError("invalid finalize payload", err.Error())
		}
		return in.MeetingUUID, svc.FinalizeMinutes(ctx, id, req)
	},
	ActionAmend: func(ctx context.Context, svc *dialogmote.Service, in *Input) (string, error) {
		id, err := parseMeetingUUID(in.MeetingUUID)
		if err != nil {
			return "", err
		}
		var req dialogmote.FinalizeRequest
		if err := json.Unmarshal(in.Payload, &req); err != nil {
			return "", domainerrors.NewValidationError("invalid amend payload", err.Error())
		}
		return in.MeetingUUID, svc.AmendFinalizedMinutes(ctx, id, req)
	},
}

type Handler struct {
	config  *Config
	service *dialogmote.Service
	logger  logger.Logger
	now     func() int64
}

func NewHandler(config *Config, service *dialogmote.Service, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		service: service,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:     nowUnixMilli,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err), 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		code := domainerrors.CodeOf(err)
		if code == "" {
			code = domainerrors.ErrCodeUpstreamUnavailable
		}
		h.failJob(client, job, string(code), err.Error(), domainerrors.GetRetryCount(code))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}

	act, ok := registry[input.Action]
	if !ok {
		return nil, domainerrors.NewValidationError("unknown action", input.Action)
	}

	meetingUUID, err := act(ctx, h.service, input)
	if err != nil {
		return nil, err
	}

	return &Output{
		MeetingUUID: meetingUUID,
		Action:      input.Action,
		CompletedAt: h.now(),
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

// failJob retries transient failures and throws a BPMN error for business
// failures so the process can route them.
func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string, retries int32) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
		"retries":      retries,
	})

	if retries > 0 {
		_, err := client.NewFailJobCommand().
			JobKey(job.Key).
			Retries(retries).
			ErrorMessage(fmt.Sprintf("[%s] %s", errorCode, errorMessage)).
			Send(context.Background())
		if err != nil {
			h.logger.Error("failed to fail job", map[string]interface{}{
				"error": err,
			})
		}
		return
	}

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

// Execute exposes the use-case path for tests.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func nowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

func parseMeetingUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, domainerrors.NewValidationError("invalid meeting uuid", s)
	}
	return id, nil
}
