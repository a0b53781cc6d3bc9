// internal/workers/dialogmote/process-practitioner-response/handler.go
// Worker process-practitioner-response records inbound clinical-messaging
// replies from practitioners against the notification they answer.
package processpractitionerresponse

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
	"dialogmote-coordinator/internal/models"
	"dialogmote-coordinator/internal/response"
)

const (
	TaskType = "dialogmote-process-practitioner-response"
)

type Handler struct {
	config  *Config
	service *response.Service
	logger  logger.Logger
}

func NewHandler(config *Config, service *response.Service, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		service: service,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
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

	msg, err := toInboundMessage(input)
	if err != nil {
		return nil, err
	}

	if err := h.service.HandleClinicalReply(ctx, *msg); err != nil {
		return nil, err
	}

	return &Output{
		Recorded:    true,
		ProcessedAt: time.Now().UnixMilli(),
	}, nil
}

func toInboundMessage(input *Input) (*response.InboundMessage, error) {
	rtype := models.ResponseType(input.ResponseType)
	switch rtype {
	case models.ResponseAttends, models.ResponseNewTimeWanted, models.ResponseDeclines:
	default:
		return nil, domainerrors.NewValidationError("unknown response type", input.ResponseType)
	}

	msg := response.InboundMessage{
		ConversationRef: input.ConversationRef,
		InitialRequest:  input.InitialRequest,
		Type:            rtype,
		Text:            input.ResponseText,
	}

	if input.MeetingUUID != "" {
		id, err := uuid.Parse(input.MeetingUUID)
		if err != nil {
			return nil, domainerrors.NewValidationError("invalid meeting uuid", input.MeetingUUID)
		}
		msg.MeetingUUID = id
	}

	if input.InferredKind != "" {
		kind := models.NotificationKind(input.InferredKind)
		if !kind.Valid() {
			return nil, domainerrors.NewValidationError("unknown notification kind", input.InferredKind)
		}
		msg.InferredKind = kind
	} else {
		msg.InferredKind = models.KindSummoned
	}

	return &msg, nil
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
