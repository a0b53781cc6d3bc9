// internal/events/publisher.go
// Package events publishes outbound dialogmote facts to the shared SNS
// topic downstream consumers subscribe to.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	commonaws "dialogmote-coordinator/internal/common/aws"
	"dialogmote-coordinator/internal/common/logger"
	"dialogmote-coordinator/internal/dispatch"
)

// SNSPublisher implements dispatch.EventPublisher on top of an SNS topic.
// The event type rides along as a message attribute so consumers can filter
// without parsing the body.
type SNSPublisher struct {
	client   *commonaws.SNSClient
	topicARN string
	log      logger.Logger
}

func NewSNSPublisher(client *commonaws.SNSClient, topicARN string, log logger.Logger) *SNSPublisher {
	return &SNSPublisher{
		client:   client,
		topicARN: topicARN,
		log:      log.WithFields(map[string]interface{}{"component": "events"}),
	}
}

func (p *SNSPublisher) Publish(ctx context.Context, event dispatch.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.Type),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	p.log.Debug("event published", map[string]interface{}{
		"type":      event.Type,
		"messageId": aws.ToString(out.MessageId),
	})
	return nil
}
