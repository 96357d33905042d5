package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Publisher wraps an SQS client and a queue URL.
type Publisher struct {
	SQS      SQSAPI
	QueueURL string
}

// NewPublisher returns a Publisher bound to a queue URL.
func NewPublisher(sqsClient SQSAPI, queueURL string) *Publisher {
	return &Publisher{
		SQS:      sqsClient,
		QueueURL: queueURL,
	}
}

// Publish marshals payload as JSON and sends it to the queue.
// attributes are sent as String message attributes; empty values are skipped.
func (p *Publisher) Publish(ctx context.Context, payload any, attributes map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	messageBody := string(body)

	input := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: &messageBody,
	}
	if len(attributes) > 0 {
		msgAttrs := map[string]sqstypes.MessageAttributeValue{}
		for k, v := range attributes {
			if v == "" {
				continue
			}
			msgAttrs[k] = sqstypes.MessageAttributeValue{
				DataType:    awsString("String"),
				StringValue: awsString(v),
			}
		}
		input.MessageAttributes = msgAttrs
	}

	if _, err := p.SQS.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
