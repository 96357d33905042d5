package aws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type mockSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (m *mockSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.inputs = append(m.inputs, in)
	return &sqs.SendMessageOutput{}, nil
}

func TestPublish_MarshalsBodyAndAttributes(t *testing.T) {
	mock := &mockSQS{}
	p := NewPublisher(mock, "https://sqs.local/queue")

	err := p.Publish(context.Background(), map[string]string{"order_id": "o1"}, map[string]string{
		"event_type":     "order.paid",
		"correlation_id": "",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(mock.inputs) != 1 {
		t.Fatalf("expected one message, got %d", len(mock.inputs))
	}
	in := mock.inputs[0]
	if *in.QueueUrl != "https://sqs.local/queue" {
		t.Fatalf("queue url mismatch: %s", *in.QueueUrl)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(*in.MessageBody), &body); err != nil {
		t.Fatalf("body is not json: %v", err)
	}
	if body["order_id"] != "o1" {
		t.Fatalf("unexpected body %v", body)
	}
	if _, ok := in.MessageAttributes["correlation_id"]; ok {
		t.Fatalf("empty attribute should be skipped")
	}
	if got := *in.MessageAttributes["event_type"].StringValue; got != "order.paid" {
		t.Fatalf("event_type attribute mismatch: %s", got)
	}
}

func TestPublish_WrapsSendError(t *testing.T) {
	sendErr := errors.New("throttled")
	p := NewPublisher(&mockSQS{err: sendErr}, "q")

	err := p.Publish(context.Background(), struct{}{}, nil)
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}
