package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/go-paid-orderflow/internal/aws"
	"github.com/imrishuroy/go-paid-orderflow/internal/txn"
)

// OpClaim tags the staged payment-id claim inside a unit of work.
const OpClaim = "claim"

// Store encapsulates idempotency operations against DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration // how long a claim is kept before TTL expiry
	nowFunc   func() time.Time
}

// NewStore returns a configured Store.
// tableName: DynamoDB table name for payment claims.
// ttlWindow: retention of a claim (e.g., 7*24*time.Hour)
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// StageClaim stages the claim of a gateway payment id for orderID. The put is
// guarded by attribute_not_exists(idempotency_key), so when two callbacks for
// the same payment race, only one transaction commits.
func (s *Store) StageClaim(uow *txn.UnitOfWork, paymentID, gatewayOrderID, orderID string) error {
	if paymentID == "" || orderID == "" {
		return errors.New("stage claim: payment id and order id are required")
	}
	now := s.nowFunc().UTC()
	rec := IdempotencyRecord{
		IdempotencyKey: paymentID,
		Status:         StatusDone,
		OrderID:        orderID,
		GatewayOrderID: gatewayOrderID,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttlWindow).Unix(),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return uow.Put(txn.Op{Kind: OpClaim, Key: paymentID}, &types.Put{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(idempotency_key)"),
	})
}

// Get retrieves a claim by payment id. If not found, returns (nil, nil).
// A claim past ExpiresAt still counts until DynamoDB reaps the row: the
// attribute_not_exists guard sees it, so Get must too.
func (s *Store) Get(ctx context.Context, paymentID string) (*IdempotencyRecord, error) {
	input := &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"idempotency_key": &types.AttributeValueMemberS{Value: paymentID},
		},
		ConsistentRead: awsBool(true),
	}
	out, err := s.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec IdempotencyRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &rec, nil
}

// Helper
func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
