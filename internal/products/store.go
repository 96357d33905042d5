package products

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/go-paid-orderflow/internal/aws"
	"github.com/imrishuroy/go-paid-orderflow/internal/txn"
)

// OpReserve tags staged stock decrements inside a unit of work.
const OpReserve = "reserve"

const (
	reserveUpdate    = "SET quantity = quantity - :qty, updated_at = :ua"
	reserveCondition = "attribute_exists(product_id) AND quantity >= :qty"
)

// Store encapsulates reads and stock reservations on the products table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new products Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Get fetches a product with a strongly consistent read. Returns (nil, nil)
// if not found.
func (s *Store) Get(ctx context.Context, productID string) (*Product, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            key(productID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

// StageReserve stages "decrement quantity by qty only if at least qty remain".
// The store evaluates the condition at commit time, so concurrent
// reservations can never drive quantity below zero.
func (s *Store) StageReserve(uow *txn.UnitOfWork, productID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("reserve %s: quantity must be positive, got %d", productID, qty)
	}
	return uow.Update(txn.Op{Kind: OpReserve, Key: productID}, &types.Update{
		TableName:           &s.tableName,
		Key:                 key(productID),
		UpdateExpression:    awsString(reserveUpdate),
		ConditionExpression: awsString(reserveCondition),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":qty": &types.AttributeValueMemberN{Value: strconv.Itoa(qty)},
			":ua":  &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339Nano)},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
}

// Decode unmarshals an item image returned with a cancellation reason.
// Returns (nil, nil) for an empty image.
func Decode(item map[string]types.AttributeValue) (*Product, error) {
	if len(item) == 0 {
		return nil, nil
	}
	var p Product
	if err := attributevalue.UnmarshalMap(item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

func key(productID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"product_id": &types.AttributeValueMemberS{Value: productID},
	}
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
