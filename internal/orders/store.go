package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/imrishuroy/go-paid-orderflow/internal/aws"
	"github.com/imrishuroy/go-paid-orderflow/internal/txn"
)

// OpCreate tags the staged order put inside a unit of work.
const OpCreate = "order"

// UserIndex is the GSI on user_id (sort key created_at) used by ListByUser.
const UserIndex = "user_id-created_at-index"

var (
	// ErrStatusMismatch is returned when the stored status is not the expected one.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrInvalidTransition is returned for a status change the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
)

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// StageCreate stages the put of a new order. The put is guarded by
// attribute_not_exists(order_id) so an id collision cancels the whole unit.
// order.OrderID must be set by caller.
func (s *Store) StageCreate(uow *txn.UnitOfWork, order Order) error {
	if order.OrderID == "" {
		return errors.New("stage order: missing order id")
	}
	now := s.nowFunc().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}
	return uow.Put(txn.Op{Kind: OpCreate, Key: order.OrderID}, &types.Put{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(order_id)"),
	})
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            key(orderID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// ListByUser returns a user's orders, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int32) ([]Order, error) {
	input := &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              awsString(UserIndex),
		KeyConditionExpression: awsString("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: awsBool(false),
	}
	if limit > 0 {
		input.Limit = &limit
	}
	out, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	list := make([]Order, 0, len(out.Items))
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &list); err != nil {
		return nil, fmt.Errorf("unmarshal orders: %w", err)
	}
	return list, nil
}

// ListAll returns every order, newest first, capped at limit when limit > 0.
// It scans the whole table; the admin listing is the only caller.
func (s *Store) ListAll(ctx context.Context, limit int) ([]Order, error) {
	var list []Order
	p := dyn.NewScanPaginator(s.client, &dyn.ScanInput{TableName: &s.tableName})
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		page := make([]Order, 0, len(out.Items))
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		list = append(list, page...)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// UpdateStatus conditionally updates the order status from expected -> newStatus.
// Moving to Delivered also stamps is_delivered and delivered_at.
// Returns nil on success, ErrStatusMismatch if condition failed.
func (s *Store) UpdateStatus(ctx context.Context, orderID, expectedStatus, newStatus string) error {
	now := s.nowFunc().UTC().Format(time.RFC3339Nano)
	updateExpr := "SET #s = :new, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":new":      &types.AttributeValueMemberS{Value: newStatus},
		":ua":       &types.AttributeValueMemberS{Value: now},
		":expected": &types.AttributeValueMemberS{Value: expectedStatus},
	}
	if newStatus == StatusDelivered {
		updateExpr += ", is_delivered = :dlv, delivered_at = :da"
		values[":dlv"] = &types.AttributeValueMemberBOOL{Value: true}
		values[":da"] = &types.AttributeValueMemberS{Value: now}
	}

	input := &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       key(orderID),
		UpdateExpression:          &updateExpr,
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
		ConditionExpression:       awsString("#s = :expected"),
	}

	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		// detect conditional check failing
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// Transition moves an order to newStatus if the lifecycle allows it from the
// current status, and returns the updated order.
func (s *Store) Transition(ctx context.Context, orderID, newStatus string) (*Order, error) {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrNotFound
	}
	if !CanTransition(o.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, newStatus)
	}
	if err := s.UpdateStatus(ctx, orderID, o.Status, newStatus); err != nil {
		return nil, err
	}
	return s.Get(ctx, orderID)
}

func key(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
