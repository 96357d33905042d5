package idempotency

import "time"

// StatusDone marks a payment id whose order has been committed. Claims are
// written only inside the committing transaction, so no other status is stored.
const StatusDone = "DONE"

// IdempotencyRecord is the shape persisted in the idempotency DynamoDB table.
// The key is the gateway payment id.
type IdempotencyRecord struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	OrderID        string    `dynamodbav:"order_id"`
	GatewayOrderID string    `dynamodbav:"gateway_order_id,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
}
