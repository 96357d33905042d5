package orders

import (
	"time"

	"github.com/imrishuroy/go-paid-orderflow/internal/money"
)

// Order statuses
const (
	StatusPending    = "Pending"
	StatusProcessing = "Processing"
	StatusShipped    = "Shipped"
	StatusDelivered  = "Delivered"
	StatusCancelled  = "Cancelled"
)

// Payment methods
const (
	PaymentMethodOnline = "online"
	PaymentMethodCOD    = "cod"
)

// PaymentStatusCompleted is recorded on every verified gateway payment.
const PaymentStatusCompleted = "completed"

// Item is one order line. Name and UnitPrice are catalog snapshots taken when
// stock was reserved.
type Item struct {
	ProductID string       `dynamodbav:"product_id" json:"product"`
	Name      string       `dynamodbav:"name" json:"name"`
	Quantity  int          `dynamodbav:"quantity" json:"quantity"`
	UnitPrice money.Amount `dynamodbav:"unit_price" json:"price"`
}

type ShippingAddress struct {
	Address    string `dynamodbav:"address" json:"address"`
	City       string `dynamodbav:"city" json:"city"`
	PostalCode string `dynamodbav:"postal_code" json:"postalCode"`
	Country    string `dynamodbav:"country" json:"country"`
}

// PaymentResult records the verified gateway identifiers. Written once.
type PaymentResult struct {
	ID               string `dynamodbav:"id" json:"id"`
	Status           string `dynamodbav:"status" json:"status"`
	GatewayOrderID   string `dynamodbav:"gateway_order_id" json:"razorpay_order_id"`
	GatewayPaymentID string `dynamodbav:"gateway_payment_id" json:"razorpay_payment_id"`
	Signature        string `dynamodbav:"signature" json:"razorpay_signature"`
}

// Order represents the item stored in the Orders DynamoDB table.
type Order struct {
	OrderID         string          `dynamodbav:"order_id" json:"_id"` // PK
	UserID          string          `dynamodbav:"user_id" json:"user"` // GSI partition key
	Items           []Item          `dynamodbav:"items" json:"orderItems"`
	ShippingAddress ShippingAddress `dynamodbav:"shipping_address" json:"shippingAddress"`
	PaymentMethod   string          `dynamodbav:"payment_method" json:"paymentMethod"`
	TotalPrice      money.Amount    `dynamodbav:"total_price" json:"totalPrice"`
	IsPaid          bool            `dynamodbav:"is_paid" json:"isPaid"`
	PaidAt          *time.Time      `dynamodbav:"paid_at,omitempty" json:"paidAt,omitempty"`
	Status          string          `dynamodbav:"status" json:"status"`
	PaymentResult   *PaymentResult  `dynamodbav:"payment_result,omitempty" json:"paymentResult,omitempty"`
	IsDelivered     bool            `dynamodbav:"is_delivered" json:"isDelivered"`
	DeliveredAt     *time.Time      `dynamodbav:"delivered_at,omitempty" json:"deliveredAt,omitempty"`
	CreatedAt       time.Time       `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `dynamodbav:"updated_at" json:"updatedAt"`
}

// EventOrderPaid is the event_type attribute of PaidEvent messages.
const EventOrderPaid = "order.paid"

// PaidEvent is published to the orders queue after a paid order commits.
type PaidEvent struct {
	OrderID          string       `json:"order_id"`
	UserID           string       `json:"user_id"`
	GatewayPaymentID string       `json:"gateway_payment_id"`
	Items            []EventItem  `json:"items"`
	TotalPrice       money.Amount `json:"total_price"`
	PaidAt           time.Time    `json:"paid_at"`
}

type EventItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// NewPaidEvent builds the event for a committed order.
func NewPaidEvent(o Order) PaidEvent {
	ev := PaidEvent{
		OrderID:    o.OrderID,
		UserID:     o.UserID,
		TotalPrice: o.TotalPrice,
		Items:      make([]EventItem, 0, len(o.Items)),
	}
	if o.PaymentResult != nil {
		ev.GatewayPaymentID = o.PaymentResult.GatewayPaymentID
	}
	if o.PaidAt != nil {
		ev.PaidAt = *o.PaidAt
	}
	for _, it := range o.Items {
		ev.Items = append(ev.Items, EventItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return ev
}

var transitions = map[string][]string{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusDelivered, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}
