package validation

import (
	"github.com/imrishuroy/go-paid-orderflow/internal/money"
	"github.com/imrishuroy/go-paid-orderflow/internal/txn"
)

// MaxDistinctProducts is the number of different products one order may
// reserve: the order put and the payment claim share the transaction.
const MaxDistinctProducts = txn.MaxItems - 2

// LineItem is a single cart line.
type LineItem struct {
	Product  string `json:"product" validate:"required"`        // product id
	Quantity int    `json:"quantity" validate:"required,min=1"` // must be >= 1
}

// ShippingAddress is where a paid order ships to.
type ShippingAddress struct {
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

// OrderData is the cart the customer paid for.
type OrderData struct {
	OrderItems      []LineItem      `json:"orderItems" validate:"required,min=1,dive"`
	ShippingAddress ShippingAddress `json:"shippingAddress" validate:"required"`
	TotalPrice      money.Amount    `json:"totalPrice" validate:"gt=0"` // total the client claims
}

// VerifyPaymentRequest is the payload for POST /api/payments/verify, as
// forwarded from the gateway checkout callback.
type VerifyPaymentRequest struct {
	RazorpayOrderID   string    `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string    `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string    `json:"razorpay_signature" validate:"required"` // checked by the verifier, not here
	OrderData         OrderData `json:"orderData" validate:"required"`
}

// CreateOrderRequest is the payload for POST /api/orders. Only
// cash-on-delivery orders are created here; online payments go through
// /api/payments/verify.
type CreateOrderRequest struct {
	OrderData
	PaymentMethod string `json:"paymentMethod" validate:"omitempty,eq=cod"`
}

// UpdateStatusRequest is the payload for PUT /api/orders/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,order_status"`
}
