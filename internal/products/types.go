package products

import (
	"time"

	"github.com/imrishuroy/go-paid-orderflow/internal/money"
)

// DefaultMinStockLevel mirrors the catalog default for low-stock alerts.
const DefaultMinStockLevel = 5

// Product is the slice of a catalog item the payment workflow needs.
type Product struct {
	ProductID     string       `dynamodbav:"product_id" json:"id"` // PK
	Name          string       `dynamodbav:"name" json:"name"`
	Price         money.Amount `dynamodbav:"price" json:"price"`
	Quantity      int          `dynamodbav:"quantity" json:"quantity"` // never negative
	MinStockLevel int          `dynamodbav:"min_stock_level" json:"minStockLevel"`
	IsActive      bool         `dynamodbav:"is_active" json:"isActive"`
	UpdatedAt     time.Time    `dynamodbav:"updated_at,omitempty" json:"updatedAt"`
}

// LowStock reports whether the product is at or below its alert threshold.
func (p Product) LowStock() bool {
	threshold := p.MinStockLevel
	if threshold <= 0 {
		threshold = DefaultMinStockLevel
	}
	return p.Quantity <= threshold
}
