package main

// CloudWatch names emitted for every product an order.paid event touches.
const (
	metricStockLevel = "StockLevel"
	metricLowStock   = "LowStock"
	dimProductID     = "ProductId"
)

// stockReading is one product's level after a paid order.
type stockReading struct {
	ProductID string
	Name      string
	Quantity  int
	Threshold int
	Low       bool
}
