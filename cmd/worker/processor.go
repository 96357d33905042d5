package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-paid-orderflow/internal/aws"
	"github.com/imrishuroy/go-paid-orderflow/internal/orders"
	"github.com/imrishuroy/go-paid-orderflow/internal/products"
)

// Processor consumes order.paid events and reports post-sale stock levels to
// CloudWatch so low-stock alarms can fire.
type Processor struct {
	productStore *products.Store
	orderStore   *orders.Store
	cloudWatch   aws.CloudWatchAPI
	namespace    string
	logger       *zap.Logger
}

// NewProcessor creates a new worker processor with AWS clients injected.
func NewProcessor(clients *aws.AWSClients, productsTable, ordersTable, namespace string, logger *zap.Logger) *Processor {
	return &Processor{
		productStore: products.NewStore(clients.DynamoDB, productsTable),
		orderStore:   orders.NewStore(clients.DynamoDB, ordersTable),
		cloudWatch:   clients.CloudWatch,
		namespace:    namespace,
		logger:       logger,
	}
}

// Handle receives an SQS batch event and processes each message. Failed
// messages are reported individually so the rest of the batch is not retried.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Lambda retries only these; after maxReceiveCount they go to the DLQ.
			p.logger.Error("worker error", zap.String("message_id", rec.MessageId), zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	if attr, ok := rec.MessageAttributes["event_type"]; ok && attr.StringValue != nil && *attr.StringValue != orders.EventOrderPaid {
		p.logger.Debug("skipping event", zap.String("event_type", *attr.StringValue))
		return nil
	}

	var msg orders.PaidEvent
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	log := p.logger.With(zap.String("order_id", msg.OrderID))
	log.Info("received order.paid", zap.Int("items", len(msg.Items)))

	// Step 1: the order must exist; the event is only published after commit
	order, err := p.orderStore.Get(ctx, msg.OrderID)
	if err != nil {
		return fmt.Errorf("failed to fetch order: %w", err)
	}
	if order == nil {
		return fmt.Errorf("order not found: %s", msg.OrderID)
	}

	// Step 2: read current levels, once per product
	readings, err := p.readStock(ctx, msg.Items)
	if err != nil {
		return err
	}

	// Step 3: report
	if err := p.putMetrics(ctx, readings); err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	for _, r := range readings {
		if r.Low {
			log.Warn("low stock",
				zap.String("product_id", r.ProductID),
				zap.String("name", r.Name),
				zap.Int("quantity", r.Quantity),
				zap.Int("threshold", r.Threshold),
			)
		}
	}
	return nil
}

func (p *Processor) readStock(ctx context.Context, items []orders.EventItem) ([]stockReading, error) {
	seen := map[string]bool{}
	var out []stockReading
	for _, it := range items {
		if seen[it.ProductID] {
			continue
		}
		seen[it.ProductID] = true

		prod, err := p.productStore.Get(ctx, it.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch product %s: %w", it.ProductID, err)
		}
		if prod == nil {
			p.logger.Warn("product in paid order no longer exists", zap.String("product_id", it.ProductID))
			continue
		}
		threshold := prod.MinStockLevel
		if threshold <= 0 {
			threshold = products.DefaultMinStockLevel
		}
		out = append(out, stockReading{
			ProductID: prod.ProductID,
			Name:      prod.Name,
			Quantity:  prod.Quantity,
			Threshold: threshold,
			Low:       prod.LowStock(),
		})
	}
	return out, nil
}

// putMetrics sends at most 1000 datums per call, the PutMetricData limit.
func (p *Processor) putMetrics(ctx context.Context, readings []stockReading) error {
	var data []cwtypes.MetricDatum
	for _, r := range readings {
		dims := []cwtypes.Dimension{{Name: awsString(dimProductID), Value: awsString(r.ProductID)}}
		data = append(data, cwtypes.MetricDatum{
			MetricName: awsString(metricStockLevel),
			Dimensions: dims,
			Unit:       cwtypes.StandardUnitCount,
			Value:      awsFloat64(float64(r.Quantity)),
		})
		if r.Low {
			data = append(data, cwtypes.MetricDatum{
				MetricName: awsString(metricLowStock),
				Dimensions: dims,
				Unit:       cwtypes.StandardUnitCount,
				Value:      awsFloat64(1),
			})
		}
	}
	for len(data) > 0 {
		n := min(len(data), 1000)
		if _, err := p.cloudWatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  awsString(p.namespace),
			MetricData: data[:n],
		}); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func awsString(s string) *string      { return &s }
func awsFloat64(f float64) *float64 { return &f }
