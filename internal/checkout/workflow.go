// Package checkout turns a verified gateway payment into a paid order.
//
// Confirm walks Verifying → Reserving → Persisting → Committed. A bad
// signature ends in Rejected before anything is opened; any failure after
// that ends in Aborted with nothing written, because every write is staged in
// one txn.UnitOfWork and applied with a single TransactWriteItems call.
// A payment id that already produced an order ends in Replayed and returns
// that order untouched.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-paid-orderflow/internal/aws"
	"github.com/imrishuroy/go-paid-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-paid-orderflow/internal/logging"
	"github.com/imrishuroy/go-paid-orderflow/internal/metrics"
	"github.com/imrishuroy/go-paid-orderflow/internal/money"
	"github.com/imrishuroy/go-paid-orderflow/internal/orders"
	"github.com/imrishuroy/go-paid-orderflow/internal/products"
	"github.com/imrishuroy/go-paid-orderflow/internal/txn"
)

// State is a workflow state. Only the terminal ones are ever returned.
type State string

const (
	StateVerifying  State = "verifying"
	StateReserving  State = "reserving"
	StatePersisting State = "persisting"
	StateCommitted  State = "committed"
	StateRejected   State = "rejected"
	StateAborted    State = "aborted"
	StateReplayed   State = "replayed"
)

// DefaultTxTimeout bounds reservation reads plus the commit.
const DefaultTxTimeout = 10 * time.Second

// SignatureVerifier checks a gateway signature. *payment.Verifier implements it.
type SignatureVerifier interface {
	Verify(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) bool
}

// EventPublisher sends post-commit events. *aws.Publisher implements it.
type EventPublisher interface {
	Publish(ctx context.Context, payload any, attributes map[string]string) error
}

// Deps wires a Workflow. Publisher, Metrics and Tracer are optional.
type Deps struct {
	Verifier  SignatureVerifier
	Products  *products.Store
	Orders    *orders.Store
	Claims    *idempotency.Store
	DB        aws.DynamoDBAPI
	Publisher EventPublisher
	Metrics   *metrics.Metrics
	Tracer    trace.Tracer
	TxTimeout time.Duration
}

// Input is one payment confirmation. UserID comes from the identity
// provider and is trusted as already authenticated.
type Input struct {
	UserID           string
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	Lines            []Line
	ShippingAddress  orders.ShippingAddress
	DeclaredTotal    money.Amount
}

// Result reports the terminal state and, unless the workflow failed, the
// persisted order.
type Result struct {
	Order    *orders.Order
	State    State
	Replayed bool
}

type Workflow struct {
	verifier  SignatureVerifier
	products  *products.Store
	orders    *orders.Store
	claims    *idempotency.Store
	db        aws.DynamoDBAPI
	publisher EventPublisher
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	txTimeout time.Duration

	nowFunc func() time.Time
	idFunc  func() string
}

func New(d Deps) *Workflow {
	w := &Workflow{
		verifier:  d.Verifier,
		products:  d.Products,
		orders:    d.Orders,
		claims:    d.Claims,
		db:        d.DB,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		tracer:    d.Tracer,
		txTimeout: d.TxTimeout,
		nowFunc:   time.Now,
		idFunc:    uuid.NewString,
	}
	if w.tracer == nil {
		w.tracer = otel.Tracer("paid-orderflow/checkout")
	}
	if w.txTimeout <= 0 {
		w.txTimeout = DefaultTxTimeout
	}
	return w
}

// Confirm verifies the payment and, if authentic, reserves stock and creates
// the paid order in one transaction.
func (w *Workflow) Confirm(ctx context.Context, in Input) (res Result, err error) {
	start := w.nowFunc()
	ctx, span := w.tracer.Start(ctx, "checkout.Confirm", trace.WithAttributes(
		attribute.String("gateway.order_id", in.GatewayOrderID),
		attribute.String("gateway.payment_id", in.GatewayPaymentID),
		attribute.Int("cart.lines", len(in.Lines)),
	))
	log := logging.FromContext(ctx).With(
		zap.String("gateway_order_id", in.GatewayOrderID),
		zap.String("gateway_payment_id", in.GatewayPaymentID),
	)
	defer func() {
		span.SetAttributes(attribute.String("checkout.state", string(res.State)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		w.observe(res.State, w.nowFunc().Sub(start))
	}()

	if in.UserID == "" {
		return Result{State: StateRejected}, fmt.Errorf("%w: missing authenticated user", ErrInvalidInput)
	}

	span.AddEvent(string(StateVerifying))
	if !w.authentic(ctx, in.GatewayOrderID, in.GatewayPaymentID, in.Signature) {
		log.Warn("payment signature rejected")
		return Result{State: StateRejected}, ErrAuthentication
	}

	rec, err := w.claims.Get(ctx, in.GatewayPaymentID)
	if err != nil {
		log.Error("payment claim lookup failed", zap.Error(err))
		return Result{State: StateAborted}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if rec != nil {
		return w.replay(ctx, log, in.GatewayPaymentID, rec.OrderID)
	}

	txCtx, cancel := context.WithTimeout(ctx, w.txTimeout)
	defer cancel()
	uow := txn.Begin(w.db)
	defer uow.Release()

	span.AddEvent(string(StateReserving))
	reserved, err := reserve(txCtx, w.products, uow, in.Lines)
	if err != nil {
		return Result{State: StateAborted}, w.abort(log, err)
	}
	if reserved.total != in.DeclaredTotal {
		err = fmt.Errorf("%w: declared %s, catalog %s", ErrTotalMismatch, in.DeclaredTotal, reserved.total)
		return Result{State: StateAborted}, w.abort(log, err)
	}

	span.AddEvent(string(StatePersisting))
	order := w.newOrder(in, reserved)
	if err := w.orders.StageCreate(uow, order); err != nil {
		return Result{State: StateAborted}, w.abort(log, fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	if err := w.claims.StageClaim(uow, in.GatewayPaymentID, in.GatewayOrderID, order.OrderID); err != nil {
		return Result{State: StateAborted}, w.abort(log, fmt.Errorf("%w: %w", ErrPersistence, err))
	}

	span.SetAttributes(attribute.Int("txn.actions", uow.Len()))
	if err := uow.Commit(txCtx); err != nil {
		var ce *txn.CanceledError
		if errors.As(err, &ce) && ce.ConditionFailed(idempotency.OpClaim) {
			// a concurrent callback for the same payment committed first
			return w.replay(ctx, log, in.GatewayPaymentID, "")
		}
		return Result{State: StateAborted}, w.abort(log, w.commitError(err, reserved))
	}

	log.Info("paid order committed",
		zap.String("order_id", order.OrderID),
		zap.String("user_id", order.UserID),
		zap.Int("lines", len(order.Items)),
		zap.Stringer("total", order.TotalPrice),
	)
	w.publishPaid(ctx, log, order)
	return Result{Order: &order, State: StateCommitted}, nil
}

// Authenticate checks only the gateway signature, so a caller can reject a
// forged callback before looking at its cart. Confirm checks it again.
func (w *Workflow) Authenticate(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) error {
	if w.authentic(ctx, gatewayOrderID, gatewayPaymentID, signature) {
		return nil
	}
	logging.FromContext(ctx).Warn("payment signature rejected",
		zap.String("gateway_order_id", gatewayOrderID),
		zap.String("gateway_payment_id", gatewayPaymentID),
	)
	if w.metrics != nil {
		w.metrics.Outcomes.WithLabelValues(string(StateRejected)).Inc()
	}
	return ErrAuthentication
}

func (w *Workflow) authentic(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) bool {
	return w.verifier != nil && w.verifier.Verify(ctx, gatewayOrderID, gatewayPaymentID, signature)
}

func (w *Workflow) newOrder(in Input, r *reservation) orders.Order {
	now := w.nowFunc().UTC()
	return orders.Order{
		OrderID:         w.idFunc(),
		UserID:          in.UserID,
		Items:           r.items,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   orders.PaymentMethodOnline,
		TotalPrice:      r.total,
		IsPaid:          true,
		PaidAt:          &now,
		Status:          orders.StatusProcessing,
		PaymentResult: &orders.PaymentResult{
			ID:               in.GatewayPaymentID,
			Status:           orders.PaymentStatusCompleted,
			GatewayOrderID:   in.GatewayOrderID,
			GatewayPaymentID: in.GatewayPaymentID,
			Signature:        in.Signature,
		},
		CreatedAt: now,
	}
}

// replay returns the order an earlier confirmation of the same payment
// created. An empty orderID means the claim lost a race at commit time and
// has to be re-read.
func (w *Workflow) replay(ctx context.Context, log *zap.Logger, paymentID, orderID string) (Result, error) {
	if orderID == "" {
		rec, err := w.claims.Get(ctx, paymentID)
		if err != nil {
			log.Error("payment claim lookup failed", zap.Error(err))
			return Result{State: StateAborted}, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		if rec == nil {
			return Result{State: StateAborted}, fmt.Errorf("%w: payment %s claimed but claim unreadable", ErrPersistence, paymentID)
		}
		orderID = rec.OrderID
	}
	o, err := w.orders.Get(ctx, orderID)
	if err != nil {
		log.Error("replayed order lookup failed", zap.String("order_id", orderID), zap.Error(err))
		return Result{State: StateAborted}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if o == nil {
		log.Error("payment claim points at a missing order", zap.String("order_id", orderID))
		return Result{State: StateAborted}, fmt.Errorf("%w: claimed order %s missing", ErrPersistence, orderID)
	}
	log.Info("payment already confirmed; returning existing order", zap.String("order_id", orderID))
	return Result{Order: o, State: StateReplayed, Replayed: true}, nil
}

// commitError maps a failed commit onto the error taxonomy. A reserve that
// failed its condition is reported from the ALL_OLD image: an existing item
// ran out of stock, a missing one was deleted after it was read.
func (w *Workflow) commitError(err error, r *reservation) error {
	var ce *txn.CanceledError
	if errors.As(err, &ce) {
		if f, ok := ce.First(products.OpReserve); ok && f.Code == txn.CodeConditionalCheckFailed {
			p, derr := products.Decode(f.Item)
			if derr != nil {
				return fmt.Errorf("%w: %w", ErrPersistence, derr)
			}
			if p == nil {
				return &ProductNotFoundError{ProductID: f.Op.Key, Line: r.lineOf[f.Op.Key]}
			}
			return &OutOfStockError{
				ProductID: p.ProductID,
				Name:      p.Name,
				Available: p.Quantity,
				Requested: r.requested[f.Op.Key],
			}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: commit timed out: %w", ErrPersistence, err)
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func (w *Workflow) abort(log *zap.Logger, err error) error {
	switch {
	case errors.Is(err, ErrPersistence):
		log.Error("checkout aborted", zap.Error(err))
	default:
		log.Info("checkout aborted", zap.Error(err))
	}
	return err
}

func (w *Workflow) publishPaid(ctx context.Context, log *zap.Logger, o orders.Order) {
	if w.publisher == nil {
		return
	}
	attrs := map[string]string{
		"event_type": orders.EventOrderPaid,
		"order_id":   o.OrderID,
	}
	if err := w.publisher.Publish(ctx, orders.NewPaidEvent(o), attrs); err != nil {
		log.Error("publish order.paid failed", zap.String("order_id", o.OrderID), zap.Error(err))
		if w.metrics != nil {
			w.metrics.PublishFailures.WithLabelValues(orders.EventOrderPaid).Inc()
		}
	}
}

func (w *Workflow) observe(state State, d time.Duration) {
	if w.metrics == nil {
		return
	}
	w.metrics.Outcomes.WithLabelValues(string(state)).Inc()
	w.metrics.Duration.WithLabelValues(string(state)).Observe(d.Seconds())
}
