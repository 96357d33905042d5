package checkout

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-paid-orderflow/internal/logging"
	"github.com/imrishuroy/go-paid-orderflow/internal/money"
	"github.com/imrishuroy/go-paid-orderflow/internal/orders"
	"github.com/imrishuroy/go-paid-orderflow/internal/txn"
)

// CODInput is a cash-on-delivery order. There is no gateway payment, so it
// carries no signature and no payment claim is written.
type CODInput struct {
	UserID          string
	Lines           []Line
	ShippingAddress orders.ShippingAddress
	DeclaredTotal   money.Amount
}

// PlaceCOD reserves stock and creates an unpaid Pending order in one
// transaction. Stock rules and error mapping are the same as Confirm.
func (w *Workflow) PlaceCOD(ctx context.Context, in CODInput) (res Result, err error) {
	start := w.nowFunc()
	ctx, span := w.tracer.Start(ctx, "checkout.PlaceCOD", trace.WithAttributes(
		attribute.Int("cart.lines", len(in.Lines)),
	))
	log := logging.FromContext(ctx).With(zap.String("payment_method", orders.PaymentMethodCOD))
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

	txCtx, cancel := context.WithTimeout(ctx, w.txTimeout)
	defer cancel()
	uow := txn.Begin(w.db)
	defer uow.Release()

	reserved, err := reserve(txCtx, w.products, uow, in.Lines)
	if err != nil {
		return Result{State: StateAborted}, w.abort(log, err)
	}
	if reserved.total != in.DeclaredTotal {
		err = fmt.Errorf("%w: declared %s, catalog %s", ErrTotalMismatch, in.DeclaredTotal, reserved.total)
		return Result{State: StateAborted}, w.abort(log, err)
	}

	now := w.nowFunc().UTC()
	order := orders.Order{
		OrderID:         w.idFunc(),
		UserID:          in.UserID,
		Items:           reserved.items,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   orders.PaymentMethodCOD,
		TotalPrice:      reserved.total,
		Status:          orders.StatusPending,
		CreatedAt:       now,
	}
	if err := w.orders.StageCreate(uow, order); err != nil {
		return Result{State: StateAborted}, w.abort(log, fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	span.SetAttributes(attribute.Int("txn.actions", uow.Len()))
	if err := uow.Commit(txCtx); err != nil {
		return Result{State: StateAborted}, w.abort(log, w.commitError(err, reserved))
	}

	log.Info("cod order committed",
		zap.String("order_id", order.OrderID),
		zap.String("user_id", order.UserID),
		zap.Stringer("total", order.TotalPrice),
	)
	return Result{Order: &order, State: StateCommitted}, nil
}
