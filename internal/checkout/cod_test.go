package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/imrishuroy/go-paid-orderflow/internal/money"
	"github.com/imrishuroy/go-paid-orderflow/internal/orders"
)

func codInput(total money.Amount, lines ...Line) CODInput {
	return CODInput{
		UserID:          "user-1",
		Lines:           lines,
		ShippingAddress: orders.ShippingAddress{Address: "1 MG Road", City: "Bengaluru", PostalCode: "560001", Country: "IN"},
		DeclaredTotal:   total,
	}
}

func TestPlaceCOD_CreatesPendingUnpaidOrder(t *testing.T) {
	h := newHarness(t, product("A", "Product A", 5, 10000))

	res, err := h.wf.PlaceCOD(context.Background(), codInput(20000, Line{"A", 2}))
	if err != nil {
		t.Fatalf("place cod: %v", err)
	}
	if res.State != StateCommitted {
		t.Fatalf("state = %s", res.State)
	}
	if got := h.quantity(t, "A"); got != 3 {
		t.Fatalf("quantity = %d, want 3", got)
	}

	var stored orders.Order
	if ok, err := h.db.Load(ordersTable, res.Order.OrderID, &stored); err != nil || !ok {
		t.Fatalf("order not persisted: ok=%v err=%v", ok, err)
	}
	if stored.IsPaid || stored.PaidAt != nil || stored.PaymentResult != nil {
		t.Fatalf("cod order must be unpaid: %+v", stored)
	}
	if stored.Status != orders.StatusPending || stored.PaymentMethod != orders.PaymentMethodCOD {
		t.Fatalf("unexpected status/method %+v", stored)
	}
	if h.db.Count(claimsTable) != 0 {
		t.Fatalf("cod order must not write a payment claim")
	}
	if len(h.publisher.events) != 0 {
		t.Fatalf("cod order must not publish order.paid")
	}
}

func TestPlaceCOD_OutOfStockWritesNothing(t *testing.T) {
	h := newHarness(t,
		product("A", "Product A", 5, 10000),
		product("B", "Product B", 1, 5000),
	)

	_, err := h.wf.PlaceCOD(context.Background(), codInput(30000, Line{"A", 2}, Line{"B", 2}))
	var oos *OutOfStockError
	if !errors.As(err, &oos) || oos.Name != "Product B" {
		t.Fatalf("expected OutOfStockError for Product B, got %v", err)
	}
	if h.quantity(t, "A") != 5 || h.quantity(t, "B") != 1 || h.db.Count(ordersTable) != 0 {
		t.Fatalf("nothing may change")
	}
	if h.outcomes(StateAborted) != 1 {
		t.Fatalf("aborted outcome not recorded")
	}
}

func TestPlaceCOD_TotalMismatchAndMissingUser(t *testing.T) {
	h := newHarness(t, product("A", "Product A", 5, 10000))

	if _, err := h.wf.PlaceCOD(context.Background(), codInput(1, Line{"A", 1})); !errors.Is(err, ErrTotalMismatch) {
		t.Fatalf("expected ErrTotalMismatch, got %v", err)
	}

	in := codInput(10000, Line{"A", 1})
	in.UserID = ""
	res, err := h.wf.PlaceCOD(context.Background(), in)
	if !errors.Is(err, ErrInvalidInput) || res.State != StateRejected {
		t.Fatalf("expected rejected invalid input, got %s %v", res.State, err)
	}
	if h.quantity(t, "A") != 5 {
		t.Fatalf("stock changed")
	}
}
