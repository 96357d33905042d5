package products

import (
	"context"
	"errors"
	"testing"

	"github.com/imrishuroy/go-paid-orderflow/internal/dynamotest"
	"github.com/imrishuroy/go-paid-orderflow/internal/txn"
)

const tbl = "products"

func newFake(t *testing.T, seed ...Product) *dynamotest.Fake {
	t.Helper()
	f := dynamotest.New()
	f.CreateTable(tbl, "product_id")
	for _, p := range seed {
		if err := f.Seed(tbl, p); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return f
}

func TestGet(t *testing.T) {
	f := newFake(t, Product{ProductID: "p1", Name: "GPU", Price: 4999900, Quantity: 3, IsActive: true})
	s := NewStore(f, tbl)

	p, err := s.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p == nil || p.Name != "GPU" || p.Quantity != 3 || p.Price != 4999900 {
		t.Fatalf("unexpected product %+v", p)
	}

	missing, err := s.Get(context.Background(), "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for missing product, got %+v, %v", missing, err)
	}
}

func TestStageReserve_CommitDecrements(t *testing.T) {
	f := newFake(t, Product{ProductID: "p1", Name: "GPU", Quantity: 5, IsActive: true})
	s := NewStore(f, tbl)

	uow := txn.Begin(f)
	defer uow.Release()
	if err := s.StageReserve(uow, "p1", 2); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := uow.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	p, _ := s.Get(context.Background(), "p1")
	if p.Quantity != 3 {
		t.Fatalf("expected 3 left, got %d", p.Quantity)
	}
	if p.UpdatedAt.IsZero() {
		t.Fatalf("expected updated_at to be set")
	}
}

func TestStageReserve_InsufficientStockReturnsOldImage(t *testing.T) {
	f := newFake(t, Product{ProductID: "p1", Name: "GPU", Quantity: 1, IsActive: true})
	s := NewStore(f, tbl)

	uow := txn.Begin(f)
	defer uow.Release()
	_ = s.StageReserve(uow, "p1", 2)
	_ = s.StageReserve(uow, "ghost", 1)

	err := uow.Commit(context.Background())
	var ce *txn.CanceledError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CanceledError, got %v", err)
	}
	if len(ce.Failures) != 2 {
		t.Fatalf("expected two failures, got %+v", ce.Failures)
	}

	old, err := Decode(ce.Failures[0].Item)
	if err != nil || old == nil || old.Quantity != 1 || old.Name != "GPU" {
		t.Fatalf("expected old image of p1, got %+v err %v", old, err)
	}
	ghost, err := Decode(ce.Failures[1].Item)
	if err != nil || ghost != nil {
		t.Fatalf("missing product should have no image, got %+v", ghost)
	}

	p, _ := s.Get(context.Background(), "p1")
	if p.Quantity != 1 {
		t.Fatalf("quantity must be unchanged, got %d", p.Quantity)
	}
}

func TestStageReserve_RejectsNonPositive(t *testing.T) {
	s := NewStore(newFake(t), tbl)
	uow := txn.Begin(nil)
	if err := s.StageReserve(uow, "p1", 0); err == nil {
		t.Fatalf("expected error for zero quantity")
	}
	if uow.Len() != 0 {
		t.Fatalf("nothing should be staged")
	}
}

func TestLowStock(t *testing.T) {
	if !(Product{Quantity: 5}).LowStock() {
		t.Fatalf("default threshold is 5")
	}
	if (Product{Quantity: 6}).LowStock() {
		t.Fatalf("6 is above default threshold")
	}
	if !(Product{Quantity: 9, MinStockLevel: 10}).LowStock() {
		t.Fatalf("custom threshold ignored")
	}
}
