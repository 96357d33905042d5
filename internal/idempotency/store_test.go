package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/go-paid-orderflow/internal/dynamotest"
	"github.com/imrishuroy/go-paid-orderflow/internal/txn"
)

const tbl = "idempotency-table"

func newFake() *dynamotest.Fake {
	f := dynamotest.New()
	f.CreateTable(tbl, "idempotency_key")
	return f
}

func TestStageClaim_Commit_Get(t *testing.T) {
	f := newFake()
	s := NewStore(f, tbl, 48*time.Hour)
	ctx := context.Background()

	uow := txn.Begin(f)
	defer uow.Release()
	if err := s.StageClaim(uow, "pay_1", "order_gw_1", "order-123"); err != nil {
		t.Fatalf("StageClaim error: %v", err)
	}
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit error: %v", err)
	}

	rec, err := s.Get(ctx, "pay_1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected record, got nil")
	}
	if rec.Status != StatusDone || rec.OrderID != "order-123" || rec.GatewayOrderID != "order_gw_1" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if want := rec.CreatedAt.Add(48 * time.Hour).Unix(); rec.ExpiresAt != want {
		t.Fatalf("expires_at = %d, want %d", rec.ExpiresAt, want)
	}
}

func TestStageClaim_SecondClaimCancels(t *testing.T) {
	f := newFake()
	s := NewStore(f, tbl, time.Hour)
	ctx := context.Background()

	first := txn.Begin(f)
	defer first.Release()
	_ = s.StageClaim(first, "pay_dup", "", "order-a")
	if err := first.Commit(ctx); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	second := txn.Begin(f)
	defer second.Release()
	_ = s.StageClaim(second, "pay_dup", "", "order-b")
	err := second.Commit(ctx)

	var ce *txn.CanceledError
	if !errors.As(err, &ce) || !ce.ConditionFailed(OpClaim) {
		t.Fatalf("expected claim condition failure, got %v", err)
	}
	rec, _ := s.Get(ctx, "pay_dup")
	if rec == nil || rec.OrderID != "order-a" {
		t.Fatalf("first claim must survive, got %+v", rec)
	}
}

func TestStageClaim_RequiresIDs(t *testing.T) {
	s := NewStore(newFake(), tbl, time.Hour)
	if err := s.StageClaim(txn.Begin(nil), "", "", "order-1"); err == nil {
		t.Fatalf("expected error for missing payment id")
	}
	if err := s.StageClaim(txn.Begin(nil), "pay", "", ""); err == nil {
		t.Fatalf("expected error for missing order id")
	}
}

func TestGet_MissingAndPastTTL(t *testing.T) {
	f := newFake()
	s := NewStore(f, tbl, time.Hour)
	ctx := context.Background()

	rec, err := s.Get(ctx, "nope")
	if err != nil || rec != nil {
		t.Fatalf("expected (nil, nil), got (%+v, %v)", rec, err)
	}

	old := time.Now().Add(-72 * time.Hour)
	_ = f.Seed(tbl, IdempotencyRecord{
		IdempotencyKey: "pay_old",
		Status:         StatusDone,
		OrderID:        "order-old",
		CreatedAt:      old,
		UpdatedAt:      old,
		ExpiresAt:      old.Add(time.Hour).Unix(),
	})
	rec, err = s.Get(ctx, "pay_old")
	if err != nil || rec == nil || rec.OrderID != "order-old" {
		t.Fatalf("unreaped claim must still be returned, got (%+v, %v)", rec, err)
	}
}

func TestStageClaim_ItemShape(t *testing.T) {
	f := newFake()
	s := NewStore(f, tbl, time.Hour)
	var captured []types.TransactWriteItem

	uow := txn.Begin(f)
	defer uow.Release()
	_ = s.StageClaim(uow, "pay_shape", "", "order-x")
	f.BeforeTransact = func(in *dyn.TransactWriteItemsInput) { captured = in.TransactItems }
	_ = uow.Commit(context.Background())

	if len(captured) != 1 || captured[0].Put == nil {
		t.Fatalf("expected one put, got %+v", captured)
	}
	if c := captured[0].Put.ConditionExpression; c == nil || *c != "attribute_not_exists(idempotency_key)" {
		t.Fatalf("unexpected condition %v", c)
	}
}
