package txn

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/go-paid-orderflow/internal/dynamotest"
)

func put(id string) *types.Put {
	tbl := "t"
	cond := "attribute_not_exists(id)"
	return &types.Put{
		TableName:           &tbl,
		Item:                map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		ConditionExpression: &cond,
	}
}

func newFake() *dynamotest.Fake {
	f := dynamotest.New()
	f.CreateTable("t", "id")
	return f
}

func TestCommit_AppliesAllStaged(t *testing.T) {
	f := newFake()
	uow := Begin(f)
	defer uow.Release()

	_ = uow.Put(Op{Kind: "row", Key: "a"}, put("a"))
	_ = uow.Put(Op{Kind: "row", Key: "b"}, put("b"))
	if err := uow.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if f.Count("t") != 2 {
		t.Fatalf("expected 2 rows, got %d", f.Count("t"))
	}
	if err := uow.Commit(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("second commit should fail with ErrClosed, got %v", err)
	}
}

func TestCommit_CanceledNamesFailedOp(t *testing.T) {
	f := newFake()
	_ = f.Seed("t", map[string]string{"id": "dup"})

	uow := Begin(f)
	defer uow.Release()
	_ = uow.Put(Op{Kind: "row", Key: "fresh"}, put("fresh"))
	_ = uow.Put(Op{Kind: "claim", Key: "dup"}, put("dup"))

	err := uow.Commit(context.Background())
	var ce *CanceledError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CanceledError, got %v", err)
	}
	if !ce.ConditionFailed("claim") || ce.ConditionFailed("row") {
		t.Fatalf("unexpected failures %+v", ce.Failures)
	}
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		t.Fatalf("CanceledError should unwrap to the SDK exception")
	}
	if f.Count("t") != 1 {
		t.Fatalf("nothing may be written on cancel, got %d rows", f.Count("t"))
	}
}

func TestRelease_DiscardsStaged(t *testing.T) {
	f := newFake()
	uow := Begin(f)
	_ = uow.Put(Op{Kind: "row", Key: "a"}, put("a"))
	uow.Release()
	uow.Release()

	if err := uow.Put(Op{Kind: "row", Key: "b"}, put("b")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after release, got %v", err)
	}
	if err := uow.Commit(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if f.TransactCalls != 0 || f.Count("t") != 0 {
		t.Fatalf("released unit must not reach the store")
	}
}

func TestCommit_EmptyAndTooMany(t *testing.T) {
	if err := Begin(newFake()).Commit(context.Background()); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}

	uow := Begin(newFake())
	for i := 0; i < MaxItems; i++ {
		if err := uow.Put(Op{Kind: "row"}, put("x")); err != nil {
			t.Fatalf("stage %d: %v", i, err)
		}
	}
	if err := uow.Put(Op{Kind: "row"}, put("x")); !errors.Is(err, ErrTooManyItems) {
		t.Fatalf("expected ErrTooManyItems, got %v", err)
	}
}

func TestCommit_WrapsStoreError(t *testing.T) {
	f := newFake()
	boom := errors.New("connection reset")
	f.FailTransactions(boom)

	uow := Begin(f)
	_ = uow.Put(Op{Kind: "row", Key: "a"}, put("a"))
	if err := uow.Commit(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
