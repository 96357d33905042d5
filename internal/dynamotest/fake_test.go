package dynamotest

import (
	"context"
	"errors"
	"testing"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type row struct {
	ID  string `dynamodbav:"id"`
	Qty int    `dynamodbav:"qty"`
}

func s(v string) *string { return &v }

func decrement(id, qty string) types.TransactWriteItem {
	return types.TransactWriteItem{Update: &types.Update{
		TableName:                           s("t"),
		Key:                                 map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		UpdateExpression:                    s("SET qty = qty - :q"),
		ConditionExpression:                 s("attribute_exists(id) AND qty >= :q"),
		ExpressionAttributeValues:           map[string]types.AttributeValue{":q": &types.AttributeValueMemberN{Value: qty}},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}}
}

func TestTransactWriteItems_AllOrNothing(t *testing.T) {
	f := New()
	f.CreateTable("t", "id")
	_ = f.Seed("t", row{ID: "a", Qty: 5})
	_ = f.Seed("t", row{ID: "b", Qty: 1})

	_, err := f.TransactWriteItems(context.Background(), &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{decrement("a", "2"), decrement("b", "2")},
	})
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if *tce.CancellationReasons[0].Code != "None" || *tce.CancellationReasons[1].Code != "ConditionalCheckFailed" {
		t.Fatalf("unexpected reasons %+v", tce.CancellationReasons)
	}
	if tce.CancellationReasons[1].Item == nil {
		t.Fatalf("expected ALL_OLD image on failed item")
	}

	var a row
	_, _ = f.Load("t", "a", &a)
	if a.Qty != 5 {
		t.Fatalf("a must be untouched, got %d", a.Qty)
	}

	if _, err := f.TransactWriteItems(context.Background(), &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{decrement("a", "2"), decrement("b", "1")},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _ = f.Load("t", "a", &a)
	if a.Qty != 3 {
		t.Fatalf("expected 3, got %d", a.Qty)
	}
}

func TestTransactWriteItems_RejectsTwoOpsOnOneItem(t *testing.T) {
	f := New()
	f.CreateTable("t", "id")
	_ = f.Seed("t", row{ID: "a", Qty: 5})

	_, err := f.TransactWriteItems(context.Background(), &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{decrement("a", "1"), decrement("a", "1")},
	})
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestUpdateItem_Condition(t *testing.T) {
	f := New()
	f.CreateTable("t", "id")
	_ = f.Seed("t", row{ID: "a", Qty: 1})

	in := &dyn.UpdateItemInput{
		TableName:                 s("t"),
		Key:                       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "a"}},
		UpdateExpression:          s("SET #q = :v"),
		ConditionExpression:       s("#q = :exp"),
		ExpressionAttributeNames:  map[string]string{"#q": "qty"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberN{Value: "9"}, ":exp": &types.AttributeValueMemberN{Value: "2"}},
	}
	_, err := f.UpdateItem(context.Background(), in)
	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		t.Fatalf("expected conditional failure, got %v", err)
	}

	in.ExpressionAttributeValues[":exp"] = &types.AttributeValueMemberN{Value: "1"}
	if _, err := f.UpdateItem(context.Background(), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var a row
	_, _ = f.Load("t", "a", &a)
	if a.Qty != 9 {
		t.Fatalf("expected 9, got %d", a.Qty)
	}
}

func TestScan_Pages(t *testing.T) {
	f := New()
	f.CreateTable("t", "id")
	for _, id := range []string{"c", "a", "b"} {
		_ = f.Seed("t", row{ID: id, Qty: 1})
	}

	limit := int32(2)
	var seen []string
	p := dyn.NewScanPaginator(f, &dyn.ScanInput{TableName: s("t"), Limit: &limit})
	for pages := 0; p.HasMorePages(); pages++ {
		if pages > 3 {
			t.Fatalf("paginator did not terminate")
		}
		out, err := p.NextPage(context.Background())
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		for _, it := range out.Items {
			seen = append(seen, it["id"].(*types.AttributeValueMemberS).Value)
		}
	}
	if len(seen) != 3 || seen[0] != "a" || seen[1] != "b" || seen[2] != "c" {
		t.Fatalf("scanned %v, want [a b c]", seen)
	}
}
