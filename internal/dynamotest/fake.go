// Package dynamotest provides an in-memory DynamoDB stand-in for unit tests.
//
// It understands the small expression dialect the stores in this module
// issue: SET assignments with optional "attr - :v" / "attr + :v"
// arithmetic, and conditions made of attribute_exists / attribute_not_exists
// and binary comparisons joined by AND. Transactions are evaluated and applied
// under one lock, so they are atomic with respect to every other call.
package dynamotest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type table struct {
	pk    string
	items map[string]map[string]types.AttributeValue
}

// Fake implements the DynamoDB client methods used by this module.
type Fake struct {
	mu     sync.Mutex
	tables map[string]*table

	transactErr error
	// BeforeTransact, when set, runs before each transaction is evaluated
	// and outside the lock.
	BeforeTransact func(in *dyn.TransactWriteItemsInput)

	TransactCalls int
	GetCalls      int
}

func New() *Fake {
	return &Fake{tables: map[string]*table{}}
}

// CreateTable registers a table keyed by the string attribute pk.
func (f *Fake) CreateTable(name, pk string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name] = &table{pk: pk, items: map[string]map[string]types.AttributeValue{}}
}

// FailTransactions makes every following TransactWriteItems return err.
// Pass nil to restore normal behaviour.
func (f *Fake) FailTransactions(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactErr = err
}

// Seed marshals v with attributevalue and stores it.
func (f *Fake) Seed(tableName string, v any) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(tableName)
	if err != nil {
		return err
	}
	k, err := keyOf(t, item)
	if err != nil {
		return err
	}
	t.items[k] = copyItem(item)
	return nil
}

// Load unmarshals the stored item into out and reports whether it exists.
func (f *Fake) Load(tableName, key string, out any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(tableName)
	if err != nil {
		return false, err
	}
	item, ok := t.items[key]
	if !ok {
		return false, nil
	}
	return true, attributevalue.UnmarshalMap(item, out)
}

// Count returns the number of items in a table.
func (f *Fake) Count(tableName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tables[tableName]; ok {
		return len(t.items)
	}
	return 0
}

func (f *Fake) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetCalls++
	t, err := f.table(*in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := keyOf(t, in.Key)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *Fake) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(*in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := keyOf(t, in.Item)
	if err != nil {
		return nil, err
	}
	ok, err := evalCondition(in.ConditionExpression, t.items[k], in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
	}
	t.items[k] = copyItem(in.Item)
	return &dyn.PutItemOutput{}, nil
}

func (f *Fake) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(*in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := keyOf(t, in.Key)
	if err != nil {
		return nil, err
	}
	current := t.items[k]
	ok, err := evalCondition(in.ConditionExpression, current, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
	}
	next, err := applyUpdate(in.Key, current, in.UpdateExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	t.items[k] = next
	return &dyn.UpdateItemOutput{Attributes: copyItem(next)}, nil
}

func (f *Fake) Query(ctx context.Context, in *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(*in.TableName)
	if err != nil {
		return nil, err
	}
	var out []map[string]types.AttributeValue
	for _, item := range t.items {
		ok, err := evalCondition(in.KeyConditionExpression, item, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, copyItem(item))
		}
	}
	forward := in.ScanIndexForward == nil || *in.ScanIndexForward
	sort.SliceStable(out, func(i, j int) bool {
		a, b := sortKey(out[i]), sortKey(out[j])
		if forward {
			return a < b
		}
		return a > b
	})
	if in.Limit != nil && int(*in.Limit) < len(out) {
		out = out[:*in.Limit]
	}
	return &dyn.QueryOutput{Items: out, Count: int32(len(out))}, nil
}

// Scan returns every item of the table ordered by key, one page of at most
// Limit items per call, following ExclusiveStartKey.
func (f *Fake) Scan(ctx context.Context, in *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(*in.TableName)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(t.items))
	for k := range t.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if in.ExclusiveStartKey != nil {
		start, err := keyOf(t, in.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		keys = keys[sort.SearchStrings(keys, start):]
		if len(keys) > 0 && keys[0] == start {
			keys = keys[1:]
		}
	}

	out := &dyn.ScanOutput{}
	for _, k := range keys {
		if in.Limit != nil && len(out.Items) == int(*in.Limit) {
			last := out.Items[len(out.Items)-1]
			out.LastEvaluatedKey = map[string]types.AttributeValue{t.pk: last[t.pk]}
			break
		}
		out.Items = append(out.Items, copyItem(t.items[k]))
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func (f *Fake) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	if hook := f.BeforeTransact; hook != nil {
		hook(in)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.TransactCalls++
	if f.transactErr != nil {
		return nil, f.transactErr
	}
	if len(in.TransactItems) > 100 {
		return nil, errors.New("ValidationException: transaction exceeds 100 items")
	}

	type target struct {
		t *table
		k string
	}
	targets := make([]target, len(in.TransactItems))
	seen := map[string]bool{}
	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false

	for i, it := range in.TransactItems {
		var (
			tableName *string
			key       map[string]types.AttributeValue
			cond      *string
			names     map[string]string
			values    map[string]types.AttributeValue
			retOld    types.ReturnValuesOnConditionCheckFailure
		)
		switch {
		case it.Put != nil:
			tableName, key, cond = it.Put.TableName, it.Put.Item, it.Put.ConditionExpression
			names, values, retOld = it.Put.ExpressionAttributeNames, it.Put.ExpressionAttributeValues, it.Put.ReturnValuesOnConditionCheckFailure
		case it.Update != nil:
			tableName, key, cond = it.Update.TableName, it.Update.Key, it.Update.ConditionExpression
			names, values, retOld = it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues, it.Update.ReturnValuesOnConditionCheckFailure
		case it.ConditionCheck != nil:
			tableName, key, cond = it.ConditionCheck.TableName, it.ConditionCheck.Key, it.ConditionCheck.ConditionExpression
			names, values, retOld = it.ConditionCheck.ExpressionAttributeNames, it.ConditionCheck.ExpressionAttributeValues, it.ConditionCheck.ReturnValuesOnConditionCheckFailure
		default:
			return nil, fmt.Errorf("dynamotest: unsupported transact item %d", i)
		}

		t, err := f.table(*tableName)
		if err != nil {
			return nil, err
		}
		k, err := keyOf(t, key)
		if err != nil {
			return nil, err
		}
		id := *tableName + "/" + k
		if seen[id] {
			return nil, errors.New("ValidationException: transaction request cannot include multiple operations on one item")
		}
		seen[id] = true
		targets[i] = target{t: t, k: k}

		ok, err := evalCondition(cond, t.items[k], names, values)
		if err != nil {
			return nil, err
		}
		if ok {
			reasons[i] = types.CancellationReason{Code: strPtr("None")}
			continue
		}
		failed = true
		reasons[i] = types.CancellationReason{
			Code:    strPtr("ConditionalCheckFailed"),
			Message: strPtr("The conditional request failed"),
		}
		if retOld == types.ReturnValuesOnConditionCheckFailureAllOld && t.items[k] != nil {
			reasons[i].Item = copyItem(t.items[k])
		}
	}

	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             strPtr("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}

	// every condition held; compute all new images before writing any
	next := make([]map[string]types.AttributeValue, len(in.TransactItems))
	for i, it := range in.TransactItems {
		tg := targets[i]
		switch {
		case it.Put != nil:
			next[i] = copyItem(it.Put.Item)
		case it.Update != nil:
			img, err := applyUpdate(it.Update.Key, tg.t.items[tg.k], it.Update.UpdateExpression, it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues)
			if err != nil {
				return nil, err
			}
			next[i] = img
		}
	}
	for i, img := range next {
		if img != nil {
			targets[i].t.items[targets[i].k] = img
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (f *Fake) table(name string) (*table, error) {
	t, ok := f.tables[name]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: strPtr("Requested resource not found: " + name)}
	}
	return t, nil
}

func keyOf(t *table, item map[string]types.AttributeValue) (string, error) {
	switch v := item[t.pk].(type) {
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberN:
		return v.Value, nil
	default:
		return "", fmt.Errorf("dynamotest: missing key attribute %q", t.pk)
	}
}

func sortKey(item map[string]types.AttributeValue) string {
	if v, ok := item["created_at"].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func strPtr(s string) *string { return &s }

func resolveName(tok string, names map[string]string) (string, error) {
	if strings.HasPrefix(tok, "#") {
		n, ok := names[tok]
		if !ok {
			return "", fmt.Errorf("dynamotest: undefined attribute name %s", tok)
		}
		return n, nil
	}
	return tok, nil
}

func operand(tok string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (types.AttributeValue, error) {
	if strings.HasPrefix(tok, ":") {
		v, ok := values[tok]
		if !ok {
			return nil, fmt.Errorf("dynamotest: undefined attribute value %s", tok)
		}
		return v, nil
	}
	name, err := resolveName(tok, names)
	if err != nil {
		return nil, err
	}
	return item[name], nil
}

func evalCondition(expr *string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return true, nil
	}
	for _, clause := range strings.Split(*expr, " AND ") {
		clause = strings.TrimSpace(clause)
		for strings.HasPrefix(clause, "(") && strings.HasSuffix(clause, ")") && !strings.Contains(clause[1:], "(") {
			clause = strings.TrimSpace(clause[1 : len(clause)-1])
		}
		ok, err := evalClause(clause, item, names, values)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func evalClause(clause string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	for _, fn := range []string{"attribute_not_exists", "attribute_exists"} {
		if strings.HasPrefix(clause, fn+"(") && strings.HasSuffix(clause, ")") {
			name, err := resolveName(strings.TrimSpace(clause[len(fn)+1:len(clause)-1]), names)
			if err != nil {
				return false, err
			}
			_, exists := item[name]
			if fn == "attribute_exists" {
				return exists, nil
			}
			return !exists, nil
		}
	}

	parts := strings.Fields(clause)
	if len(parts) != 3 {
		return false, fmt.Errorf("dynamotest: unsupported condition %q", clause)
	}
	lhs, err := operand(parts[0], item, names, values)
	if err != nil {
		return false, err
	}
	rhs, err := operand(parts[2], item, names, values)
	if err != nil {
		return false, err
	}
	if lhs == nil || rhs == nil {
		return false, nil
	}
	c, comparable := compare(lhs, rhs)
	if !comparable {
		return parts[1] == "<>", nil
	}
	switch parts[1] {
	case "=":
		return c == 0, nil
	case "<>":
		return c != 0, nil
	case ">=":
		return c >= 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case "<":
		return c < 0, nil
	default:
		return false, fmt.Errorf("dynamotest: unsupported operator %q", parts[1])
	}
}

func compare(a, b types.AttributeValue) (int, bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.Value, bv.Value), true
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		x, err1 := strconv.ParseFloat(av.Value, 64)
		y, err2 := strconv.ParseFloat(bv.Value, 64)
		if err1 != nil || err2 != nil {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		if !ok || av.Value != bv.Value {
			return 1, ok
		}
		return 0, true
	}
	return 0, false
}

func applyUpdate(key, current map[string]types.AttributeValue, expr *string, names map[string]string, values map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	next := copyItem(current)
	if next == nil {
		next = copyItem(key)
	}
	if expr == nil {
		return next, nil
	}
	body := strings.TrimSpace(*expr)
	if !strings.HasPrefix(body, "SET ") {
		return nil, fmt.Errorf("dynamotest: unsupported update %q", body)
	}
	for _, assign := range strings.Split(strings.TrimPrefix(body, "SET "), ",") {
		lhsRhs := strings.SplitN(assign, "=", 2)
		if len(lhsRhs) != 2 {
			return nil, fmt.Errorf("dynamotest: bad assignment %q", assign)
		}
		name, err := resolveName(strings.TrimSpace(lhsRhs[0]), names)
		if err != nil {
			return nil, err
		}
		rhs := strings.Fields(lhsRhs[1])
		switch len(rhs) {
		case 1:
			v, err := operand(rhs[0], current, names, values)
			if err != nil {
				return nil, err
			}
			next[name] = v
		case 3:
			base, err := operand(rhs[0], current, names, values)
			if err != nil {
				return nil, err
			}
			delta, err := operand(rhs[2], current, names, values)
			if err != nil {
				return nil, err
			}
			v, err := arith(base, rhs[1], delta)
			if err != nil {
				return nil, err
			}
			next[name] = v
		default:
			return nil, fmt.Errorf("dynamotest: unsupported assignment %q", assign)
		}
	}
	return next, nil
}

func arith(a types.AttributeValue, op string, b types.AttributeValue) (types.AttributeValue, error) {
	an, ok1 := a.(*types.AttributeValueMemberN)
	bn, ok2 := b.(*types.AttributeValueMemberN)
	if !ok1 || !ok2 {
		return nil, errors.New("ValidationException: arithmetic on non-number")
	}
	x, err := strconv.ParseInt(an.Value, 10, 64)
	if err != nil {
		return nil, err
	}
	y, err := strconv.ParseInt(bn.Value, 10, 64)
	if err != nil {
		return nil, err
	}
	switch op {
	case "-":
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(x-y, 10)}, nil
	case "+":
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(x+y, 10)}, nil
	}
	return nil, fmt.Errorf("dynamotest: unsupported operator %q", op)
}
