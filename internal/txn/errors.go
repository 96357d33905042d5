package txn

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	codeNone                   = "None"
	CodeConditionalCheckFailed = "ConditionalCheckFailed"
)

// Failure is one staged action the store refused.
type Failure struct {
	Index int
	Op    Op
	Code  string
	// Item holds the pre-transaction image when the action asked for
	// ReturnValuesOnConditionCheckFailure=ALL_OLD and the item existed.
	Item map[string]types.AttributeValue
}

// CanceledError reports a transaction the store cancelled. Failures are in
// staging order.
type CanceledError struct {
	Failures []Failure
	Err      error
}

func newCanceledError(ops []Op, tce *types.TransactionCanceledException) *CanceledError {
	e := &CanceledError{Err: tce}
	for i, r := range tce.CancellationReasons {
		code := ""
		if r.Code != nil {
			code = *r.Code
		}
		if code == "" || code == codeNone || i >= len(ops) {
			continue
		}
		e.Failures = append(e.Failures, Failure{Index: i, Op: ops[i], Code: code, Item: r.Item})
	}
	return e
}

func (e *CanceledError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("transaction canceled: %v", e.Err)
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s %s: %s", f.Op.Kind, f.Op.Key, f.Code))
	}
	return "transaction canceled: " + strings.Join(parts, ", ")
}

func (e *CanceledError) Unwrap() error { return e.Err }

// First returns the earliest failure of the given kind.
func (e *CanceledError) First(kind string) (Failure, bool) {
	for _, f := range e.Failures {
		if f.Op.Kind == kind {
			return f, true
		}
	}
	return Failure{}, false
}

// ConditionFailed reports whether the action at kind failed its condition.
func (e *CanceledError) ConditionFailed(kind string) bool {
	f, ok := e.First(kind)
	return ok && f.Code == CodeConditionalCheckFailed
}
