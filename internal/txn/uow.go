// Package txn stages DynamoDB writes into a single all-or-nothing transaction.
package txn

import (
	"context"
	"errors"
	"fmt"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/imrishuroy/go-paid-orderflow/internal/aws"
)

// MaxItems is the DynamoDB limit on actions in one TransactWriteItems call.
const MaxItems = 100

var (
	ErrClosed       = errors.New("unit of work already committed or released")
	ErrEmpty        = errors.New("unit of work has nothing to commit")
	ErrTooManyItems = fmt.Errorf("unit of work exceeds %d items", MaxItems)
)

// Op identifies a staged action so a cancellation can be traced back to it.
type Op struct {
	Kind string
	Key  string
}

// UnitOfWork collects writes and applies them with one TransactWriteItems.
// Nothing reaches the table before Commit. Callers defer Release right after
// Begin so an abandoned unit never leaks staged writes into a later commit.
type UnitOfWork struct {
	client aws.DynamoDBAPI
	items  []types.TransactWriteItem
	ops    []Op
	closed bool
}

func Begin(client aws.DynamoDBAPI) *UnitOfWork {
	return &UnitOfWork{client: client}
}

// Put stages a conditional or unconditional put.
func (u *UnitOfWork) Put(op Op, put *types.Put) error {
	return u.stage(op, types.TransactWriteItem{Put: put})
}

// Update stages an update expression.
func (u *UnitOfWork) Update(op Op, upd *types.Update) error {
	return u.stage(op, types.TransactWriteItem{Update: upd})
}

func (u *UnitOfWork) stage(op Op, item types.TransactWriteItem) error {
	if u.closed {
		return ErrClosed
	}
	if len(u.items) >= MaxItems {
		return ErrTooManyItems
	}
	u.items = append(u.items, item)
	u.ops = append(u.ops, op)
	return nil
}

// Len returns the number of staged actions.
func (u *UnitOfWork) Len() int { return len(u.items) }

// Commit applies every staged action atomically. A condition failure is
// returned as *CanceledError naming the offending actions.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.closed {
		return ErrClosed
	}
	if len(u.items) == 0 {
		return ErrEmpty
	}
	u.closed = true

	_, err := u.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: u.items,
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return newCanceledError(u.ops, tce)
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("transact write (%s): %w", apiErr.ErrorCode(), err)
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// Release discards anything still staged. Safe to call after Commit and more
// than once.
func (u *UnitOfWork) Release() {
	u.closed = true
	u.items = nil
	u.ops = nil
}
