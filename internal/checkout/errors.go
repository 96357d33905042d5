package checkout

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication is returned when the gateway signature does not match.
	ErrAuthentication = errors.New("invalid payment signature")
	// ErrNotFound classifies *ProductNotFoundError.
	ErrNotFound = errors.New("product not found")
	// ErrOutOfStock classifies *OutOfStockError.
	ErrOutOfStock = errors.New("insufficient stock")
	// ErrTotalMismatch is returned when the declared total differs from the
	// catalog total of the cart.
	ErrTotalMismatch = errors.New("order total does not match catalog prices")
	// ErrInvalidInput is returned for a request the workflow cannot process.
	ErrInvalidInput = errors.New("invalid order input")
	// ErrPersistence wraps storage failures, timeouts included.
	ErrPersistence = errors.New("order could not be persisted")
)

// ProductNotFoundError names the product a cart line referenced.
type ProductNotFoundError struct {
	ProductID string
	Line      int // zero-based cart position, -1 when unknown
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("Product not found: %s", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool { return target == ErrNotFound }

// OutOfStockError carries what the caller needs to adjust the cart.
type OutOfStockError struct {
	ProductID string
	Name      string
	Available int
	Requested int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s. Available: %d, Requested: %d", e.Name, e.Available, e.Requested)
}

func (e *OutOfStockError) Is(target error) bool { return target == ErrOutOfStock }
