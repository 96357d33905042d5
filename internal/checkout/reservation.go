package checkout

import (
	"context"
	"fmt"

	"github.com/imrishuroy/go-paid-orderflow/internal/money"
	"github.com/imrishuroy/go-paid-orderflow/internal/orders"
	"github.com/imrishuroy/go-paid-orderflow/internal/products"
	"github.com/imrishuroy/go-paid-orderflow/internal/txn"
)

// MaxDistinctProducts leaves room in one transaction for the order put and
// the payment claim.
const MaxDistinctProducts = txn.MaxItems - 2

// Line is one cart line as submitted.
type Line struct {
	ProductID string
	Quantity  int
}

// reservation is the outcome of staging a cart's stock decrements.
type reservation struct {
	items     []orders.Item // one per line, catalog snapshots
	total     money.Amount
	requested map[string]int // merged quantity per product
	lineOf    map[string]int // first cart line naming each product
}

// reserve walks the cart in list order and stages one conditional decrement
// per distinct product. Lines are checked cumulatively, so two lines of the
// same product cannot together exceed what the first read saw.
//
// The reads only produce early, ordered errors; the staged condition is what
// holds the stock invariant when the unit commits.
func reserve(ctx context.Context, store *products.Store, uow *txn.UnitOfWork, lines []Line) (*reservation, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrInvalidInput)
	}

	res := &reservation{
		items:     make([]orders.Item, 0, len(lines)),
		requested: map[string]int{},
		lineOf:    map[string]int{},
	}
	remaining := map[string]int{}
	catalog := map[string]*products.Product{}
	var order []string

	for i, line := range lines {
		if line.ProductID == "" || line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %d needs a product and a positive quantity", ErrInvalidInput, i)
		}

		p, seen := catalog[line.ProductID]
		if !seen {
			if len(order) == MaxDistinctProducts {
				return nil, fmt.Errorf("%w: more than %d distinct products", ErrInvalidInput, MaxDistinctProducts)
			}
			var err error
			p, err = store.Get(ctx, line.ProductID)
			if err != nil {
				return nil, fmt.Errorf("%w: load product %s: %w", ErrPersistence, line.ProductID, err)
			}
			if p == nil || !p.IsActive {
				return nil, &ProductNotFoundError{ProductID: line.ProductID, Line: i}
			}
			catalog[line.ProductID] = p
			remaining[line.ProductID] = p.Quantity
			res.lineOf[line.ProductID] = i
			order = append(order, line.ProductID)
		}

		if remaining[line.ProductID] < line.Quantity {
			return nil, &OutOfStockError{
				ProductID: p.ProductID,
				Name:      p.Name,
				Available: remaining[line.ProductID],
				Requested: line.Quantity,
			}
		}
		remaining[line.ProductID] -= line.Quantity
		res.requested[line.ProductID] += line.Quantity

		res.items = append(res.items, orders.Item{
			ProductID: p.ProductID,
			Name:      p.Name,
			Quantity:  line.Quantity,
			UnitPrice: p.Price,
		})
		res.total += p.Price.Mul(line.Quantity)
	}

	for _, id := range order {
		if err := store.StageReserve(uow, id, res.requested[id]); err != nil {
			return nil, fmt.Errorf("%w: stage reserve %s: %w", ErrPersistence, id, err)
		}
	}
	return res, nil
}
