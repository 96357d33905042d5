package validation

import (
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/imrishuroy/go-paid-orderflow/internal/orders"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// lines naming the same product are merged later, so the transaction
	// limit applies to distinct products rather than lines
	v.RegisterStructValidation(orderDataStructValidation, OrderData{})

	_ = v.RegisterValidation("order_status", func(fl validatorv10.FieldLevel) bool {
		return orders.ValidStatus(fl.Field().String())
	})

	return v
}

func orderDataStructValidation(sl validatorv10.StructLevel) {
	data := sl.Current().Interface().(OrderData)

	distinct := map[string]struct{}{}
	for _, it := range data.OrderItems {
		distinct[it.Product] = struct{}{}
	}
	if len(distinct) > MaxDistinctProducts {
		sl.ReportError(data.OrderItems, "orderItems", "OrderItems", "max_distinct_products",
			fmt.Sprintf("%d distinct products > %d", len(distinct), MaxDistinctProducts))
	}
}
