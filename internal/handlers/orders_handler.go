package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-paid-orderflow/internal/checkout"
	"github.com/imrishuroy/go-paid-orderflow/internal/orders"
	"github.com/imrishuroy/go-paid-orderflow/internal/validation"
)

// Checkout runs the order-creating workflows. *checkout.Workflow implements it.
type Checkout interface {
	Authenticate(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) error
	Confirm(ctx context.Context, in checkout.Input) (checkout.Result, error)
	PlaceCOD(ctx context.Context, in checkout.CODInput) (checkout.Result, error)
}

// OrderStore is the part of *orders.Store the order routes use.
type OrderStore interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	ListByUser(ctx context.Context, userID string, limit int32) ([]orders.Order, error)
	ListAll(ctx context.Context, limit int) ([]orders.Order, error)
	Transition(ctx context.Context, orderID, newStatus string) (*orders.Order, error)
}

// HandlerConfig groups dependencies for the API handlers.
type HandlerConfig struct {
	Workflow  Checkout
	Orders    OrderStore
	Validator *validatorv10.Validate
}

func (cfg HandlerConfig) validator() *validatorv10.Validate {
	if cfg.Validator != nil {
		return cfg.Validator
	}
	return validation.New()
}

const maxListLimit = 100

// RegisterOrdersRoutes registers routes for order API. The group must already
// run Identity.
func RegisterOrdersRoutes(g *gin.RouterGroup, cfg HandlerConfig) {
	v := cfg.validator()

	g.POST("/orders", func(c *gin.Context) {
		var req validation.CreateOrderRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		res, err := cfg.Workflow.PlaceCOD(c.Request.Context(), checkout.CODInput{
			UserID:          c.GetString(ctxUserID),
			Lines:           toLines(req.OrderItems),
			ShippingAddress: toAddress(req.ShippingAddress),
			DeclaredTotal:   req.TotalPrice,
		})
		if err != nil {
			writeError(c, err, "Failed to create order")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "order": res.Order})
	})

	g.GET("/orders/user/myorders", func(c *gin.Context) {
		limit, ok := listLimit(c)
		if !ok {
			return
		}
		list, err := cfg.Orders.ListByUser(c.Request.Context(), c.GetString(ctxUserID), int32(limit))
		if err != nil {
			writeError(c, err, "Failed to fetch orders")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "orders": list})
	})

	g.GET("/orders/:id", func(c *gin.Context) {
		o, err := cfg.Orders.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err, "Failed to fetch order")
			return
		}
		// other users' orders are reported as missing
		if o == nil || (o.UserID != c.GetString(ctxUserID) && c.GetString(ctxUserRole) != RoleAdmin) {
			fail(c, http.StatusNotFound, "Order not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "order": o})
	})

	admin := g.Group("", RequireAdmin())

	admin.GET("/orders/getOrders", func(c *gin.Context) {
		limit, ok := listLimit(c)
		if !ok {
			return
		}
		list, err := cfg.Orders.ListAll(c.Request.Context(), limit)
		if err != nil {
			writeError(c, err, "Failed to fetch orders")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "orders": list})
	})

	admin.PUT("/orders/:id/status", func(c *gin.Context) {
		var req validation.UpdateStatusRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		transition(c, cfg.Orders, req.Status)
	})

	admin.PUT("/orders/:id/deliver", func(c *gin.Context) {
		transition(c, cfg.Orders, orders.StatusDelivered)
	})
}

func transition(c *gin.Context, store OrderStore, status string) {
	o, err := store.Transition(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		writeError(c, err, "Failed to update order")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": o})
}

// listLimit reads the optional limit query parameter, writing a 400 when it
// is out of range.
func listLimit(c *gin.Context) (int, bool) {
	q := c.Query("limit")
	if q == "" {
		return maxListLimit, true
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 || n > maxListLimit {
		fail(c, http.StatusBadRequest, "limit must be between 1 and 100")
		return 0, false
	}
	return n, true
}
