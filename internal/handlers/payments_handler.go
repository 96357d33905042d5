package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-paid-orderflow/internal/checkout"
	"github.com/imrishuroy/go-paid-orderflow/internal/orders"
	"github.com/imrishuroy/go-paid-orderflow/internal/validation"
)

// RegisterPaymentRoutes registers the gateway confirmation route. The group
// must already run Identity.
func RegisterPaymentRoutes(g *gin.RouterGroup, cfg HandlerConfig) {
	v := cfg.validator()

	g.POST("/payments/verify", func(c *gin.Context) {
		var req validation.VerifyPaymentRequest
		if err := validation.Bind(c, &req); err != nil {
			return
		}
		// a forged callback is rejected before its cart is looked at
		if err := validation.Validate(c, &req, v, "RazorpayOrderID", "RazorpayPaymentID", "RazorpaySignature"); err != nil {
			return
		}
		ctx := c.Request.Context()
		if err := cfg.Workflow.Authenticate(ctx, req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature); err != nil {
			writeError(c, err, "Payment verification failed")
			return
		}
		if err := validation.Validate(c, &req, v); err != nil {
			return
		}

		res, err := cfg.Workflow.Confirm(ctx, toInput(c.GetString(ctxUserID), req))
		if err != nil {
			writeError(c, err, "Payment verification failed")
			return
		}

		body := gin.H{
			"success": true,
			"message": "Payment verified successfully",
			"order":   res.Order,
		}
		if res.Replayed {
			body["message"] = "Payment already verified"
			body["replayed"] = true
		}
		c.JSON(http.StatusOK, body)
	})
}

func toInput(userID string, req validation.VerifyPaymentRequest) checkout.Input {
	return checkout.Input{
		UserID:           userID,
		GatewayOrderID:   req.RazorpayOrderID,
		GatewayPaymentID: req.RazorpayPaymentID,
		Signature:        req.RazorpaySignature,
		Lines:            toLines(req.OrderData.OrderItems),
		ShippingAddress:  toAddress(req.OrderData.ShippingAddress),
		DeclaredTotal:    req.OrderData.TotalPrice,
	}
}

func toLines(items []validation.LineItem) []checkout.Line {
	lines := make([]checkout.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, checkout.Line{ProductID: it.Product, Quantity: it.Quantity})
	}
	return lines
}

func toAddress(a validation.ShippingAddress) orders.ShippingAddress {
	return orders.ShippingAddress{
		Address:    a.Address,
		City:       a.City,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}
