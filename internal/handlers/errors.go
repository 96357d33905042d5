package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-paid-orderflow/internal/checkout"
	"github.com/imrishuroy/go-paid-orderflow/internal/logging"
	"github.com/imrishuroy/go-paid-orderflow/internal/orders"
)

// statusFor maps a workflow or store error to an HTTP status and a message
// safe to show the caller. Unclassified errors get an empty message so the
// caller's generic one is used; their detail never leaves the service.
func statusFor(err error) (int, string) {
	var (
		oos *checkout.OutOfStockError
		nf  *checkout.ProductNotFoundError
	)
	switch {
	case errors.Is(err, checkout.ErrAuthentication):
		return http.StatusBadRequest, "Invalid payment signature"
	case errors.As(err, &oos):
		return http.StatusConflict, oos.Error()
	case errors.As(err, &nf):
		return http.StatusNotFound, nf.Error()
	case errors.Is(err, checkout.ErrTotalMismatch), errors.Is(err, checkout.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, orders.ErrInvalidTransition):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, orders.ErrStatusMismatch):
		return http.StatusConflict, "Order status changed concurrently, retry"
	default:
		return http.StatusInternalServerError, ""
	}
}

func writeError(c *gin.Context, err error, generic string) {
	status, msg := statusFor(err)
	if msg == "" {
		msg = generic
	}
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).Error("request failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"success": false, "message": msg})
}
