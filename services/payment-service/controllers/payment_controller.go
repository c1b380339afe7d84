package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yashrajoria/checkout-saga/services/common/errors"
	"github.com/yashrajoria/checkout-saga/services/payment-service/models"
	"github.com/yashrajoria/checkout-saga/services/payment-service/providers"
	"github.com/yashrajoria/checkout-saga/services/payment-service/services"
)

type PaymentController struct {
	payments services.PaymentService
}

func NewPaymentController(payments services.PaymentService) *PaymentController {
	return &PaymentController{payments: payments}
}

// CreatePayment handles POST /payments. A gateway failure is a 400 carrying
// the failed intent response.
func (pc *PaymentController) CreatePayment(c *gin.Context) {
	var req models.CreatePaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	resp, err := pc.payments.CreatePaymentIntent(c.Request.Context(), req)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadRequest, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetPayment handles GET /payments/:orderId.
func (pc *PaymentController) GetPayment(c *gin.Context) {
	payment, err := pc.payments.GetPaymentByOrderID(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// PaymentSuccess handles POST /payments/success?orderId=.
func (pc *PaymentController) PaymentSuccess(c *gin.Context) {
	orderID := c.Query(providers.OrderIDParam)
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "orderId is required"})
		return
	}
	if err := pc.payments.HandleSuccess(c.Request.Context(), orderID); err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment marked as succeeded", "orderId": orderID})
}

// PaymentCancel handles POST /payments/cancel?orderId=.
func (pc *PaymentController) PaymentCancel(c *gin.Context) {
	orderID := c.Query(providers.OrderIDParam)
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "orderId is required"})
		return
	}
	if err := pc.payments.HandleFailure(c.Request.Context(), orderID); err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment marked as failed", "orderId": orderID})
}
