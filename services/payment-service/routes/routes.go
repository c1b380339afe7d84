package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/checkout-saga/services/common/middleware"
	"github.com/yashrajoria/checkout-saga/services/payment-service/controllers"
)

func RegisterPaymentRoutes(r *gin.Engine, pc *controllers.PaymentController, wc *controllers.WebhookController, limiter *middleware.RateLimiter) {
	payments := r.Group("/payments")
	payments.Use(middleware.RequireUser())
	{
		payments.POST("", pc.CreatePayment)
		payments.GET("/:orderId", pc.GetPayment)
		payments.POST("/success", pc.PaymentSuccess)
		payments.POST("/cancel", pc.PaymentCancel)
	}

	// signed by the gateway, no user identity
	webhooks := r.Group("/webhook")
	if limiter != nil {
		webhooks.Use(middleware.RateLimit(limiter))
	}
	webhooks.POST("/stripe", wc.StripeWebhook)
}
