package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/checkout-saga/services/common/middleware"
	"github.com/yashrajoria/checkout-saga/services/order-service/controllers"
)

func RegisterOrderRoutes(r *gin.Engine, oc *controllers.OrderController) {
	orderRoutes := r.Group("/orders")
	orderRoutes.Use(middleware.RequireUser())
	{
		orderRoutes.POST("", oc.CreateOrder)
		orderRoutes.GET("", oc.GetOrders)
		orderRoutes.GET("/:id", oc.GetOrderByID)
		orderRoutes.DELETE("/:id", oc.CancelOrder)
	}

	adminRoutes := r.Group("/admin")
	adminRoutes.Use(middleware.RequireUser(), middleware.RequireRole("admin"))
	adminRoutes.GET("/orders", oc.GetAllOrders)
}
