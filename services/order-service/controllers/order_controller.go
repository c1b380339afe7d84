package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yashrajoria/checkout-saga/services/common/errors"
	"github.com/yashrajoria/checkout-saga/services/common/middleware"
	"github.com/yashrajoria/checkout-saga/services/order-service/models"
	"github.com/yashrajoria/checkout-saga/services/order-service/services"
)

// OrderService is the part of services.OrderService the handlers use.
type OrderService interface {
	CreateOrder(ctx context.Context, userID string, req services.CreateOrderRequest) (*models.Order, error)
	GetUserOrders(ctx context.Context, userID string, page, limit int) (*services.OrderListResponse, error)
	GetAllOrders(ctx context.Context, page, limit int) (*services.OrderListResponse, error)
	GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error)
	CancelOrder(ctx context.Context, userID, orderID string) (*models.Order, error)
}

type OrderController struct {
	orderService OrderService
}

func NewOrderController(orderService OrderService) *OrderController {
	return &OrderController{orderService: orderService}
}

// CreateOrder handles POST /orders
func (oc *OrderController) CreateOrder(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		apperrors.Respond(ctx, apperrors.ErrUnauthorized)
		return
	}

	var req services.CreateOrderRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
			return
		}
	}

	order, err := oc.orderService.CreateOrder(ctx.Request.Context(), userID, req)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"success": true, "order": order})
}

// GetOrders returns paginated orders for the authenticated user
func (oc *OrderController) GetOrders(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		apperrors.Respond(ctx, apperrors.ErrUnauthorized)
		return
	}

	page, limit := parsePaginationParams(ctx)
	result, err := oc.orderService.GetUserOrders(ctx.Request.Context(), userID, page, limit)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetAllOrders returns paginated orders for all users (admin only)
func (oc *OrderController) GetAllOrders(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)
	result, err := oc.orderService.GetAllOrders(ctx.Request.Context(), page, limit)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetOrderByID returns a specific order for the authenticated user
func (oc *OrderController) GetOrderByID(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		apperrors.Respond(ctx, apperrors.ErrUnauthorized)
		return
	}

	order, err := oc.orderService.GetOrder(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": order})
}

// CancelOrder handles DELETE /orders/:id
func (oc *OrderController) CancelOrder(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		apperrors.Respond(ctx, apperrors.ErrUnauthorized)
		return
	}

	order, err := oc.orderService.CancelOrder(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Order cancelled", "order": order})
}

// parsePaginationParams extracts and validates pagination parameters
func parsePaginationParams(ctx *gin.Context) (int, int) {
	const MaxLimit = 100
	const DefaultPage = 1
	const DefaultLimit = 10

	pageInt := DefaultPage
	limitInt := DefaultLimit

	if p, err := strconv.Atoi(ctx.Query("page")); err == nil && p > 0 {
		pageInt = p
	}
	if l, err := strconv.Atoi(ctx.Query("limit")); err == nil && l > 0 {
		limitInt = min(l, MaxLimit)
	}

	return pageInt, limitInt
}
