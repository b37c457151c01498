package controller

import (
	"errors"

	"lms_backend/internal/config"
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type OrderController struct {
	OrderService *service.OrderService
	PaymentCfg   *config.PaymentConfig
}

func NewOrderController(orderService *service.OrderService, paymentCfg *config.PaymentConfig) *OrderController {
	return &OrderController{
		OrderService: orderService,
		PaymentCfg:   paymentCfg,
	}
}

// CreateOrderRequest 下单载荷
// swagger:model CreateOrderRequest
type CreateOrderRequest struct {
	CourseID      uint   `json:"courseId" binding:"required"`
	PaymentMethod string `json:"paymentMethod"`
}

// Create godoc
// @Summary 创建订单
// @Description 为课程创建支付订单并向网关下单，返回网关订单号供前端发起支付
// @Tags 订单
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body CreateOrderRequest true "下单信息"
// @Success 201 {object} util.Response{data=object} "创建成功"
// @Failure 400 {object} util.Response "课程未上架或已购买"
// @Failure 404 {object} util.Response "课程不存在"
// @Failure 502 {object} util.Response "支付网关异常"
// @Router /api/orders [post]
func (c *OrderController) Create(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	var req CreateOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	order, err := c.OrderService.CreateOrder(ctx.Request.Context(), claims.UserID, req.CourseID, req.PaymentMethod)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrCourseNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrCourseNotOnSale):
			util.BadRequest(ctx, "课程未上架")
		case errors.Is(err, util.ErrAlreadyPurchased):
			util.BadRequest(ctx, "课程已购买")
		case errors.Is(err, util.ErrGateway):
			util.Error(ctx, 502, "支付网关异常，请稍后重试")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, gin.H{
		"order":          order,
		"gatewayOrderId": order.GatewayOrderID,
		"keyId":          c.PaymentCfg.KeyID,
		"amount":         order.Amount,
		"currency":       order.Currency,
	})
}

// CaptureRequest 支付捕获载荷，字段名与网关回调保持一致
// swagger:model CaptureRequest
type CaptureRequest struct {
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
}

// Capture godoc
// @Summary 捕获支付
// @Description 校验网关签名并落账：订单置已支付、写入已购记录与课程名册。可安全重试。
// @Tags 订单
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "订单ID"
// @Param   body body CaptureRequest true "网关回调参数"
// @Success 200 {object} util.Response{data=model.Order} "落账成功"
// @Failure 400 {object} util.Response "签名校验失败"
// @Failure 404 {object} util.Response "订单不存在"
// @Router /api/orders/{id}/capture [post]
func (c *OrderController) Capture(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	orderID := util.MustParseUint(ctx.Param("id"))

	var req CaptureRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	// 只能捕获自己的订单
	existing, err := c.OrderService.GetOrder(claims.UserID, orderID)
	if err != nil {
		respondOrderError(ctx, err)
		return
	}

	order, err := c.OrderService.CaptureAndFinalize(existing.ID, req.PaymentID, req.Signature)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrInvalidSignature):
			util.BadRequest(ctx, "支付签名校验失败")
		case errors.Is(err, util.ErrOrderNotFound):
			util.NotFound(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, order)
}

// Get godoc
// @Summary 订单详情
// @Tags 订单
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "订单ID"
// @Success 200 {object} util.Response{data=model.Order} "Success"
// @Failure 404 {object} util.Response "订单不存在"
// @Router /api/orders/{id} [get]
func (c *OrderController) Get(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	orderID := util.MustParseUint(ctx.Param("id"))

	order, err := c.OrderService.GetOrder(claims.UserID, orderID)
	if err != nil {
		respondOrderError(ctx, err)
		return
	}
	util.Success(ctx, order)
}

// List godoc
// @Summary 我的订单
// @Tags 订单
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Order} "Success"
// @Router /api/orders [get]
func (c *OrderController) List(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	orders, err := c.OrderService.ListUserOrders(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, orders)
}

func respondOrderError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrOrderNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}
