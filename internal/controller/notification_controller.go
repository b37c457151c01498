package controller

import (
	"strconv"

	"lms_backend/internal/repository"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type NotificationController struct {
	NotificationRepo *repository.NotificationRepository
}

func NewNotificationController(notificationRepo *repository.NotificationRepository) *NotificationController {
	return &NotificationController{NotificationRepo: notificationRepo}
}

// List godoc
// @Summary 通知列表
// @Tags 通知
// @Produce  json
// @Security ApiKeyAuth
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse} "Success"
// @Router /api/notifications [get]
func (c *NotificationController) List(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	notifications, total, err := c.NotificationRepo.ListByUser(claims.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: notifications, Total: total, Page: page, Limit: limit})
}

// UnreadCount godoc
// @Summary 未读通知数
// @Tags 通知
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object} "Success"
// @Router /api/notifications/unread-count [get]
func (c *NotificationController) UnreadCount(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	count, err := c.NotificationRepo.UnreadCount(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"count": count})
}

// MarkRead godoc
// @Summary 标记通知已读
// @Tags 通知
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "通知ID"
// @Success 200 {object} util.Response "Success"
// @Router /api/notifications/{id}/read [put]
func (c *NotificationController) MarkRead(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	notificationID := util.MustParseUint(ctx.Param("id"))

	if err := c.NotificationRepo.MarkRead(claims.UserID, notificationID); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// MarkAllRead godoc
// @Summary 全部标记已读
// @Tags 通知
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response "Success"
// @Router /api/notifications/read-all [put]
func (c *NotificationController) MarkAllRead(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if err := c.NotificationRepo.MarkAllRead(claims.UserID); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
