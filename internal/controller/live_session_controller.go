package controller

import (
	"errors"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LiveSessionController struct {
	SessionService *service.LiveSessionService
}

func NewLiveSessionController(sessionService *service.LiveSessionService) *LiveSessionController {
	return &LiveSessionController{SessionService: sessionService}
}

// SessionRequest 直播场次创建载荷
// swagger:model SessionRequest
type SessionRequest struct {
	CourseID    uint      `json:"courseId" binding:"required"`
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	StartAt     time.Time `json:"startAt" binding:"required"`
	EndAt       time.Time `json:"endAt" binding:"required"`
	JoinURL     string    `json:"joinUrl"`
}

// Create godoc
// @Summary 创建直播场次
// @Description 讲师为自己的课程排期直播，已入册学生会收到通知
// @Tags 直播课
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body SessionRequest true "场次信息"
// @Success 201 {object} util.Response{data=model.LiveSession} "创建成功"
// @Failure 403 {object} util.Response "非本人课程"
// @Router /api/instructor/sessions [post]
func (c *LiveSessionController) Create(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	var req SessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if !req.EndAt.After(req.StartAt) {
		util.BadRequest(ctx, "结束时间必须晚于开始时间")
		return
	}

	session := &model.LiveSession{
		CourseID:    req.CourseID,
		Title:       req.Title,
		Description: req.Description,
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
		JoinURL:     req.JoinURL,
	}

	if err := c.SessionService.Create(claims.UserID, session); err != nil {
		respondSessionError(ctx, err)
		return
	}
	util.Created(ctx, session)
}

// Cancel godoc
// @Summary 取消直播场次
// @Tags 直播课
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "场次ID"
// @Success 200 {object} util.Response "取消成功"
// @Router /api/instructor/sessions/{id}/cancel [post]
func (c *LiveSessionController) Cancel(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	sessionID := util.MustParseUint(ctx.Param("id"))

	if err := c.SessionService.Cancel(claims.UserID, sessionID); err != nil {
		respondSessionError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// Finish godoc
// @Summary 结束直播场次
// @Tags 直播课
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "场次ID"
// @Success 200 {object} util.Response "已结束"
// @Router /api/instructor/sessions/{id}/finish [post]
func (c *LiveSessionController) Finish(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	sessionID := util.MustParseUint(ctx.Param("id"))

	if err := c.SessionService.Finish(claims.UserID, sessionID); err != nil {
		respondSessionError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ListForCourse godoc
// @Summary 课程直播场次
// @Description 已购学生或课程讲师查看课程下的直播排期
// @Tags 直播课
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=[]model.LiveSession} "Success"
// @Failure 403 {object} util.Response "未购买课程"
// @Router /api/courses/{courseId}/sessions [get]
func (c *LiveSessionController) ListForCourse(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))

	sessions, err := c.SessionService.ListForCourse(claims.UserID, courseID)
	if err != nil {
		respondSessionError(ctx, err)
		return
	}
	util.Success(ctx, sessions)
}

// ListUpcoming godoc
// @Summary 我的直播日程
// @Description 已购课程的未开始直播场次
// @Tags 直播课
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.LiveSession} "Success"
// @Router /api/student/sessions [get]
func (c *LiveSessionController) ListUpcoming(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	sessions, err := c.SessionService.ListUpcoming(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, sessions)
}

func respondSessionError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrCourseNotFound), errors.Is(err, util.ErrSessionNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied), errors.Is(err, util.ErrNotPurchased):
		util.Forbidden(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}
