package controller

import (
	"strconv"

	"lms_backend/internal/repository"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// UserController 管理员侧用户管理
type UserController struct {
	UserRepo *repository.UserRepository
}

func NewUserController(userRepo *repository.UserRepository) *UserController {
	return &UserController{UserRepo: userRepo}
}

// List godoc
// @Summary 用户列表
// @Description 管理员分页查看用户，支持按姓名或邮箱搜索
// @Tags 用户管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Param   search query string false "关键词"
// @Success 200 {object} util.Response{data=util.PageResponse} "Success"
// @Router /api/admin/users [get]
func (c *UserController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	search := ctx.Query("search")

	users, total, err := c.UserRepo.List(page, limit, search)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: users, Total: total, Page: page, Limit: limit})
}

// SetDisabledRequest 封禁或解封
type SetDisabledRequest struct {
	Disabled bool `json:"disabled"`
}

// SetDisabled godoc
// @Summary 封禁或解封用户
// @Description 被封禁的用户无法登录
// @Tags 用户管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "用户ID"
// @Param   body body SetDisabledRequest true "状态"
// @Success 200 {object} util.Response "Success"
// @Router /api/admin/users/{id}/disabled [put]
func (c *UserController) SetDisabled(ctx *gin.Context) {
	userID := util.MustParseUint(ctx.Param("id"))

	var req SetDisabledRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.UserRepo.SetDisabled(userID, req.Disabled); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
