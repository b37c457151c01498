package controller

import (
	"errors"

	"lms_backend/internal/model"
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{AuthService: authService}
}

// RegisterRequest defines model for registration
// swagger:model RegisterRequest
type RegisterRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	Role         string `json:"role" binding:"omitempty,oneof=student instructor"`
	GuardianName string `json:"guardianName"`
}

// Register godoc
// @Summary 注册新用户
// @Description 使用提供的信息注册新用户，未指定角色时默认为学生
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body RegisterRequest true "用户注册信息"
// @Success 201 {object} util.Response{data=object} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 409 {object} util.Response "邮箱已被注册"
// @Failure 500 {object} util.Response "服务器内部错误"
// @Router /api/auth/register [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user := &model.User{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		Role:         model.UserRole(req.Role),
		GuardianName: req.GuardianName,
	}

	if err := c.AuthService.Register(user); err != nil {
		if errors.Is(err, util.ErrEmailRegistered) {
			util.Error(ctx, 409, "该邮箱已被注册")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, gin.H{"id": user.ID})
}

// swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login godoc
// @Summary 用户登录
// @Description 验证用户身份并返回JWT令牌
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body LoginRequest true "用户登录凭据"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	token, user, err := c.AuthService.Login(req.Email, req.Password)
	if err != nil {
		util.Unauthorized(ctx)
		return
	}

	util.Success(ctx, gin.H{
		"token": token,
		"user": gin.H{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

// GetProfile godoc
// @Summary 获取当前用户资料
// @Description 获取当前已认证用户的个人资料
// @Tags 认证
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.User} "Success"
// @Failure 401 {object} util.Response "Unauthorized"
// @Router /api/profile [get]
func (c *AuthController) GetProfile(ctx *gin.Context) {
	user := c.AuthService.GetCurrentUser(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	util.Success(ctx, gin.H{
		"id":           user.ID,
		"name":         user.Name,
		"email":        user.Email,
		"avatar":       user.Avatar,
		"role":         user.Role,
		"language":     user.Language,
		"guardianName": user.GuardianName,
		"createdAt":    user.CreatedAt,
	})
}

// UpdateProfileRequest 个人资料更新
type UpdateProfileRequest struct {
	Name         string `json:"name"`
	Avatar       string `json:"avatar"`
	Language     string `json:"language"`
	GuardianName string `json:"guardianName"`
}

// UpdateProfile godoc
// @Summary 更新当前用户资料
// @Tags 认证
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body UpdateProfileRequest true "资料"
// @Success 200 {object} util.Response{data=model.User} "Success"
// @Failure 401 {object} util.Response "Unauthorized"
// @Router /api/profile [put]
func (c *AuthController) UpdateProfile(ctx *gin.Context) {
	user := c.AuthService.GetCurrentUser(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req UpdateProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Avatar != "" {
		user.Avatar = req.Avatar
	}
	if req.Language != "" {
		user.Language = req.Language
	}
	if req.GuardianName != "" {
		user.GuardianName = req.GuardianName
	}

	if err := c.AuthService.UserRepo.Update(user); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// ForgotPasswordRequest 发送重置验证码
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPassword godoc
// @Summary 发送密码重置验证码
// @Description 向邮箱发送一次性验证码，邮箱不存在时也返回成功
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body ForgotPasswordRequest true "邮箱"
// @Success 200 {object} util.Response "已发送"
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/auth/forgot-password [post]
func (c *AuthController) ForgotPassword(ctx *gin.Context) {
	var req ForgotPasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.AuthService.RequestPasswordReset(ctx.Request.Context(), req.Email); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ResetPasswordRequest 凭验证码重置密码
type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	OTP         string `json:"otp" binding:"required,len=6"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

// ResetPassword godoc
// @Summary 重置密码
// @Description 校验邮箱验证码并设置新密码
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body ResetPasswordRequest true "重置信息"
// @Success 200 {object} util.Response "重置成功"
// @Failure 400 {object} util.Response "验证码无效或已过期"
// @Router /api/auth/reset-password [post]
func (c *AuthController) ResetPassword(ctx *gin.Context) {
	var req ResetPasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	err := c.AuthService.ResetPassword(ctx.Request.Context(), req.Email, req.OTP, req.NewPassword)
	if err != nil {
		if errors.Is(err, util.ErrInvalidOTP) || errors.Is(err, util.ErrUserNotFound) {
			util.BadRequest(ctx, "验证码无效或已过期")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}

// ChangePasswordRequest 登录态修改密码
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

// ChangePassword godoc
// @Summary 修改密码
// @Tags 认证
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body ChangePasswordRequest true "新旧密码"
// @Success 200 {object} util.Response "修改成功"
// @Failure 401 {object} util.Response "旧密码错误"
// @Router /api/profile/password [put]
func (c *AuthController) ChangePassword(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req ChangePasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.AuthService.ChangePassword(claims.UserID, req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, util.ErrInvalidCredentials) {
			util.Unauthorized(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}
