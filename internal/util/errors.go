package util

import "errors"

var (
	ErrUserNotFound       = errors.New("用户不存在")
	ErrEmailRegistered    = errors.New("该邮箱已被注册")
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrInvalidOTP         = errors.New("验证码无效或已过期")
	ErrPermissionDenied   = errors.New("permission denied")

	ErrCourseNotFound   = errors.New("course not found")
	ErrLectureNotFound  = errors.New("lecture not found in curriculum")
	ErrCourseNotOnSale  = errors.New("course not published")
	ErrAlreadyPurchased = errors.New("course already purchased")

	ErrNotPurchased     = errors.New("course not purchased")
	ErrProgressNotFound = errors.New("progress not found")

	ErrOrderNotFound    = errors.New("order not found")
	ErrInvalidSignature = errors.New("payment signature verification failed")
	ErrGateway          = errors.New("payment gateway error")

	ErrNotEligible = errors.New("not eligible for certificate")

	ErrSessionNotFound = errors.New("live session not found")
)
