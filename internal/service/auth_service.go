package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/kvstore"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	otpTTL       = 10 * time.Minute
	otpKeyPrefix = "pwdreset:"
)

type AuthService struct {
	UserRepo *repository.UserRepository
	OTPStore kvstore.TTLStore
	Mailer   Mailer
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, otpStore kvstore.TTLStore, mailer Mailer, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		OTPStore: otpStore,
		Mailer:   mailer,
		Cfg:      cfg,
	}
}

func (s *AuthService) Register(user *model.User) error {
	_, err := s.UserRepo.FindByEmail(user.Email)
	if err == nil {
		return util.ErrEmailRegistered
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.Password = string(hashedPassword)
	if user.Role == "" {
		user.Role = model.Student
	}
	return s.UserRepo.Create(user)
}

func (s *AuthService) Login(email, password string) (string, *model.User, error) {
	user, err := s.UserRepo.FindByEmail(email)
	if err != nil {
		return "", nil, util.ErrInvalidCredentials
	}
	if user.Disabled {
		return "", nil, util.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, util.ErrInvalidCredentials
	}

	if err := s.UserRepo.UpdateLastLogin(user.ID); err != nil {
		return "", nil, err
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) GetCurrentUser(c *gin.Context) *model.User {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		return nil
	}

	user, _ := s.UserRepo.FindByID(claims.UserID)
	return user
}

// RequestPasswordReset 发送重置验证码。为避免邮箱枚举，
// 邮箱不存在时同样返回成功。
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.UserRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	otp, err := generateOTP()
	if err != nil {
		return err
	}

	if err := s.OTPStore.Set(ctx, otpKeyPrefix+email, otp, otpTTL); err != nil {
		return err
	}

	body := fmt.Sprintf("您的密码重置验证码是 %s，%d 分钟内有效。", otp, int(otpTTL.Minutes()))
	return s.Mailer.Send(user.Name, user.Email, "密码重置", body)
}

// ResetPassword 校验验证码并更新密码。验证码一次性：成功后立即删除。
func (s *AuthService) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	stored, found, err := s.OTPStore.Get(ctx, otpKeyPrefix+email)
	if err != nil {
		return err
	}
	if !found || stored != otp {
		return util.ErrInvalidOTP
	}

	user, err := s.UserRepo.FindByEmail(email)
	if err != nil {
		return util.ErrUserNotFound
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.UserRepo.UpdatePassword(user.ID, string(hashedPassword)); err != nil {
		return err
	}

	return s.OTPStore.Delete(ctx, otpKeyPrefix+email)
}

// ChangePassword 登录态下修改密码，需要验证旧密码
func (s *AuthService) ChangePassword(userID uint, oldPassword, newPassword string) error {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return util.ErrUserNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)); err != nil {
		return util.ErrInvalidCredentials
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.UserRepo.UpdatePassword(user.ID, string(hashedPassword))
}

// generateOTP 6 位数字验证码
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
