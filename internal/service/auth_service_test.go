package service

import (
	"context"
	"testing"

	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/kvstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newAuthService(db *gorm.DB) (*AuthService, *recordingMailer, kvstore.TTLStore) {
	mailer := &recordingMailer{}
	store := kvstore.NewMemoryStore()
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpireTime = 3600 * 1e9
	return NewAuthService(repository.NewUserRepository(db), store, mailer, cfg), mailer, store
}

func TestRegisterAndLogin(t *testing.T) {
	db := newTestDB(t)
	svc, _, _ := newAuthService(db)

	user := &model.User{Name: "alice", Email: "alice@example.com", Password: "s3cret-pass"}
	require.NoError(t, svc.Register(user))
	assert.Equal(t, model.Student, user.Role)
	assert.NotEqual(t, "s3cret-pass", user.Password)

	token, logged, err := svc.Login("alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, logged.ID)

	_, _, err = svc.Login("alice@example.com", "wrong")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	svc, _, _ := newAuthService(db)

	require.NoError(t, svc.Register(&model.User{Name: "alice", Email: "a@example.com", Password: "password1"}))
	err := svc.Register(&model.User{Name: "bob", Email: "a@example.com", Password: "password2"})
	assert.ErrorIs(t, err, util.ErrEmailRegistered)
}

func TestLogin_DisabledUser(t *testing.T) {
	db := newTestDB(t)
	svc, _, _ := newAuthService(db)

	user := &model.User{Name: "alice", Email: "alice@example.com", Password: "s3cret-pass"}
	require.NoError(t, svc.Register(user))
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", user.ID).Update("disabled", true).Error)

	_, _, err := svc.Login("alice@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
}

func TestPasswordReset_Flow(t *testing.T) {
	db := newTestDB(t)
	svc, mailer, store := newAuthService(db)
	ctx := context.Background()

	user := &model.User{Name: "alice", Email: "alice@example.com", Password: "old-password"}
	require.NoError(t, svc.Register(user))

	require.NoError(t, svc.RequestPasswordReset(ctx, "alice@example.com"))
	assert.Contains(t, mailer.sent, "密码重置")

	otp, found, err := store.Get(ctx, "pwdreset:alice@example.com")
	require.NoError(t, err)
	require.True(t, found)

	// 错误验证码被拒
	err = svc.ResetPassword(ctx, "alice@example.com", "000000x", "new-password1")
	assert.ErrorIs(t, err, util.ErrInvalidOTP)

	require.NoError(t, svc.ResetPassword(ctx, "alice@example.com", otp, "new-password1"))

	_, _, err = svc.Login("alice@example.com", "old-password")
	assert.Error(t, err)
	_, _, err = svc.Login("alice@example.com", "new-password1")
	assert.NoError(t, err)

	// 验证码一次性
	err = svc.ResetPassword(ctx, "alice@example.com", otp, "another-pass1")
	assert.ErrorIs(t, err, util.ErrInvalidOTP)
}

func TestPasswordReset_UnknownEmailSilentlySucceeds(t *testing.T) {
	db := newTestDB(t)
	svc, mailer, _ := newAuthService(db)

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "ghost@example.com"))
	assert.Empty(t, mailer.sent)
}

func TestChangePassword(t *testing.T) {
	db := newTestDB(t)
	svc, _, _ := newAuthService(db)

	user := &model.User{Name: "alice", Email: "alice@example.com", Password: "old-password"}
	require.NoError(t, svc.Register(user))

	err := svc.ChangePassword(user.ID, "wrong", "new-password1")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(user.ID, "old-password", "new-password1"))
	_, _, err = svc.Login("alice@example.com", "new-password1")
	assert.NoError(t, err)
}
