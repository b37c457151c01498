package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newOrderService(db *gorm.DB, gateway PaymentGateway) (*OrderService, *recordingMailer) {
	notification, mailer := newSyncNotificationService(db)
	return NewOrderService(
		repository.NewOrderRepository(db),
		repository.NewCourseRepository(db),
		repository.NewStudentCourseRepository(db),
		repository.NewUserRepository(db),
		gateway,
		notification,
		db,
	), mailer
}

func TestCreateOrder_Succeeds(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newOrderService(db, &fakeGateway{validSig: "sig"})

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 1)

	order, err := svc.CreateOrder(context.Background(), student.ID, course.ID, "card")
	require.NoError(t, err)

	assert.Equal(t, model.OrderInitiated, order.Status)
	assert.Equal(t, course.Price, order.Amount)
	assert.NotEmpty(t, order.GatewayOrderID)
}

func TestCreateOrder_RejectsUnpublishedAndOwned(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newOrderService(db, &fakeGateway{})

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 1)

	require.NoError(t, db.Model(&model.Course{}).Where("id = ?", course.ID).Update("is_published", false).Error)
	_, err := svc.CreateOrder(context.Background(), student.ID, course.ID, "card")
	assert.ErrorIs(t, err, util.ErrCourseNotOnSale)

	require.NoError(t, db.Model(&model.Course{}).Where("id = ?", course.ID).Update("is_published", true).Error)
	grantEntitlement(t, db, student, course)
	_, err = svc.CreateOrder(context.Background(), student.ID, course.ID, "card")
	assert.ErrorIs(t, err, util.ErrAlreadyPurchased)
}

func TestCreateOrder_GatewayFailureMarksOrderFailed(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newOrderService(db, &fakeGateway{createErr: errors.New("connection refused")})

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 1)

	_, err := svc.CreateOrder(context.Background(), student.ID, course.ID, "card")
	assert.ErrorIs(t, err, util.ErrGateway)

	// 本地订单不留 pending 悬挂
	var order model.Order
	require.NoError(t, db.Where("user_id = ?", student.ID).First(&order).Error)
	assert.Equal(t, model.OrderFailed, order.Status)
	assert.NotEmpty(t, order.FailureReason)
}

func TestCaptureAndFinalize_GrantsEntitlementOnce(t *testing.T) {
	db := newTestDB(t)
	svc, mailer := newOrderService(db, &fakeGateway{validSig: "good-sig"})

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 1)

	order, err := svc.CreateOrder(context.Background(), student.ID, course.ID, "card")
	require.NoError(t, err)

	// 重试两次 capture，入账恰好一次
	for i := 0; i < 2; i++ {
		captured, err := svc.CaptureAndFinalize(order.ID, "pay_123", "good-sig")
		require.NoError(t, err)
		assert.Equal(t, model.OrderPaid, captured.Status)
		require.NotNil(t, captured.PaidAt)
		assert.Equal(t, "pay_123", captured.GatewayPaymentID)
	}

	var entitlements int64
	require.NoError(t, db.Model(&model.StudentCourse{}).
		Where("user_id = ? AND course_id = ?", student.ID, course.ID).
		Count(&entitlements).Error)
	assert.Equal(t, int64(1), entitlements)

	var roster int64
	require.NoError(t, db.Model(&model.CourseStudent{}).
		Where("user_id = ? AND course_id = ?", student.ID, course.ID).
		Count(&roster).Error)
	assert.Equal(t, int64(1), roster)

	// 支付成功通知只发一次
	assert.Equal(t, []string{"购买成功"}, mailer.sent)
}

func TestCaptureAndFinalize_BadSignatureFailsOrder(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newOrderService(db, &fakeGateway{validSig: "good-sig"})

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 1)

	order, err := svc.CreateOrder(context.Background(), student.ID, course.ID, "card")
	require.NoError(t, err)

	_, err = svc.CaptureAndFinalize(order.ID, "pay_123", "forged")
	assert.ErrorIs(t, err, util.ErrInvalidSignature)

	// 订单显式终结为 failed，不授予任何权益
	failed, err := repository.NewOrderRepository(db).FindByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderFailed, failed.Status)

	purchased, err := repository.NewStudentCourseRepository(db).HasPurchased(student.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, purchased)

	// 已失败的订单拒绝再次 capture
	_, err = svc.CaptureAndFinalize(order.ID, "pay_123", "good-sig")
	assert.Error(t, err)
}

func TestCaptureAndFinalize_UnknownOrder(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newOrderService(db, &fakeGateway{})

	_, err := svc.CaptureAndFinalize(9999, "pay_123", "sig")
	assert.ErrorIs(t, err, util.ErrOrderNotFound)
}

func TestExpireStaleOrders(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newOrderService(db, &fakeGateway{validSig: "sig"})

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 1)

	order, err := svc.CreateOrder(context.Background(), student.ID, course.ID, "card")
	require.NoError(t, err)

	// 把订单做旧
	require.NoError(t, db.Model(&model.Order{}).
		Where("id = ?", order.ID).
		Update("created_at", order.CreatedAt.Add(-2*time.Hour)).Error)

	require.NoError(t, svc.ExpireStaleOrders(30*time.Minute))

	expired, err := repository.NewOrderRepository(db).FindByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderFailed, expired.Status)
	assert.Equal(t, "order expired", expired.FailureReason)
}
