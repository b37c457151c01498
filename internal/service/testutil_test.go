package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/pkg/database"
	"lms_backend/pkg/logger"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	logger.InitLogger(&config.Config{})
}

// newTestDB 每个测试独立的内存库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, name string, role model.UserRole) *model.User {
	t.Helper()
	user := &model.User{
		Name:     name,
		Email:    name + "@example.com",
		Password: "hashed",
		Role:     role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// createCourse 带 n 讲大纲的已发布课程
func createCourse(t *testing.T, db *gorm.DB, instructor *model.User, lectures int) *model.Course {
	t.Helper()
	course := &model.Course{
		InstructorID:   instructor.ID,
		InstructorName: instructor.Name,
		Title:          "Go 实战",
		Price:          49900,
		Currency:       "INR",
		IsPublished:    true,
	}
	for i := 1; i <= lectures; i++ {
		course.Lectures = append(course.Lectures, model.Lecture{
			Title: fmt.Sprintf("第 %d 讲", i),
			Sort:  i,
		})
	}
	require.NoError(t, db.Create(course).Error)
	return course
}

func grantEntitlement(t *testing.T, db *gorm.DB, user *model.User, course *model.Course) {
	t.Helper()
	require.NoError(t, db.Create(&model.StudentCourse{
		UserID:   user.ID,
		CourseID: course.ID,
		Title:    course.Title,
	}).Error)
}

// recordingMailer 记录发出的邮件，测试断言用
type recordingMailer struct {
	mu   sync.Mutex
	sent []string // subject 列表
}

func (m *recordingMailer) Send(toName, toEmail, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, subject)
	return nil
}

func newSyncNotificationService(db *gorm.DB) (*NotificationService, *recordingMailer) {
	mailer := &recordingMailer{}
	n := NewNotificationService(
		repository.NewNotificationRepository(db),
		repository.NewUserRepository(db),
		mailer,
	)
	n.Sync = true
	return n, mailer
}

// fakeGateway 可编程的网关假实现
type fakeGateway struct {
	createErr    error
	validSig     string
	orderCounter int
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayOrder, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.orderCounter++
	return &GatewayOrder{
		ID:       fmt.Sprintf("order_fake_%d", g.orderCounter),
		Amount:   amount,
		Currency: currency,
	}, nil
}

func (g *fakeGateway) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	return signature == g.validSig
}
