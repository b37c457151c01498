package service

import (
	"fmt"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"

	"go.uber.org/zap"
)

// NotificationService 状态迁移时的旁路通知。所有入口都是 fire-and-forget：
// 写库失败、发信失败都只记日志，绝不影响触发它的主流程。
type NotificationService struct {
	NotificationRepo *repository.NotificationRepository
	UserRepo         *repository.UserRepository
	Mailer           Mailer

	// 同步模式，测试用：置 true 后 Notify 在当前 goroutine 执行
	Sync bool
}

func NewNotificationService(
	notificationRepo *repository.NotificationRepository,
	userRepo *repository.UserRepository,
	mailer Mailer,
) *NotificationService {
	return &NotificationService{
		NotificationRepo: notificationRepo,
		UserRepo:         userRepo,
		Mailer:           mailer,
	}
}

func (s *NotificationService) Notify(userID uint, typ model.NotificationType, title, body string) {
	if s.Sync {
		s.deliver(userID, typ, title, body)
		return
	}
	go s.deliver(userID, typ, title, body)
}

func (s *NotificationService) deliver(userID uint, typ model.NotificationType, title, body string) {
	n := &model.Notification{
		UserID: userID,
		Type:   typ,
		Title:  title,
		Body:   body,
	}
	if err := s.NotificationRepo.Create(n); err != nil {
		logger.Log.Error("create notification failed",
			zap.Uint("userID", userID),
			zap.String("type", string(typ)),
			zap.Error(err))
	}

	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		logger.Log.Warn("notification mail skipped, user lookup failed",
			zap.Uint("userID", userID), zap.Error(err))
		return
	}

	if err := s.Mailer.Send(user.Name, user.Email, title, body); err != nil {
		logger.Log.Error("notification mail failed",
			zap.Uint("userID", userID),
			zap.String("type", string(typ)),
			zap.Error(err))
	}
}

func (s *NotificationService) NotifyPaymentSuccess(userID uint, courseTitle string, amount int64, currency string) {
	s.Notify(userID, model.NotifyPaymentSuccess,
		"购买成功",
		fmt.Sprintf("您已成功购买课程《%s》，支付金额 %d %s。", courseTitle, amount, currency))
}

func (s *NotificationService) NotifyCourseCompleted(userID uint, courseTitle string) {
	s.Notify(userID, model.NotifyCourseCompleted,
		"恭喜完课",
		fmt.Sprintf("您已学完课程《%s》的全部内容，可以前往个人中心查看证书。", courseTitle))
}

func (s *NotificationService) NotifyCoursePublished(userID uint, courseTitle string) {
	s.Notify(userID, model.NotifyCoursePublished,
		"课程已发布",
		fmt.Sprintf("您的课程《%s》已发布上线。", courseTitle))
}

func (s *NotificationService) NotifySessionCreated(userID uint, courseTitle, sessionTitle string, startAt time.Time) {
	s.Notify(userID, model.NotifySessionCreated,
		"直播课预告",
		fmt.Sprintf("课程《%s》新增直播场次：%s，开始时间 %s。",
			courseTitle, sessionTitle, startAt.Format(util.TimeFormat)))
}
