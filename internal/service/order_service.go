package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderService 下单与支付落账。落账（订单置 paid + 写已购记录 + 写名册）
// 在一个事务内完成；capture 可安全重试，靠订单状态守卫保证只入账一次。
type OrderService struct {
	OrderRepo         *repository.OrderRepository
	CourseRepo        *repository.CourseRepository
	StudentCourseRepo *repository.StudentCourseRepository
	UserRepo          *repository.UserRepository
	Gateway           PaymentGateway
	Notification      *NotificationService
	DB                *gorm.DB
}

func NewOrderService(
	orderRepo *repository.OrderRepository,
	courseRepo *repository.CourseRepository,
	studentCourseRepo *repository.StudentCourseRepository,
	userRepo *repository.UserRepository,
	gateway PaymentGateway,
	notification *NotificationService,
	db *gorm.DB,
) *OrderService {
	return &OrderService{
		OrderRepo:         orderRepo,
		CourseRepo:        courseRepo,
		StudentCourseRepo: studentCourseRepo,
		UserRepo:          userRepo,
		Gateway:           gateway,
		Notification:      notification,
		DB:                db,
	}
}

// CreateOrder 创建本地订单并向网关下单。网关失败时本地订单显式置
// failed 并返回 ErrGateway，调用方据此返回 500 而非 400。
func (s *OrderService) CreateOrder(ctx context.Context, userID, courseID uint, paymentMethod string) (*model.Order, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if !course.IsPublished {
		return nil, util.ErrCourseNotOnSale
	}

	purchased, err := s.StudentCourseRepo.HasPurchased(userID, courseID)
	if err != nil {
		return nil, err
	}
	if purchased {
		return nil, util.ErrAlreadyPurchased
	}

	order := &model.Order{
		UserID:        userID,
		CourseID:      courseID,
		CourseTitle:   course.Title,
		Amount:        course.Price,
		Currency:      course.Currency,
		PaymentMethod: paymentMethod,
		Status:        model.OrderPending,
	}
	if err := s.OrderRepo.Create(order); err != nil {
		return nil, err
	}

	receipt := fmt.Sprintf("order_%d", order.ID)
	gwOrder, err := s.Gateway.CreateOrder(ctx, order.Amount, order.Currency, receipt)
	if err != nil {
		logger.Log.Error("gateway order creation failed",
			zap.Uint("orderID", order.ID),
			zap.Uint("courseID", courseID),
			zap.Error(err))
		if mErr := s.OrderRepo.MarkFailed(order.ID, "gateway order creation failed"); mErr != nil {
			logger.Log.Error("mark order failed error", zap.Uint("orderID", order.ID), zap.Error(mErr))
		}
		return nil, fmt.Errorf("%w: %v", util.ErrGateway, err)
	}

	order.GatewayOrderID = gwOrder.ID
	order.Status = model.OrderInitiated
	if err := s.OrderRepo.Update(order); err != nil {
		return nil, err
	}

	return order, nil
}

// CaptureAndFinalize 支付捕获回调。幂等：已 paid 的订单直接返回；
// 签名校验失败或其他异常显式把订单打到 failed，不留 initiated 悬挂。
func (s *OrderService) CaptureAndFinalize(orderID uint, paymentID, signature string) (*model.Order, error) {
	order, err := s.OrderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrOrderNotFound
		}
		return nil, err
	}

	// 重试的 capture：已入账直接返回，不重复产生副作用
	if order.Status == model.OrderPaid {
		return order, nil
	}
	if order.Status == model.OrderFailed {
		return nil, fmt.Errorf("%w: order already failed", util.ErrOrderNotFound)
	}

	if !s.Gateway.VerifySignature(order.GatewayOrderID, paymentID, signature) {
		if mErr := s.OrderRepo.MarkFailed(order.ID, "signature verification failed"); mErr != nil {
			logger.Log.Error("mark order failed error", zap.Uint("orderID", order.ID), zap.Error(mErr))
		}
		monitoring.OrdersFinalized.WithLabelValues(string(model.OrderFailed)).Inc()
		return nil, util.ErrInvalidSignature
	}

	user, err := s.UserRepo.FindByID(order.UserID)
	if err != nil {
		return nil, err
	}
	course, err := s.CourseRepo.FindByID(order.CourseID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// 状态守卫放在事务内再查一次，并发 capture 只有一个会走到副作用
		var current model.Order
		if err := tx.First(&current, order.ID).Error; err != nil {
			return err
		}
		if current.Status == model.OrderPaid {
			return nil
		}

		if err := tx.Model(&model.Order{}).
			Where("id = ?", order.ID).
			Updates(map[string]interface{}{
				"status":             model.OrderPaid,
				"gateway_payment_id": paymentID,
				"paid_at":            now,
			}).Error; err != nil {
			return err
		}

		if err := s.StudentCourseRepo.AddIfAbsent(tx, &model.StudentCourse{
			UserID:         order.UserID,
			CourseID:       order.CourseID,
			Title:          course.Title,
			InstructorID:   course.InstructorID,
			InstructorName: course.InstructorName,
			CourseImage:    course.Image,
			PurchaseDate:   now,
		}); err != nil {
			return err
		}

		return s.CourseRepo.AddStudent(tx, &model.CourseStudent{
			CourseID:   order.CourseID,
			UserID:     order.UserID,
			UserName:   user.Name,
			UserEmail:  user.Email,
			PaidAmount: order.Amount,
			EnrolledAt: now,
		})
	})
	if err != nil {
		// 落账失败显式终结订单，避免卡在 initiated
		if mErr := s.OrderRepo.MarkFailed(order.ID, "finalize failed: "+err.Error()); mErr != nil {
			logger.Log.Error("mark order failed error", zap.Uint("orderID", order.ID), zap.Error(mErr))
		}
		monitoring.OrdersFinalized.WithLabelValues(string(model.OrderFailed)).Inc()
		return nil, err
	}

	monitoring.OrdersFinalized.WithLabelValues(string(model.OrderPaid)).Inc()
	if s.Notification != nil {
		s.Notification.NotifyPaymentSuccess(order.UserID, course.Title, order.Amount, order.Currency)
	}

	return s.OrderRepo.FindByID(order.ID)
}

func (s *OrderService) GetOrder(userID, orderID uint) (*model.Order, error) {
	order, err := s.OrderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrOrderNotFound
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	return order, nil
}

func (s *OrderService) ListUserOrders(userID uint) ([]model.Order, error) {
	return s.OrderRepo.ListByUser(userID)
}

// ExpireStaleOrders 后台任务：超时未支付的订单置为 failed
func (s *OrderService) ExpireStaleOrders(expireAfter time.Duration) error {
	n, err := s.OrderRepo.ExpireStale(time.Now().Add(-expireAfter))
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Log.Info("expired stale orders", zap.Int64("count", n))
	}
	return nil
}
