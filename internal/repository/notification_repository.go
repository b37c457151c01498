package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	DB *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{DB: db}
}

func (r *NotificationRepository) Create(n *model.Notification) error {
	return r.DB.Create(n).Error
}

func (r *NotificationRepository) ListByUser(userID uint, page, limit int) ([]model.Notification, int64, error) {
	var notifications []model.Notification
	var total int64

	query := r.DB.Model(&model.Notification{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&notifications).Error
	return notifications, total, err
}

func (r *NotificationRepository) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Notification{}).
		Where("user_id = ? AND `read` = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkRead 只允许标记自己的通知
func (r *NotificationRepository) MarkRead(userID, notificationID uint) error {
	return r.DB.Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true).
		Error
}

func (r *NotificationRepository) MarkAllRead(userID uint) error {
	return r.DB.Model(&model.Notification{}).
		Where("user_id = ? AND `read` = ?", userID, false).
		Update("read", true).
		Error
}
