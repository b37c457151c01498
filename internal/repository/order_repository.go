package repository

import (
	"time"

	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type OrderRepository struct {
	DB *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{DB: db}
}

func (r *OrderRepository) Create(order *model.Order) error {
	return r.DB.Create(order).Error
}

func (r *OrderRepository) FindByID(id uint) (*model.Order, error) {
	var order model.Order
	err := r.DB.First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) Update(order *model.Order) error {
	return r.DB.Save(order).Error
}

func (r *OrderRepository) ListByUser(userID uint) ([]model.Order, error) {
	var orders []model.Order
	err := r.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&orders).Error
	return orders, err
}

// MarkFailed 任何非终态订单都可以失败
func (r *OrderRepository) MarkFailed(orderID uint, reason string) error {
	return r.DB.Model(&model.Order{}).
		Where("id = ? AND status NOT IN ?", orderID, []model.OrderStatus{model.OrderPaid, model.OrderFailed}).
		Updates(map[string]interface{}{"status": model.OrderFailed, "failure_reason": reason}).
		Error
}

// ExpireStale 将超时未支付的订单置为 failed，后台任务定期调用
func (r *OrderRepository) ExpireStale(olderThan time.Time) (int64, error) {
	result := r.DB.Model(&model.Order{}).
		Where("status IN ? AND created_at < ?",
			[]model.OrderStatus{model.OrderPending, model.OrderInitiated}, olderThan).
		Updates(map[string]interface{}{"status": model.OrderFailed, "failure_reason": "order expired"})
	return result.RowsAffected, result.Error
}
